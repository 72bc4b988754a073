package fits

import (
	"errors"
	"fmt"
	"io"

	"example.com/fitsgate/internal/common"
)

// Catalog walks the HDU sequence of a source and caches the boundaries it
// computes. FITS has no central directory, so boundaries are derived by
// interpreting each header in turn; after the first walk random access to
// any HDU is O(1). A Catalog owns its source's cursor and must not be
// shared across goroutines; the cached boundaries and headers are immutable
// once walked and may be read freely.
type Catalog struct {
	src     ByteSource
	metrics *common.Metrics

	hdus     []HduBoundaries
	headers  []*Header
	warnings []Warning
	cursor   int64
	done     bool
}

// NewCatalog prepares a walk starting at offset 0.
func NewCatalog(src ByteSource) *Catalog {
	return &Catalog{src: src}
}

// SetMetrics attaches a metrics recorder to the walk.
func (c *Catalog) SetMetrics(m *common.Metrics) {
	c.metrics = m
}

// Warnings returns the non-fatal conditions observed so far.
func (c *Catalog) Warnings() []Warning {
	out := make([]Warning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Count walks to the end of the file and returns the number of HDUs parsed
// before the first failure or clean EOF. Header and data-length failures
// terminate the walk and are recorded as warnings; a read error while
// probing for the end of the source also ends the walk but records no
// warning. The catalog accumulated so far stays valid.
func (c *Catalog) Count() int {
	for !c.done {
		if err := c.advance(); err != nil {
			break
		}
	}
	return len(c.hdus)
}

// Locate returns the boundaries of the index-th HDU, walking forward as
// needed. Requests past the end fail with IndexError.
func (c *Catalog) Locate(index int) (HduBoundaries, error) {
	if index < 0 {
		return HduBoundaries{}, &IndexError{Requested: index, Total: len(c.hdus)}
	}
	for len(c.hdus) <= index && !c.done {
		if err := c.advance(); err != nil {
			break
		}
	}
	if index >= len(c.hdus) {
		return HduBoundaries{}, &IndexError{Requested: index, Total: len(c.hdus)}
	}
	return c.hdus[index], nil
}

// Header returns the parsed header of the index-th HDU.
func (c *Catalog) Header(index int) (*Header, error) {
	if _, err := c.Locate(index); err != nil {
		return nil, err
	}
	return c.headers[index], nil
}

// advance parses one more HDU at the cursor. io.EOF marks a clean end at a
// block boundary; a header or data-length failure records a warning and
// ends the walk, and a read error from the end-of-source probe ends it
// without a warning.
func (c *Catalog) advance() error {
	if c.done {
		return io.EOF
	}
	index := len(c.hdus)
	headerStart := c.cursor
	if atEOF, err := c.atEnd(headerStart); err != nil {
		c.done = true
		return err
	} else if atEOF {
		c.done = true
		return io.EOF
	}
	hdr, dataStart, err := ReadHeader(c.src, headerStart)
	if err != nil {
		c.done = true
		kind := WarnBadHeader
		if errors.Is(err, ErrUnexpectedEOF) {
			kind = WarnTruncatedHdu
		}
		c.warnings = append(c.warnings, Warning{Hdu: index, Kind: kind, Message: err.Error()})
		return err
	}
	bounds := HduBoundaries{
		Index:       index,
		HeaderStart: headerStart,
		DataStart:   dataStart,
	}
	dataLen, hduType, xtension, err := c.dataLength(index, hdr)
	if err != nil {
		c.done = true
		c.warnings = append(c.warnings, Warning{Hdu: index, Kind: WarnBadHeader, Message: err.Error()})
		return err
	}
	bounds.Type = hduType
	bounds.Xtension = xtension
	bounds.DataStop = dataStart + dataLen
	bounds.HduStop = dataStart + alignBlock(dataLen)

	c.hdus = append(c.hdus, bounds)
	c.headers = append(c.headers, hdr)
	c.cursor = bounds.HduStop
	if c.metrics != nil {
		c.metrics.AddHdu(bounds.HduStop - bounds.HeaderStart)
	}
	return nil
}

// atEnd probes whether offset is at or past the end of the source.
func (c *Catalog) atEnd(offset int64) (bool, error) {
	if err := c.src.Seek(offset); err != nil {
		return false, err
	}
	var probe [1]byte
	n, err := c.src.Read(probe[:])
	if n > 0 {
		return false, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

// dataLength computes the payload length declared by hdr, dispatching on
// XTENSION. Unknown extension types fall back to NAXIS1*NAXIS2 and record
// a warning; the primary HDU and XTENSION='IMAGE' use the BITPIX formula.
func (c *Catalog) dataLength(index int, hdr *Header) (int64, HduType, string, error) {
	xtension := hdr.StrOr("XTENSION", "")
	if xtension == "" || xtension == "IMAGE" {
		n, err := imageDataLength(hdr)
		return n, HduImage, xtension, err
	}
	if xtension == "BINTABLE" {
		n, err := tableDataLength(hdr)
		return n, HduBinTable, xtension, err
	}
	c.warnings = append(c.warnings, Warning{
		Hdu:     index,
		Kind:    WarnUnknownHduType,
		Message: fmt.Sprintf("unknown XTENSION %q, boundaries are best-effort", xtension),
	})
	naxis1, err := hdr.Int("NAXIS1")
	if err != nil {
		return 0, HduUnknown, xtension, err
	}
	naxis2, err := hdr.Int("NAXIS2")
	if err != nil {
		return 0, HduUnknown, xtension, err
	}
	return naxis1 * naxis2, HduUnknown, xtension, nil
}

func imageDataLength(hdr *Header) (int64, error) {
	bitpix, err := hdr.Int("BITPIX")
	if err != nil {
		return 0, err
	}
	naxis, err := hdr.Int("NAXIS")
	if err != nil {
		return 0, err
	}
	if naxis == 0 {
		return 0, nil
	}
	elemBytes := bitpix
	if elemBytes < 0 {
		elemBytes = -elemBytes
	}
	elemBytes /= 8
	if elemBytes == 0 {
		return 0, &MalformedCardError{Keyword: "BITPIX", Line: fmt.Sprintf("BITPIX=%d", bitpix)}
	}
	total := elemBytes
	for i := int64(1); i <= naxis; i++ {
		ax, err := hdr.Int(fmt.Sprintf("NAXIS%d", i))
		if err != nil {
			return 0, err
		}
		total *= ax
	}
	return total, nil
}

// tableDataLength is NAXIS1*NAXIS2 plus any PCOUNT heap bytes. The heap is
// part of the data area for boundary purposes even though this reader never
// decodes it.
func tableDataLength(hdr *Header) (int64, error) {
	naxis1, err := hdr.Int("NAXIS1")
	if err != nil {
		return 0, err
	}
	naxis2, err := hdr.Int("NAXIS2")
	if err != nil {
		return 0, err
	}
	pcount, err := hdr.IntOr("PCOUNT", 0)
	if err != nil {
		return 0, err
	}
	return naxis1*naxis2 + pcount, nil
}

// alignBlock rounds n up to the next multiple of BlockSize.
func alignBlock(n int64) int64 {
	if rem := n % BlockSize; rem != 0 {
		return n + BlockSize - rem
	}
	return n
}
