// Package fitstest assembles synthetic FITS byte streams for tests and the
// sample generator. It is deliberately independent of the reader so test
// fixtures cannot inherit reader bugs.
package fitstest

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

const (
	BlockSize = 2880
	CardSize  = 80
)

// Card renders one 80-byte value card. The value text is right-justified
// into columns 11-30 for fixed-format scalars, as astropy writes them.
func Card(keyword, value, comment string) string {
	line := fmt.Sprintf("%-8s= %20s", keyword, value)
	if comment != "" {
		line += " / " + comment
	}
	return padCard(line)
}

// StrCard renders a string card; the opening quote sits at column 11.
func StrCard(keyword, value, comment string) string {
	quoted := fmt.Sprintf("'%-8s'", strings.ReplaceAll(value, "'", "''"))
	line := fmt.Sprintf("%-8s= %s", keyword, quoted)
	if comment != "" {
		line += " / " + comment
	}
	return padCard(line)
}

// IntCard renders an integer card.
func IntCard(keyword string, v int64) string {
	return Card(keyword, fmt.Sprintf("%d", v), "")
}

// BoolCard renders a logical card.
func BoolCard(keyword string, v bool) string {
	if v {
		return Card(keyword, "T", "")
	}
	return Card(keyword, "F", "")
}

// CommentCard renders a commentary card (COMMENT, HISTORY).
func CommentCard(keyword, text string) string {
	return padCard(fmt.Sprintf("%-8s%s", keyword, text))
}

// EndCard renders the END sentinel.
func EndCard() string {
	return padCard("END")
}

func padCard(line string) string {
	if len(line) > CardSize {
		line = line[:CardSize]
	}
	return line + strings.Repeat(" ", CardSize-len(line))
}

// HeaderBytes joins cards and pads the header to whole blocks with blank
// cards.
func HeaderBytes(cards ...string) []byte {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(c)
	}
	out := []byte(b.String())
	return padTo(out, ' ')
}

// PadData pads a data area to whole blocks with zeros.
func PadData(data []byte) []byte {
	return padTo(data, 0)
}

func padTo(b []byte, fill byte) []byte {
	rem := len(b) % BlockSize
	if rem == 0 {
		return b
	}
	pad := make([]byte, BlockSize-rem)
	if fill != 0 {
		for i := range pad {
			pad[i] = fill
		}
	}
	return append(b, pad...)
}

// EmptyPrimary renders the minimal empty primary HDU header.
func EmptyPrimary(extraCards ...string) []byte {
	cards := []string{
		BoolCard("SIMPLE", true),
		IntCard("BITPIX", 8),
		IntCard("NAXIS", 0),
	}
	cards = append(cards, extraCards...)
	cards = append(cards, EndCard())
	return HeaderBytes(cards...)
}

// Column names one binary-table column for BinTableHeader.
type Column struct {
	Name  string
	TForm string
}

// BinTableHeader renders a BINTABLE extension header for the given geometry.
func BinTableHeader(rowBytes, rowCount int, cols []Column, extraCards ...string) []byte {
	cards := []string{
		StrCard("XTENSION", "BINTABLE", "binary table extension"),
		IntCard("BITPIX", 8),
		IntCard("NAXIS", 2),
		IntCard("NAXIS1", int64(rowBytes)),
		IntCard("NAXIS2", int64(rowCount)),
		IntCard("PCOUNT", 0),
		IntCard("GCOUNT", 1),
		IntCard("TFIELDS", int64(len(cols))),
	}
	for i, col := range cols {
		cards = append(cards, StrCard(fmt.Sprintf("TTYPE%d", i+1), col.Name, ""))
		cards = append(cards, StrCard(fmt.Sprintf("TFORM%d", i+1), col.TForm, ""))
	}
	cards = append(cards, extraCards...)
	cards = append(cards, EndCard())
	return HeaderBytes(cards...)
}

// ImageHeader renders an image header: the primary when primary is true,
// otherwise an XTENSION='IMAGE' extension.
func ImageHeader(primary bool, bitpix int, axes ...int) []byte {
	var cards []string
	if primary {
		cards = append(cards, BoolCard("SIMPLE", true))
	} else {
		cards = append(cards, StrCard("XTENSION", "IMAGE", "image extension"))
	}
	cards = append(cards, IntCard("BITPIX", int64(bitpix)), IntCard("NAXIS", int64(len(axes))))
	for i, ax := range axes {
		cards = append(cards, IntCard(fmt.Sprintf("NAXIS%d", i+1), int64(ax)))
	}
	if !primary {
		cards = append(cards, IntCard("PCOUNT", 0), IntCard("GCOUNT", 1))
	}
	cards = append(cards, EndCard())
	return HeaderBytes(cards...)
}

// RowWriter accumulates one fixed-width table row in declaration order.
type RowWriter struct {
	buf []byte
}

func (w *RowWriter) Int16(v int16) *RowWriter {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *RowWriter) Int32(v int32) *RowWriter {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *RowWriter) Int64(v int64) *RowWriter {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *RowWriter) Float32(v float32) *RowWriter {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], math.Float32bits(v))
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *RowWriter) Float64(v float64) *RowWriter {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(v))
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *RowWriter) Bool(v bool) *RowWriter {
	if v {
		w.buf = append(w.buf, 'T')
	} else {
		w.buf = append(w.buf, 'F')
	}
	return w
}

func (w *RowWriter) RawByte(b byte) *RowWriter {
	w.buf = append(w.buf, b)
	return w
}

// String appends a space-padded fixed-width string field.
func (w *RowWriter) String(v string, width int) *RowWriter {
	b := make([]byte, width)
	copy(b, v)
	for i := len(v); i < width; i++ {
		b[i] = ' '
	}
	w.buf = append(w.buf, b...)
	return w
}

// Bytes returns the accumulated row.
func (w *RowWriter) Bytes() []byte { return w.buf }
