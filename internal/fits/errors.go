package fits

import (
	"errors"
	"fmt"
)

var (
	// ErrUnexpectedEOF is returned when the source yields fewer bytes than a
	// header block, row, or element requires.
	ErrUnexpectedEOF = errors.New("fits: unexpected end of file")
	// ErrNotTable is returned when a table view is requested for an HDU that
	// is not a binary table.
	ErrNotTable = errors.New("fits: hdu is not a binary table")
	// ErrNotImage is returned when an image view is requested for an HDU that
	// is not an image.
	ErrNotImage = errors.New("fits: hdu is not an image")
	// ErrClosed is returned for operations on a closed source.
	ErrClosed = errors.New("fits: source is closed")
)

// MissingCardError reports a required header card that is absent.
type MissingCardError struct {
	Keyword string
}

func (e *MissingCardError) Error() string {
	return fmt.Sprintf("fits: missing required card %s", e.Keyword)
}

// MalformedCardError reports a card whose value area could not be parsed as
// the required type. Line is the raw 80-byte card.
type MalformedCardError struct {
	Keyword string
	Line    string
}

func (e *MalformedCardError) Error() string {
	return fmt.Sprintf("fits: malformed card %s: %q", e.Keyword, e.Line)
}

// UnsupportedTFormError reports a TFORM token with an unrecognized type code.
type UnsupportedTFormError struct {
	Token string
}

func (e *UnsupportedTFormError) Error() string {
	return fmt.Sprintf("fits: unsupported TFORM %q", e.Token)
}

// UnsupportedRepeatError reports a repeat count other than 1 on a numeric or
// logical TFORM, a known limitation of this reader.
type UnsupportedRepeatError struct {
	Token string
}

func (e *UnsupportedRepeatError) Error() string {
	return fmt.Sprintf("fits: unsupported repeat count in TFORM %q", e.Token)
}

// RowSizeError reports a disagreement between NAXIS1 and the sum of the
// declared column widths.
type RowSizeError struct {
	Declared int
	Computed int
}

func (e *RowSizeError) Error() string {
	return fmt.Sprintf("fits: row size mismatch: NAXIS1=%d, columns sum to %d", e.Declared, e.Computed)
}

// IndexError reports a request for an HDU beyond the end of the file.
type IndexError struct {
	Requested int
	Total     int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("fits: hdu index %d out of range (file has %d)", e.Requested, e.Total)
}

// MalformedBoolError reports a logical column byte outside {T, F, 0x00}.
type MalformedBoolError struct {
	Byte byte
}

func (e *MalformedBoolError) Error() string {
	return fmt.Sprintf("fits: malformed logical byte 0x%02X", e.Byte)
}

// Warning is a non-fatal condition observed during the catalog walk. The
// walk continues (or stops) as described per kind; warnings never panic and
// are never printed by the core.
type Warning struct {
	Hdu     int    `json:"hdu"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

const (
	// WarnUnknownHduType marks an XTENSION value this reader does not decode;
	// boundaries for such HDUs are a best-effort NAXIS1*NAXIS2 computation.
	WarnUnknownHduType = "unknown-hdu-type"
	// WarnTruncatedHdu marks a walk stopped by a short read.
	WarnTruncatedHdu = "truncated-hdu"
	// WarnBadHeader marks a walk stopped by an unparseable header.
	WarnBadHeader = "bad-header"
)
