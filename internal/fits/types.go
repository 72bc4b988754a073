package fits

import (
	"fmt"
	"strings"
)

// TForm identifies the storage type of a table column or image element.
// The binary-table letter codes map I->FormInt16, J->FormInt32, K->FormInt64,
// E->FormFloat32, D->FormFloat64, L->FormBool, <n>A->FormString.
type TForm int

const (
	FormInt16 TForm = iota
	FormInt32
	FormInt64
	FormFloat32
	FormFloat64
	FormBool
	FormString
	// FormUint8 is used for BITPIX=8 image elements. FITS defines these as
	// unsigned bytes; they are never conflated with logical (L) values.
	FormUint8
)

func (f TForm) String() string {
	switch f {
	case FormInt16:
		return "int16"
	case FormInt32:
		return "int32"
	case FormInt64:
		return "int64"
	case FormFloat32:
		return "float32"
	case FormFloat64:
		return "float64"
	case FormBool:
		return "bool"
	case FormString:
		return "string"
	case FormUint8:
		return "uint8"
	default:
		return fmt.Sprintf("tform(%d)", int(f))
	}
}

// Size returns the encoded width in bytes of a single element.
// FormString columns carry their width in ColumnSpec.Length; Size returns 1
// for them (one byte per character).
func (f TForm) Size() int {
	switch f {
	case FormInt16:
		return 2
	case FormInt32, FormFloat32:
		return 4
	case FormInt64, FormFloat64:
		return 8
	case FormBool, FormString, FormUint8:
		return 1
	default:
		return 0
	}
}

// ScalarKind tags the parsed type of a header card value.
type ScalarKind int

const (
	ScalarNone ScalarKind = iota
	ScalarInt
	ScalarFloat
	ScalarBool
	ScalarString
)

// ScalarValue is the typed value field of a header card. Exactly one of the
// payload fields is meaningful, selected by Kind.
type ScalarValue struct {
	Kind  ScalarKind
	Int   int64
	Float float64
	Bool  bool
	Str   string
}

func (v ScalarValue) IsNone() bool { return v.Kind == ScalarNone }

// HeaderCard is one 80-byte header line. Raw always holds the original line
// so callers can re-parse values the fixed-format rules rejected.
type HeaderCard struct {
	Keyword string
	Raw     string
	Value   ScalarValue
	// Name is the single-quoted string appearing in the value area, when one
	// does; it equals Value.Str for string-valued cards.
	Name    string
	Comment string
}

// Header is the ordered card sequence of one HDU, up to and including END.
type Header struct {
	Cards []HeaderCard

	byKeyword map[string]int
}

func newHeader() *Header {
	return &Header{byKeyword: make(map[string]int, 36)}
}

func (h *Header) append(c HeaderCard) {
	if _, dup := h.byKeyword[c.Keyword]; !dup && c.Keyword != "" && c.Keyword != "COMMENT" && c.Keyword != "HISTORY" {
		h.byKeyword[c.Keyword] = len(h.Cards)
	}
	h.Cards = append(h.Cards, c)
}

// Get returns the first card recorded under keyword.
func (h *Header) Get(keyword string) (HeaderCard, bool) {
	i, ok := h.byKeyword[keyword]
	if !ok {
		return HeaderCard{}, false
	}
	return h.Cards[i], true
}

// Has reports whether a card with the given keyword is present.
func (h *Header) Has(keyword string) bool {
	_, ok := h.byKeyword[keyword]
	return ok
}

// Int returns the integer value of keyword. A float, string or valueless
// card yields MalformedCardError; an absent card yields MissingCardError.
func (h *Header) Int(keyword string) (int64, error) {
	c, ok := h.Get(keyword)
	if !ok {
		return 0, &MissingCardError{Keyword: keyword}
	}
	if c.Value.Kind != ScalarInt {
		return 0, &MalformedCardError{Keyword: keyword, Line: c.Raw}
	}
	return c.Value.Int, nil
}

// IntOr returns the integer value of keyword, or def when the card is absent.
func (h *Header) IntOr(keyword string, def int64) (int64, error) {
	c, ok := h.Get(keyword)
	if !ok {
		return def, nil
	}
	if c.Value.Kind != ScalarInt {
		return 0, &MalformedCardError{Keyword: keyword, Line: c.Raw}
	}
	return c.Value.Int, nil
}

// Str returns the string value of keyword.
func (h *Header) Str(keyword string) (string, error) {
	c, ok := h.Get(keyword)
	if !ok {
		return "", &MissingCardError{Keyword: keyword}
	}
	if c.Value.Kind != ScalarString {
		return "", &MalformedCardError{Keyword: keyword, Line: c.Raw}
	}
	return c.Value.Str, nil
}

// StrOr returns the string value of keyword, or def when the card is absent.
func (h *Header) StrOr(keyword, def string) string {
	c, ok := h.Get(keyword)
	if !ok || c.Value.Kind != ScalarString {
		return def
	}
	return c.Value.Str
}

// Bool returns the logical value of keyword.
func (h *Header) Bool(keyword string) (bool, error) {
	c, ok := h.Get(keyword)
	if !ok {
		return false, &MissingCardError{Keyword: keyword}
	}
	if c.Value.Kind != ScalarBool {
		return false, &MalformedCardError{Keyword: keyword, Line: c.Raw}
	}
	return c.Value.Bool, nil
}

// HduType classifies an HDU by its header.
type HduType int

const (
	HduImage HduType = iota
	HduBinTable
	HduUnknown
)

func (t HduType) String() string {
	switch t {
	case HduImage:
		return "IMAGE"
	case HduBinTable:
		return "BINTABLE"
	default:
		return "UNKNOWN"
	}
}

// HduBoundaries locates one HDU inside the file. All offsets are absolute.
// Invariants: HeaderStart <= DataStart <= DataStop <= HduStop, and both
// DataStart-HeaderStart and HduStop-HeaderStart are multiples of 2880.
type HduBoundaries struct {
	Index       int
	Type        HduType
	Xtension    string
	HeaderStart int64
	DataStart   int64
	DataStop    int64
	HduStop     int64
}

// ColumnSpec describes one binary-table column. Length is the character
// width for FormString columns and 1 otherwise.
type ColumnSpec struct {
	Index  int
	Name   string
	Form   TForm
	Length int
}

// ByteWidth returns the encoded width of the column inside a row.
func (c ColumnSpec) ByteWidth() int {
	if c.Form == FormString {
		return c.Length
	}
	return c.Form.Size()
}

// BinaryTableLayout is the decoded row geometry of a BINTABLE HDU.
// SplitOffsets has len(Columns)+1 entries; SplitOffsets[0]=0 and
// SplitOffsets[len(Columns)]=RowBytes.
type BinaryTableLayout struct {
	Columns      []ColumnSpec
	RowBytes     int
	RowCount     int64
	SplitOffsets []int
}

// ImageLayout is the decoded pixel geometry of an image HDU. Axes is in
// header order: Axes[0] is NAXIS1, the fastest-varying axis.
type ImageLayout struct {
	Bitpix       int
	ElementBytes int
	Axes         []int64
	ElementForm  TForm
}

// ElementCount returns the total number of pixels, zero for NAXIS=0.
func (l ImageLayout) ElementCount() int64 {
	if len(l.Axes) == 0 {
		return 0
	}
	n := int64(1)
	for _, ax := range l.Axes {
		n *= ax
	}
	return n
}

// Field is one entry of the emitted schema.
type Field struct {
	Name     string `json:"name"`
	Form     TForm  `json:"-"`
	Type     string `json:"type"`
	Length   int    `json:"length,omitempty"`
	Array    bool   `json:"array,omitempty"`
	Nullable bool   `json:"nullable"`
}

// Schema is the typed view of one HDU derived from its header. Exactly one
// of Table and Image is set, matching Type.
type Schema struct {
	Type   HduType
	Fields []Field
	Table  *BinaryTableLayout
	Image  *ImageLayout
}

// Value is a decoded table cell or image element. Form selects the live
// payload field; callers switch on it. Null is only ever set for FormBool
// (the FITS undefined logical, 0x00).
type Value struct {
	Form  TForm
	Null  bool
	Int   int64
	Float float64
	Bool  bool
	Str   string
}

func (v Value) String() string {
	if v.Null {
		return "null"
	}
	switch v.Form {
	case FormInt16, FormInt32, FormInt64:
		return fmt.Sprintf("%d", v.Int)
	case FormUint8:
		return fmt.Sprintf("%d", v.Int)
	case FormFloat32, FormFloat64:
		return fmt.Sprintf("%g", v.Float)
	case FormBool:
		if v.Bool {
			return "T"
		}
		return "F"
	case FormString:
		return v.Str
	default:
		return "?"
	}
}

// GoValue returns the natural Go representation, used when serializing rows
// to JSON. Null logicals map to nil.
func (v Value) GoValue() any {
	if v.Null {
		return nil
	}
	switch v.Form {
	case FormInt16, FormInt32, FormInt64, FormUint8:
		return v.Int
	case FormFloat32, FormFloat64:
		return v.Float
	case FormBool:
		return v.Bool
	case FormString:
		return v.Str
	default:
		return nil
	}
}

// trimKeyword strips the trailing spaces of an 8-byte keyword token.
func trimKeyword(b []byte) string {
	return strings.TrimRight(string(b), " ")
}
