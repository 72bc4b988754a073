package fits

import (
	"fmt"
	"strconv"
)

// BuildSchema derives the typed schema of one HDU from its parsed header.
// BINTABLE headers produce a column layout with split offsets; image
// headers (the primary, or XTENSION='IMAGE') produce an element layout.
// Other extension types are rejected. No partial schema is ever returned.
func BuildSchema(hdr *Header) (*Schema, error) {
	xtension := hdr.StrOr("XTENSION", "")
	switch xtension {
	case "", "IMAGE":
		return buildImageSchema(hdr)
	case "BINTABLE":
		return buildTableSchema(hdr)
	default:
		return nil, &UnsupportedTFormError{Token: xtension}
	}
}

func buildTableSchema(hdr *Header) (*Schema, error) {
	tfields, err := hdr.Int("TFIELDS")
	if err != nil {
		return nil, err
	}
	rowBytes, err := hdr.Int("NAXIS1")
	if err != nil {
		return nil, err
	}
	rowCount, err := hdr.Int("NAXIS2")
	if err != nil {
		return nil, err
	}
	layout := &BinaryTableLayout{
		Columns:      make([]ColumnSpec, 0, int(tfields)),
		RowBytes:     int(rowBytes),
		RowCount:     rowCount,
		SplitOffsets: make([]int, 1, int(tfields)+1),
	}
	offset := 0
	for i := 1; i <= int(tfields); i++ {
		formKey := fmt.Sprintf("TFORM%d", i)
		token, err := hdr.Str(formKey)
		if err != nil {
			return nil, err
		}
		form, length, err := ParseTForm(token)
		if err != nil {
			return nil, err
		}
		col := ColumnSpec{
			Index:  i - 1,
			Name:   hdr.StrOr(fmt.Sprintf("TTYPE%d", i), fmt.Sprintf("col%d", i)),
			Form:   form,
			Length: length,
		}
		layout.Columns = append(layout.Columns, col)
		offset += col.ByteWidth()
		layout.SplitOffsets = append(layout.SplitOffsets, offset)
	}
	if offset != layout.RowBytes {
		return nil, &RowSizeError{Declared: layout.RowBytes, Computed: offset}
	}
	schema := &Schema{Type: HduBinTable, Table: layout}
	for _, col := range layout.Columns {
		f := Field{Name: col.Name, Form: col.Form, Type: col.Form.String(), Nullable: true}
		if col.Form == FormString {
			f.Length = col.Length
		}
		schema.Fields = append(schema.Fields, f)
	}
	return schema, nil
}

func buildImageSchema(hdr *Header) (*Schema, error) {
	bitpix, err := hdr.Int("BITPIX")
	if err != nil {
		return nil, err
	}
	form, ok := bitpixForm(int(bitpix))
	if !ok {
		c, _ := hdr.Get("BITPIX")
		return nil, &MalformedCardError{Keyword: "BITPIX", Line: c.Raw}
	}
	naxis, err := hdr.Int("NAXIS")
	if err != nil {
		return nil, err
	}
	layout := &ImageLayout{
		Bitpix:      int(bitpix),
		ElementForm: form,
	}
	layout.ElementBytes = int(bitpix)
	if layout.ElementBytes < 0 {
		layout.ElementBytes = -layout.ElementBytes
	}
	layout.ElementBytes /= 8
	for i := int64(1); i <= naxis; i++ {
		ax, err := hdr.Int(fmt.Sprintf("NAXIS%d", i))
		if err != nil {
			return nil, err
		}
		layout.Axes = append(layout.Axes, ax)
	}
	return &Schema{
		Type:   HduImage,
		Fields: []Field{{Name: "Image", Form: form, Type: form.String(), Array: true, Nullable: true}},
		Image:  layout,
	}, nil
}

// bitpixForm maps a BITPIX value to its element form. BITPIX=8 elements are
// unsigned bytes per the standard, not logicals.
func bitpixForm(bitpix int) (TForm, bool) {
	switch bitpix {
	case 8:
		return FormUint8, true
	case 16:
		return FormInt16, true
	case 32:
		return FormInt32, true
	case 64:
		return FormInt64, true
	case -32:
		return FormFloat32, true
	case -64:
		return FormFloat64, true
	default:
		return 0, false
	}
}

// ParseTForm parses a binary-table TFORM token into a form and, for string
// columns, a character width. Numeric and logical forms only accept an
// implicit or explicit repeat of 1; larger repeats are a known limitation
// surfaced as UnsupportedRepeatError rather than silently decoding the
// first element.
func ParseTForm(token string) (TForm, int, error) {
	i := 0
	for i < len(token) && token[i] >= '0' && token[i] <= '9' {
		i++
	}
	if i == len(token) {
		return 0, 0, &UnsupportedTFormError{Token: token}
	}
	repeat := 1
	if i > 0 {
		n, err := strconv.Atoi(token[:i])
		if err != nil {
			return 0, 0, &UnsupportedTFormError{Token: token}
		}
		repeat = n
	}
	code := token[i]
	if rest := token[i+1:]; len(rest) > 0 {
		// Trailing characters after the type code (e.g. TDIM hints) are not
		// part of the forms this reader supports.
		return 0, 0, &UnsupportedTFormError{Token: token}
	}
	if code == 'A' {
		if repeat < 1 {
			return 0, 0, &UnsupportedRepeatError{Token: token}
		}
		return FormString, repeat, nil
	}
	var form TForm
	switch code {
	case 'I':
		form = FormInt16
	case 'J':
		form = FormInt32
	case 'K':
		form = FormInt64
	case 'E':
		form = FormFloat32
	case 'D':
		form = FormFloat64
	case 'L':
		form = FormBool
	default:
		return 0, 0, &UnsupportedTFormError{Token: string(code)}
	}
	if repeat != 1 {
		return 0, 0, &UnsupportedRepeatError{Token: token}
	}
	return form, 1, nil
}
