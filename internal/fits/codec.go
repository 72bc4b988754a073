package fits

import (
	"encoding/binary"
	"math"
	"strings"
)

// decodeValue decodes one element of the given column spec from buf, which
// must hold exactly the column's byte width. All numeric storage is
// big-endian; NaN float payloads pass through bit-exact. Logical bytes
// outside {T, F, 0x00} fail with MalformedBoolError.
func decodeValue(col ColumnSpec, buf []byte) (Value, error) {
	switch col.Form {
	case FormInt16:
		return Value{Form: FormInt16, Int: int64(int16(binary.BigEndian.Uint16(buf)))}, nil
	case FormInt32:
		return Value{Form: FormInt32, Int: int64(int32(binary.BigEndian.Uint32(buf)))}, nil
	case FormInt64:
		return Value{Form: FormInt64, Int: int64(binary.BigEndian.Uint64(buf))}, nil
	case FormFloat32:
		return Value{Form: FormFloat32, Float: float64(math.Float32frombits(binary.BigEndian.Uint32(buf)))}, nil
	case FormFloat64:
		return Value{Form: FormFloat64, Float: math.Float64frombits(binary.BigEndian.Uint64(buf))}, nil
	case FormBool:
		switch buf[0] {
		case 'T':
			return Value{Form: FormBool, Bool: true}, nil
		case 'F':
			return Value{Form: FormBool}, nil
		case 0x00:
			return Value{Form: FormBool, Null: true}, nil
		default:
			return Value{}, &MalformedBoolError{Byte: buf[0]}
		}
	case FormUint8:
		return Value{Form: FormUint8, Int: int64(buf[0])}, nil
	case FormString:
		return Value{Form: FormString, Str: trimFixedString(buf)}, nil
	default:
		return Value{}, &UnsupportedTFormError{Token: col.Form.String()}
	}
}

// trimFixedString strips trailing ASCII spaces and NULs only. Other
// whitespace is kept: astronomical identifiers occasionally carry tabs
// meaningfully.
func trimFixedString(buf []byte) string {
	return strings.TrimRight(string(buf), " \x00")
}
