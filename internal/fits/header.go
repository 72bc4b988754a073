package fits

import (
	"strconv"
	"strings"
)

const (
	// BlockSize is the FITS allocation unit: headers and data areas both
	// occupy whole 2880-byte blocks.
	BlockSize = 2880
	// CardSize is the length of one header line.
	CardSize      = 80
	cardsPerBlock = BlockSize / CardSize
)

// ReadHeader parses one HDU header starting at offset. Blocks of 36 cards
// are consumed until the END card; trailing cards of the final block are
// dropped. It returns the header and the offset of the first byte past the
// header's last block. A short block read fails with ErrUnexpectedEOF.
func ReadHeader(src ByteSource, offset int64) (*Header, int64, error) {
	hdr := newHeader()
	block := make([]byte, BlockSize)
	cursor := offset
	for {
		if err := readExact(src, cursor, block); err != nil {
			return nil, 0, err
		}
		cursor += BlockSize
		for i := 0; i < cardsPerBlock; i++ {
			line := block[i*CardSize : (i+1)*CardSize]
			card := parseCard(line)
			if card.Keyword == "" && strings.TrimSpace(card.Raw) == "" {
				continue
			}
			hdr.append(card)
			if card.Keyword == "END" {
				return hdr, cursor, nil
			}
		}
	}
}

// parseCard parses one 80-byte header line per the fixed-format rules:
// keyword in bytes [0..8), value indicator "= " in bytes [8..10), value and
// optional comment in bytes [10..80). Cards without the indicator are
// commentary. A value field that parses as none of string, integer, float,
// or logical is preserved only in Raw; Value stays none.
func parseCard(line []byte) HeaderCard {
	card := HeaderCard{Raw: string(line)}
	card.Keyword = trimKeyword(line[:8])
	if len(line) < 10 || line[8] != '=' || line[9] != ' ' {
		card.Comment = strings.TrimSpace(string(line[8:]))
		return card
	}
	area := string(line[10:])
	if trimmed := strings.TrimLeft(area, " "); strings.HasPrefix(trimmed, "'") {
		str, rest, ok := parseQuoted(trimmed)
		if ok {
			card.Value = ScalarValue{Kind: ScalarString, Str: str}
			card.Name = str
			if j := strings.Index(rest, "/"); j >= 0 {
				card.Comment = strings.TrimSpace(rest[j+1:])
			}
		}
		return card
	}
	value := area
	if j := strings.Index(area, "/"); j >= 0 {
		value = area[:j]
		card.Comment = strings.TrimSpace(area[j+1:])
	}
	card.Value = parseScalar(strings.TrimSpace(value))
	return card
}

// parseQuoted consumes a single-quoted FITS string from s, which must start
// with a quote. A doubled quote inside the body is an escaped quote. It
// returns the string (right-trimmed of spaces, per the standard), the
// remainder of the line past the closing quote, and whether a closing quote
// was found.
func parseQuoted(s string) (string, string, bool) {
	var b strings.Builder
	i := 1
	for i < len(s) {
		c := s[i]
		if c != '\'' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i += 2
			continue
		}
		return strings.TrimRight(b.String(), " "), s[i+1:], true
	}
	return "", "", false
}

// parseScalar parses a trimmed fixed-format value field. FITS logicals are
// the single characters T and F; D-exponent floats are normalized to E.
func parseScalar(field string) ScalarValue {
	if field == "" {
		return ScalarValue{}
	}
	switch field {
	case "T":
		return ScalarValue{Kind: ScalarBool, Bool: true}
	case "F":
		return ScalarValue{Kind: ScalarBool}
	}
	if n, err := strconv.ParseInt(field, 10, 64); err == nil {
		return ScalarValue{Kind: ScalarInt, Int: n}
	}
	normalized := strings.Replace(field, "D", "E", 1)
	if x, err := strconv.ParseFloat(normalized, 64); err == nil {
		return ScalarValue{Kind: ScalarFloat, Float: x}
	}
	return ScalarValue{}
}
