package fits

import (
	"errors"
	"fmt"
	"testing"

	"example.com/fitsgate/internal/fitstest"
)

func TestParseCardScalars(t *testing.T) {
	tests := []struct {
		name string
		line string
		want ScalarValue
	}{
		{name: "integer", line: fitstest.IntCard("NAXIS1", 34), want: ScalarValue{Kind: ScalarInt, Int: 34}},
		{name: "negative integer", line: fitstest.IntCard("BZERO", -32768), want: ScalarValue{Kind: ScalarInt, Int: -32768}},
		{name: "float", line: fitstest.Card("CRVAL1", "12.625", ""), want: ScalarValue{Kind: ScalarFloat, Float: 12.625}},
		{name: "d exponent float", line: fitstest.Card("CRVAL2", "1.5D2", ""), want: ScalarValue{Kind: ScalarFloat, Float: 150}},
		{name: "logical true", line: fitstest.BoolCard("SIMPLE", true), want: ScalarValue{Kind: ScalarBool, Bool: true}},
		{name: "logical false", line: fitstest.BoolCard("EXTEND", false), want: ScalarValue{Kind: ScalarBool, Bool: false}},
		{name: "string", line: fitstest.StrCard("XTENSION", "BINTABLE", ""), want: ScalarValue{Kind: ScalarString, Str: "BINTABLE"}},
		{name: "unparseable token", line: fitstest.Card("DATE", "2026-08-05T00:00:00", ""), want: ScalarValue{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			card := parseCard([]byte(tc.line))
			if card.Value != tc.want {
				t.Fatalf("value = %+v, want %+v", card.Value, tc.want)
			}
			if len(card.Raw) != CardSize {
				t.Fatalf("raw length = %d, want %d", len(card.Raw), CardSize)
			}
		})
	}
}

func TestParseCardCommentSplit(t *testing.T) {
	card := parseCard([]byte(fitstest.Card("BITPIX", "8", "bits per pixel")))
	if card.Value.Kind != ScalarInt || card.Value.Int != 8 {
		t.Fatalf("value = %+v, want int 8", card.Value)
	}
	if card.Comment != "bits per pixel" {
		t.Fatalf("comment = %q", card.Comment)
	}
}

func TestParseCardSlashInsideQuotes(t *testing.T) {
	line := fitstest.StrCard("ORIGIN", "a/b", "site")
	card := parseCard([]byte(line))
	if card.Value.Str != "a/b" {
		t.Fatalf("value = %q, want a/b", card.Value.Str)
	}
	if card.Comment != "site" {
		t.Fatalf("comment = %q, want site", card.Comment)
	}
	if card.Name != "a/b" {
		t.Fatalf("name = %q, want a/b", card.Name)
	}
}

func TestParseCardEscapedQuote(t *testing.T) {
	card := parseCard([]byte(fitstest.StrCard("OBSERVER", "Toto l'asticot", "")))
	if card.Value.Str != "Toto l'asticot" {
		t.Fatalf("value = %q, want Toto l'asticot", card.Value.Str)
	}
}

func TestParseCardCommentary(t *testing.T) {
	card := parseCard([]byte(fitstest.CommentCard("COMMENT", "Here's some commentary about this FITS file.")))
	if card.Keyword != "COMMENT" {
		t.Fatalf("keyword = %q", card.Keyword)
	}
	if !card.Value.IsNone() {
		t.Fatalf("value = %+v, want none", card.Value)
	}
	if card.Comment != "Here's some commentary about this FITS file." {
		t.Fatalf("comment = %q", card.Comment)
	}
}

func TestReadHeaderSingleBlock(t *testing.T) {
	src := NewBytesSource(fitstest.EmptyPrimary())
	hdr, end, err := ReadHeader(src, 0)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if end != BlockSize {
		t.Fatalf("end = %d, want %d", end, BlockSize)
	}
	if got := len(hdr.Cards); got != 4 {
		t.Fatalf("cards = %d, want 4 (SIMPLE, BITPIX, NAXIS, END)", got)
	}
	if hdr.Cards[len(hdr.Cards)-1].Keyword != "END" {
		t.Fatalf("last card = %q, want END", hdr.Cards[len(hdr.Cards)-1].Keyword)
	}
	simple, err := hdr.Bool("SIMPLE")
	if err != nil || !simple {
		t.Fatalf("SIMPLE = %v, %v", simple, err)
	}
}

func TestReadHeaderMultiBlock(t *testing.T) {
	cards := []string{fitstest.BoolCard("SIMPLE", true), fitstest.IntCard("BITPIX", 8), fitstest.IntCard("NAXIS", 0)}
	for i := 0; i < 40; i++ {
		cards = append(cards, fitstest.CommentCard("HISTORY", fmt.Sprintf("pass %d", i)))
	}
	cards = append(cards, fitstest.EndCard())
	raw := fitstest.HeaderBytes(cards...)
	if len(raw) != 2*BlockSize {
		t.Fatalf("fixture spans %d bytes, want two blocks", len(raw))
	}
	hdr, end, err := ReadHeader(NewBytesSource(raw), 0)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if end != 2*BlockSize {
		t.Fatalf("end = %d, want %d", end, 2*BlockSize)
	}
	if got := len(hdr.Cards); got != 44 {
		t.Fatalf("cards = %d, want 44", got)
	}
}

func TestReadHeaderTypedAccessors(t *testing.T) {
	hdr, _, err := ReadHeader(NewBytesSource(fitstest.HeaderBytes(
		fitstest.BoolCard("SIMPLE", true),
		fitstest.IntCard("BITPIX", 8),
		fitstest.Card("EXPTIME", "1.5", ""),
		fitstest.EndCard(),
	)), 0)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if _, err := hdr.Int("EXPTIME"); err == nil {
		t.Fatalf("Int on float card should fail")
	} else {
		var malformed *MalformedCardError
		if !errors.As(err, &malformed) {
			t.Fatalf("error = %v, want MalformedCardError", err)
		}
	}
	if _, err := hdr.Int("NAXIS9"); err == nil {
		t.Fatalf("Int on absent card should fail")
	} else {
		var missing *MissingCardError
		if !errors.As(err, &missing) {
			t.Fatalf("error = %v, want MissingCardError", err)
		}
	}
}

func TestReadHeaderMissingEnd(t *testing.T) {
	raw := fitstest.HeaderBytes(fitstest.BoolCard("SIMPLE", true))
	_, _, err := ReadHeader(NewBytesSource(raw), 0)
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("error = %v, want ErrUnexpectedEOF", err)
	}
}

func TestReadHeaderShortBlock(t *testing.T) {
	raw := fitstest.EmptyPrimary()[:100]
	_, _, err := ReadHeader(NewBytesSource(raw), 0)
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("error = %v, want ErrUnexpectedEOF", err)
	}
}
