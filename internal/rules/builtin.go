package rules

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"example.com/fitsgate/internal/dict"
	"example.com/fitsgate/internal/fits"
)

func (e *Engine) RegisterBuiltins() {
	e.Register("CheckSimpleCard", CheckSimpleCard)
	e.Register("CheckEndCard", CheckEndCard)
	e.Register("CheckBlockAlignment", CheckBlockAlignment)
	e.Register("CheckRequiredCards", CheckRequiredCards)
	e.Register("CheckBitpixValid", CheckBitpixValid)
	e.Register("CheckSchemaBuilds", CheckSchemaBuilds)
	e.Register("CheckRowSize", CheckRowSize)
	e.Register("CheckPadding", CheckPadding)
	e.Register("WarnUnknownXtension", WarnUnknownXtension)
	e.Register("WarnUnknownKeywords", WarnUnknownKeywords)
}

func (ctx *Context) diag(rule Rule, hdu int, severity Severity, msg string) Diagnostic {
	return Diagnostic{
		Ts:       time.Now(),
		File:     ctx.InputFile,
		Hdu:      hdu,
		RuleId:   rule.RuleId,
		Severity: severity,
		Message:  msg,
		Refs:     rule.Refs,
	}
}

// CheckSimpleCard verifies that the primary header opens with SIMPLE = T.
func CheckSimpleCard(ctx *Context, rule Rule) ([]Diagnostic, error) {
	hdr, err := ctx.File.Header(0)
	if err != nil {
		return []Diagnostic{ctx.diag(rule, 0, ERROR, "no readable primary header")}, nil
	}
	if len(hdr.Cards) == 0 || hdr.Cards[0].Keyword != "SIMPLE" {
		return []Diagnostic{ctx.diag(rule, 0, ERROR, "primary header does not begin with SIMPLE")}, nil
	}
	simple, err := hdr.Bool("SIMPLE")
	if err != nil || !simple {
		return []Diagnostic{ctx.diag(rule, 0, ERROR, "SIMPLE is not T")}, nil
	}
	return []Diagnostic{ctx.diag(rule, 0, INFO, "primary header conforms")}, nil
}

// CheckEndCard verifies every walked header terminates with END.
func CheckEndCard(ctx *Context, rule Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	count := ctx.File.Count()
	for i := 0; i < count; i++ {
		hdr, err := ctx.File.Header(i)
		if err != nil {
			out = append(out, ctx.diag(rule, i, ERROR, "unreadable header"))
			continue
		}
		last := hdr.Cards[len(hdr.Cards)-1]
		if last.Keyword != "END" {
			out = append(out, ctx.diag(rule, i, ERROR, "header does not end with END"))
		}
	}
	for _, w := range ctx.File.Catalog().Warnings() {
		if w.Kind == fits.WarnTruncatedHdu || w.Kind == fits.WarnBadHeader {
			d := ctx.diag(rule, w.Hdu, ERROR, w.Message)
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, ctx.diag(rule, 0, INFO, fmt.Sprintf("%d headers terminated correctly", count)))
	}
	return out, nil
}

// CheckBlockAlignment verifies the file and every HDU span are whole
// 2880-byte blocks.
func CheckBlockAlignment(ctx *Context, rule Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	info, err := os.Stat(ctx.InputFile)
	if err != nil {
		return nil, err
	}
	if info.Size()%fits.BlockSize != 0 {
		out = append(out, ctx.diag(rule, 0, ERROR,
			fmt.Sprintf("file size %d is not a multiple of %d", info.Size(), fits.BlockSize)))
	}
	count := ctx.File.Count()
	for i := 0; i < count; i++ {
		b, err := ctx.File.Boundaries(i)
		if err != nil {
			continue
		}
		if (b.DataStart-b.HeaderStart)%fits.BlockSize != 0 || (b.HduStop-b.HeaderStart)%fits.BlockSize != 0 {
			d := ctx.diag(rule, i, ERROR, "hdu spans are not block aligned")
			d.Offset = fmt.Sprintf("%d", b.HeaderStart)
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, ctx.diag(rule, 0, INFO, "all spans block aligned"))
	}
	return out, nil
}

// CheckRequiredCards verifies the mandatory keywords per HDU flavor.
func CheckRequiredCards(ctx *Context, rule Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	count := ctx.File.Count()
	for i := 0; i < count; i++ {
		hdr, err := ctx.File.Header(i)
		if err != nil {
			continue
		}
		bounds, err := ctx.File.Boundaries(i)
		if err != nil {
			continue
		}
		required := []string{"BITPIX", "NAXIS"}
		if bounds.Type == fits.HduBinTable {
			required = append(required, "NAXIS1", "NAXIS2", "TFIELDS")
		}
		if naxis, err := hdr.Int("NAXIS"); err == nil {
			for ax := int64(1); ax <= naxis; ax++ {
				required = append(required, fmt.Sprintf("NAXIS%d", ax))
			}
		}
		if tfields, err := hdr.Int("TFIELDS"); err == nil && bounds.Type == fits.HduBinTable {
			for c := int64(1); c <= tfields; c++ {
				required = append(required, fmt.Sprintf("TFORM%d", c))
			}
		}
		for _, keyword := range required {
			if !hdr.Has(keyword) {
				d := ctx.diag(rule, i, ERROR, "missing required card")
				d.Keyword = keyword
				out = append(out, d)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, ctx.diag(rule, 0, INFO, "required cards present"))
	}
	return out, nil
}

// CheckBitpixValid verifies BITPIX is one of the six legal values.
func CheckBitpixValid(ctx *Context, rule Rule) ([]Diagnostic, error) {
	valid := map[int64]bool{8: true, 16: true, 32: true, 64: true, -32: true, -64: true}
	var out []Diagnostic
	count := ctx.File.Count()
	for i := 0; i < count; i++ {
		hdr, err := ctx.File.Header(i)
		if err != nil {
			continue
		}
		bitpix, err := hdr.Int("BITPIX")
		if err != nil {
			d := ctx.diag(rule, i, ERROR, "BITPIX missing or not an integer")
			d.Keyword = "BITPIX"
			out = append(out, d)
			continue
		}
		if !valid[bitpix] {
			d := ctx.diag(rule, i, ERROR, fmt.Sprintf("BITPIX %d is not a legal value", bitpix))
			d.Keyword = "BITPIX"
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, ctx.diag(rule, 0, INFO, "BITPIX values legal"))
	}
	return out, nil
}

// CheckSchemaBuilds verifies every image or binary-table HDU yields a
// schema, surfacing unsupported TFORM tokens and repeats.
func CheckSchemaBuilds(ctx *Context, rule Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	count := ctx.File.Count()
	for i := 0; i < count; i++ {
		bounds, err := ctx.File.Boundaries(i)
		if err != nil || bounds.Type == fits.HduUnknown {
			continue
		}
		if _, err := ctx.File.Schema(i); err != nil {
			severity := ERROR
			var repeat *fits.UnsupportedRepeatError
			if errors.As(err, &repeat) {
				// Repeat counts are a known reader limitation, not file damage.
				severity = WARN
			}
			out = append(out, ctx.diag(rule, i, severity, err.Error()))
		}
	}
	if len(out) == 0 {
		out = append(out, ctx.diag(rule, 0, INFO, "schemas build for all decodable HDUs"))
	}
	return out, nil
}

// CheckRowSize verifies the declared NAXIS1 against the summed column
// widths of every binary table.
func CheckRowSize(ctx *Context, rule Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	count := ctx.File.Count()
	for i := 0; i < count; i++ {
		bounds, err := ctx.File.Boundaries(i)
		if err != nil || bounds.Type != fits.HduBinTable {
			continue
		}
		_, err = ctx.File.Schema(i)
		var mismatch *fits.RowSizeError
		if errors.As(err, &mismatch) {
			out = append(out, ctx.diag(rule, i, ERROR,
				fmt.Sprintf("NAXIS1=%d but columns sum to %d", mismatch.Declared, mismatch.Computed)))
		}
	}
	if len(out) == 0 {
		out = append(out, ctx.diag(rule, 0, INFO, "row sizes consistent"))
	}
	return out, nil
}

// CheckPadding verifies the data areas are padded to their block boundary
// with zero fill.
func CheckPadding(ctx *Context, rule Rule) ([]Diagnostic, error) {
	f, err := os.Open(ctx.InputFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []Diagnostic
	count := ctx.File.Count()
	for i := 0; i < count; i++ {
		bounds, err := ctx.File.Boundaries(i)
		if err != nil {
			continue
		}
		padLen := bounds.HduStop - bounds.DataStop
		if padLen == 0 {
			continue
		}
		pad := make([]byte, padLen)
		if _, err := f.ReadAt(pad, bounds.DataStop); err != nil {
			d := ctx.diag(rule, i, ERROR, "data padding unreadable")
			d.Offset = fmt.Sprintf("%d", bounds.DataStop)
			out = append(out, d)
			continue
		}
		for off, b := range pad {
			if b != 0 {
				d := ctx.diag(rule, i, WARN, fmt.Sprintf("data padding byte 0x%02X at offset %d", b, bounds.DataStop+int64(off)))
				d.Offset = fmt.Sprintf("%d", bounds.DataStop+int64(off))
				out = append(out, d)
				break
			}
		}
	}
	if len(out) == 0 {
		out = append(out, ctx.diag(rule, 0, INFO, "data areas zero padded"))
	}
	return out, nil
}

// WarnUnknownXtension surfaces HDUs with extension types this reader does
// not decode.
func WarnUnknownXtension(ctx *Context, rule Rule) ([]Diagnostic, error) {
	var out []Diagnostic
	ctx.File.Count()
	for _, w := range ctx.File.Catalog().Warnings() {
		if w.Kind != fits.WarnUnknownHduType {
			continue
		}
		out = append(out, ctx.diag(rule, w.Hdu, WARN, w.Message))
	}
	if len(out) == 0 {
		out = append(out, ctx.diag(rule, 0, INFO, "all extension types recognized"))
	}
	return out, nil
}

// WarnUnknownKeywords surfaces header keywords absent from the dictionary.
func WarnUnknownKeywords(ctx *Context, rule Rule) ([]Diagnostic, error) {
	store := ctx.Dict
	if store == nil {
		store = dict.Builtin()
	}
	var out []Diagnostic
	count := ctx.File.Count()
	for i := 0; i < count; i++ {
		hdr, err := ctx.File.Header(i)
		if err != nil {
			continue
		}
		unknown := make(map[string]bool)
		for _, card := range hdr.Cards {
			if card.Keyword == "" {
				continue
			}
			if _, ok := store.Lookup(card.Keyword); !ok {
				unknown[card.Keyword] = true
			}
		}
		keywords := make([]string, 0, len(unknown))
		for k := range unknown {
			keywords = append(keywords, k)
		}
		sort.Strings(keywords)
		for _, keyword := range keywords {
			d := ctx.diag(rule, i, WARN, "keyword not in dictionary")
			d.Keyword = keyword
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		out = append(out, ctx.diag(rule, 0, INFO, "all keywords known"))
	}
	return out, nil
}
