package rules

import (
	"os"
	"path/filepath"
	"testing"

	"example.com/fitsgate/internal/fitstest"
)

func evalSingle(t *testing.T, path, checkFunc string) []Diagnostic {
	t.Helper()
	engine := NewEngine(minimalPack(Rule{RuleId: "R", Severity: ERROR, CheckFunc: checkFunc, Message: checkFunc}))
	engine.RegisterBuiltins()
	diags, err := engine.Eval(&Context{InputFile: path})
	if err != nil {
		t.Fatalf("Eval(%s) failed: %v", checkFunc, err)
	}
	return diags
}

func countSeverity(diags []Diagnostic, sev Severity) int {
	n := 0
	for _, d := range diags {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

func TestCheckSimpleCardRejectsBadPrimary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.fits")
	raw := fitstest.HeaderBytes(
		fitstest.BoolCard("SIMPLE", false),
		fitstest.IntCard("BITPIX", 8),
		fitstest.IntCard("NAXIS", 0),
		fitstest.EndCard(),
	)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	diags := evalSingle(t, path, "CheckSimpleCard")
	if countSeverity(diags, ERROR) != 1 {
		t.Fatalf("diags = %+v, want one ERROR", diags)
	}
}

func TestCheckBlockAlignmentRejectsTruncatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "truncated.fits")
	raw := fitstest.EmptyPrimary()
	raw = append(raw, make([]byte, 100)...) // dangling partial block
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	diags := evalSingle(t, path, "CheckBlockAlignment")
	if countSeverity(diags, ERROR) == 0 {
		t.Fatalf("diags = %+v, want alignment error", diags)
	}
}

func TestCheckRequiredCardsReportsMissingTForm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.fits")
	cards := []string{
		fitstest.StrCard("XTENSION", "BINTABLE", ""),
		fitstest.IntCard("BITPIX", 8),
		fitstest.IntCard("NAXIS", 2),
		fitstest.IntCard("NAXIS1", 4),
		fitstest.IntCard("NAXIS2", 1),
		fitstest.IntCard("PCOUNT", 0),
		fitstest.IntCard("GCOUNT", 1),
		fitstest.IntCard("TFIELDS", 2),
		fitstest.StrCard("TFORM1", "J", ""),
		fitstest.EndCard(),
	}
	raw := fitstest.EmptyPrimary()
	raw = append(raw, fitstest.HeaderBytes(cards...)...)
	raw = append(raw, fitstest.PadData(make([]byte, 4))...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	diags := evalSingle(t, path, "CheckRequiredCards")
	found := false
	for _, d := range diags {
		if d.Severity == ERROR && d.Keyword == "TFORM2" && d.Hdu == 1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("diags = %+v, want TFORM2 missing on hdu 1", diags)
	}
}

func TestCheckBitpixValidRejectsOddDepth(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bitpix.fits")
	raw := fitstest.HeaderBytes(
		fitstest.BoolCard("SIMPLE", true),
		fitstest.IntCard("BITPIX", 24),
		fitstest.IntCard("NAXIS", 0),
		fitstest.EndCard(),
	)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	diags := evalSingle(t, path, "CheckBitpixValid")
	if countSeverity(diags, ERROR) != 1 {
		t.Fatalf("diags = %+v, want one ERROR", diags)
	}
}

func TestCheckSchemaBuildsFlagsRepeatAsWarn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repeat.fits")
	cards := []string{
		fitstest.StrCard("XTENSION", "BINTABLE", ""),
		fitstest.IntCard("BITPIX", 8),
		fitstest.IntCard("NAXIS", 2),
		fitstest.IntCard("NAXIS1", 12),
		fitstest.IntCard("NAXIS2", 1),
		fitstest.IntCard("PCOUNT", 0),
		fitstest.IntCard("GCOUNT", 1),
		fitstest.IntCard("TFIELDS", 1),
		fitstest.StrCard("TTYPE1", "vec", ""),
		fitstest.StrCard("TFORM1", "3E", ""),
		fitstest.EndCard(),
	}
	raw := fitstest.EmptyPrimary()
	raw = append(raw, fitstest.HeaderBytes(cards...)...)
	raw = append(raw, fitstest.PadData(make([]byte, 12))...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	diags := evalSingle(t, path, "CheckSchemaBuilds")
	if countSeverity(diags, WARN) != 1 || countSeverity(diags, ERROR) != 0 {
		t.Fatalf("diags = %+v, want one WARN for the repeat", diags)
	}
}

func TestCheckRowSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rowsize.fits")
	cards := []string{
		fitstest.StrCard("XTENSION", "BINTABLE", ""),
		fitstest.IntCard("BITPIX", 8),
		fitstest.IntCard("NAXIS", 2),
		fitstest.IntCard("NAXIS1", 17),
		fitstest.IntCard("NAXIS2", 1),
		fitstest.IntCard("PCOUNT", 0),
		fitstest.IntCard("GCOUNT", 1),
		fitstest.IntCard("TFIELDS", 2),
		fitstest.StrCard("TFORM1", "J", ""),
		fitstest.StrCard("TFORM2", "D", ""),
		fitstest.EndCard(),
	}
	raw := fitstest.EmptyPrimary()
	raw = append(raw, fitstest.HeaderBytes(cards...)...)
	raw = append(raw, fitstest.PadData(make([]byte, 17))...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	diags := evalSingle(t, path, "CheckRowSize")
	if countSeverity(diags, ERROR) != 1 {
		t.Fatalf("diags = %+v, want one ERROR", diags)
	}
}

func TestCheckPaddingFlagsDirtyFill(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "padding.fits")
	cols := []fitstest.Column{{Name: "x", TForm: "J"}}
	data := make([]byte, 4)
	padded := fitstest.PadData(data)
	padded[len(padded)-1] = 0xAA // corrupt the final pad byte
	raw := fitstest.EmptyPrimary()
	raw = append(raw, fitstest.BinTableHeader(4, 1, cols)...)
	raw = append(raw, padded...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	diags := evalSingle(t, path, "CheckPadding")
	if countSeverity(diags, WARN) != 1 {
		t.Fatalf("diags = %+v, want one WARN", diags)
	}
}

func TestWarnUnknownXtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ascii.fits")
	cards := []string{
		fitstest.StrCard("XTENSION", "TABLE", ""),
		fitstest.IntCard("BITPIX", 8),
		fitstest.IntCard("NAXIS", 2),
		fitstest.IntCard("NAXIS1", 10),
		fitstest.IntCard("NAXIS2", 1),
		fitstest.IntCard("PCOUNT", 0),
		fitstest.IntCard("GCOUNT", 1),
		fitstest.EndCard(),
	}
	raw := fitstest.EmptyPrimary()
	raw = append(raw, fitstest.HeaderBytes(cards...)...)
	raw = append(raw, fitstest.PadData(make([]byte, 10))...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	diags := evalSingle(t, path, "WarnUnknownXtension")
	if countSeverity(diags, WARN) != 1 {
		t.Fatalf("diags = %+v, want one WARN", diags)
	}
}

func TestWarnUnknownKeywords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keywords.fits")
	raw := fitstest.HeaderBytes(
		fitstest.BoolCard("SIMPLE", true),
		fitstest.IntCard("BITPIX", 8),
		fitstest.IntCard("NAXIS", 0),
		fitstest.IntCard("MYCUSTOM", 1),
		fitstest.EndCard(),
	)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	diags := evalSingle(t, path, "WarnUnknownKeywords")
	if countSeverity(diags, WARN) != 1 {
		t.Fatalf("diags = %+v, want one WARN", diags)
	}
	if diags[0].Keyword != "MYCUSTOM" {
		t.Fatalf("keyword = %q, want MYCUSTOM", diags[0].Keyword)
	}
}

func TestAcceptanceFailsOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.fits")
	raw := fitstest.HeaderBytes(
		fitstest.BoolCard("SIMPLE", true),
		fitstest.IntCard("BITPIX", 24),
		fitstest.IntCard("NAXIS", 0),
		fitstest.EndCard(),
	)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	engine := NewEngine(minimalPack(Rule{RuleId: "R", Stage: StageHeader, Severity: ERROR, CheckFunc: "CheckBitpixValid", Message: "bitpix"}))
	engine.RegisterBuiltins()
	if _, err := engine.Eval(&Context{InputFile: path}); err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	rep := engine.MakeAcceptance()
	if rep.Summary.Pass {
		t.Fatalf("acceptance should fail")
	}
	if len(rep.GateMatrix) != 1 || rep.GateMatrix[0].Pass {
		t.Fatalf("gate matrix = %+v", rep.GateMatrix)
	}
}
