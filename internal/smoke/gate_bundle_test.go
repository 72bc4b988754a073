package smoke

import (
	"os"
	"path/filepath"
	"testing"

	"example.com/fitsgate/internal/fits"
	"example.com/fitsgate/internal/fitstest"
	"example.com/fitsgate/internal/manifest"
	"example.com/fitsgate/internal/report"
	"example.com/fitsgate/internal/rules"
)

// TestGateBundle drives the full pipeline: generate a sample file, walk and
// decode it, validate it against the core rule pack, and render the
// acceptance artifacts.
func TestGateBundle(t *testing.T) {
	dir := t.TempDir()
	fitsPath := filepath.Join(dir, fitstest.SurveyFileName)
	if err := os.WriteFile(fitsPath, fitstest.BuildSurvey(), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	// Decode spot checks through a fresh handle.
	f, err := fits.Open(fitsPath)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n := f.Count(); n != 4 {
		t.Fatalf("Count = %d, want 4", n)
	}
	table, err := f.Table(1)
	if err != nil {
		t.Fatalf("Table(1): %v", err)
	}
	col, err := table.ReadColumnRange(3, 0, table.RowCount())
	if err != nil {
		t.Fatalf("ReadColumnRange: %v", err)
	}
	for i, v := range col {
		if v.Int != int64(i) {
			t.Fatalf("Index[%d] = %d", i, v.Int)
		}
	}
	f.Close()

	// Validate with the shipped core pack.
	rulesPath := filepath.Join("..", "..", "profiles", "fits-3.0", "rules-min.json")
	rp, err := rules.LoadRulePack(rulesPath)
	if err != nil {
		t.Skipf("profiles not present: %v", err)
	}
	engine := rules.NewEngine(rp)
	engine.RegisterBuiltins()
	diags, err := engine.Eval(&rules.Context{InputFile: fitsPath, Profile: rp.Profile})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	for _, d := range diags {
		if d.Severity == rules.ERROR {
			t.Fatalf("sample should validate cleanly, got %+v", d)
		}
	}
	rep := engine.MakeAcceptance()
	if !rep.Summary.Pass {
		t.Fatalf("acceptance = %+v", rep.Summary)
	}

	// Artifacts: NDJSON diagnostics, acceptance JSON, manifest, PDF with QR.
	diagPath := filepath.Join(dir, "diagnostics.ndjson")
	if err := engine.WriteDiagnosticsNDJSON(diagPath); err != nil {
		t.Fatalf("WriteDiagnosticsNDJSON: %v", err)
	}
	accPath := filepath.Join(dir, "acceptance.json")
	if err := report.SaveAcceptanceJSON(rep, accPath); err != nil {
		t.Fatalf("SaveAcceptanceJSON: %v", err)
	}
	m, err := manifest.Build([]string{fitsPath, diagPath, accPath})
	if err != nil {
		t.Fatalf("manifest.Build: %v", err)
	}
	digest, err := manifest.Digest(m)
	if err != nil {
		t.Fatalf("manifest.Digest: %v", err)
	}
	pdfPath := filepath.Join(dir, "acceptance.pdf")
	if err := report.SaveAcceptancePDF(rep, pdfPath, report.PDFOptions{ManifestHash: digest}); err != nil {
		t.Fatalf("SaveAcceptancePDF: %v", err)
	}
	for _, p := range []string{diagPath, accPath, pdfPath} {
		info, err := os.Stat(p)
		if err != nil || info.Size() == 0 {
			t.Fatalf("artifact %s missing or empty (%v)", p, err)
		}
	}
}

// TestParallelHandles exercises the documented concurrency model: one handle
// per goroutine, disjoint row ranges, identical boundary computations.
func TestParallelHandles(t *testing.T) {
	dir := t.TempDir()
	fitsPath := filepath.Join(dir, fitstest.SurveyFileName)
	if err := os.WriteFile(fitsPath, fitstest.BuildSurvey(), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	type part struct {
		start, stop int64
	}
	parts := []part{{0, 2}, {2, 4}, {4, 5}}
	results := make([][]fits.Value, len(parts))
	errs := make([]error, len(parts))
	done := make(chan int, len(parts))
	for w, pr := range parts {
		go func(w int, pr part) {
			defer func() { done <- w }()
			f, err := fits.Open(fitsPath)
			if err != nil {
				errs[w] = err
				return
			}
			defer f.Close()
			table, err := f.Table(1)
			if err != nil {
				errs[w] = err
				return
			}
			results[w], errs[w] = table.ReadColumnRange(3, pr.start, pr.stop)
		}(w, pr)
	}
	for range parts {
		<-done
	}
	var flat []fits.Value
	for w := range parts {
		if errs[w] != nil {
			t.Fatalf("worker %d: %v", w, errs[w])
		}
		flat = append(flat, results[w]...)
	}
	if len(flat) != fitstest.SurveyRowCount {
		t.Fatalf("rows = %d", len(flat))
	}
	for i, v := range flat {
		if v.Int != int64(i) {
			t.Fatalf("row %d = %d", i, v.Int)
		}
	}
}
