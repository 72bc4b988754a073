package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"example.com/fitsgate/internal/fitstest"
)

func writeSyntheticFits(t *testing.T, path string) {
	t.Helper()
	cols := []fitstest.Column{
		{Name: "target", TForm: "10A"},
		{Name: "RunId", TForm: "J"},
	}
	w := &fitstest.RowWriter{}
	w.String("NGC0000000", 10).Int32(1)
	raw := fitstest.EmptyPrimary()
	raw = append(raw, fitstest.BinTableHeader(14, 1, cols)...)
	raw = append(raw, fitstest.PadData(w.Bytes())...)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestBatchCmdGeneratesOutputs(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "inputs")
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		t.Fatalf("MkdirAll inputs: %v", err)
	}
	outDir := filepath.Join(root, "out")

	writeSyntheticFits(t, filepath.Join(inputDir, "alpha.fits"))
	nestedDir := filepath.Join(inputDir, "nested")
	if err := os.MkdirAll(nestedDir, 0o755); err != nil {
		t.Fatalf("MkdirAll nested: %v", err)
	}
	writeSyntheticFits(t, filepath.Join(nestedDir, "beta.fits"))

	rulesPath := filepath.Join("..", "..", "profiles", "fits-3.0", "rules-min.json")
	if _, err := os.Stat(rulesPath); err != nil {
		t.Skipf("profiles not present: %v", err)
	}

	batchCmd([]string{
		"--in", inputDir,
		"--profile", "fits-3.0",
		"--rules", rulesPath,
		"--out-dir", outDir,
		"--concurrency", "2",
	})

	for _, base := range []string{"alpha", "beta"} {
		for _, suffix := range []string{".diagnostics.ndjson", ".acceptance.json"} {
			path := filepath.Join(outDir, base+suffix)
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("missing output %s: %v", path, err)
			}
		}
	}

	summaryPath := filepath.Join(outDir, "batch_summary.json")
	data, err := os.ReadFile(summaryPath)
	if err != nil {
		t.Fatalf("ReadFile summary: %v", err)
	}
	var results []batchResult
	if err := json.Unmarshal(data, &results); err != nil {
		t.Fatalf("summary json: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	for _, res := range results {
		if !res.Pass || res.Err != "" {
			t.Fatalf("result = %+v, want pass", res)
		}
	}
}

func TestCollectFitsFiles(t *testing.T) {
	root := t.TempDir()
	writeSyntheticFits(t, filepath.Join(root, "a.fits"))
	if err := os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	files, err := collectFitsFiles(root)
	if err != nil {
		t.Fatalf("collectFitsFiles: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "a.fits" {
		t.Fatalf("files = %v", files)
	}
}

func TestParseCoords(t *testing.T) {
	coords, err := parseCoords("1, 2,3")
	if err != nil {
		t.Fatalf("parseCoords: %v", err)
	}
	if len(coords) != 3 || coords[0] != 1 || coords[2] != 3 {
		t.Fatalf("coords = %v", coords)
	}
	if _, err := parseCoords("1,x"); err == nil {
		t.Fatalf("bad coordinate should fail")
	}
}
