package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"text/tabwriter"

	"example.com/fitsgate/internal/common"
	"example.com/fitsgate/internal/dict"
	"example.com/fitsgate/internal/fits"
	"example.com/fitsgate/internal/manifest"
	"example.com/fitsgate/internal/report"
	"example.com/fitsgate/internal/rules"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "inspect":
		inspectCmd(os.Args[2:])
	case "schema":
		schemaCmd(os.Args[2:])
	case "rows":
		rowsCmd(os.Args[2:])
	case "image":
		imageCmd(os.Args[2:])
	case "validate":
		validateCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "manifest":
		manifestCmd(os.Args[2:])
	case "batch":
		batchCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`fitsctl %s (built %s) <command> [options]

Commands:
  inspect   --in <file.fits>
  schema    --in <file.fits> --hdu <n>
  rows      --in <file.fits> --hdu <n> [--start <row> --stop <row>] [--column <name>]
  image     --in <file.fits> --hdu <n> [--origin x,y,... --extent x,y,...]
  validate  --in <file.fits> --profile <profile> [--rules <rulepack.json>] [--dict <dict.json>] --out <diagnostics.ndjson> --acceptance <acceptance.json>
  report    --acceptance <acceptance.json> --out <report.pdf> [--lang <en|tr>] [--manifest <manifest.json>]
  manifest  --inputs <comma-separated> --out <manifest.json>
  batch     --in <dir> --profile <profile> [--rules <rulepack.json>] --out-dir <dir> [--concurrency <n>]
`, version, buildDate)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func inspectCmd(args []string) {
	fsFlags := flag.NewFlagSet("inspect", flag.ExitOnError)
	in := fsFlags.String("in", "", "input .fits")
	fsFlags.Parse(args)
	if *in == "" {
		fail("required: --in")
	}
	f, err := fits.Open(*in)
	if err != nil {
		fail("open: %v", err)
	}
	defer f.Close()
	count := f.Count()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "HDU\tTYPE\tHEADER\tDATA\tSTOP\tCARDS")
	for i := 0; i < count; i++ {
		bounds, err := f.Boundaries(i)
		if err != nil {
			break
		}
		hdr, err := f.Header(i)
		if err != nil {
			break
		}
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\n",
			bounds.Index, bounds.Type, bounds.HeaderStart, bounds.DataStart, bounds.HduStop, len(hdr.Cards))
	}
	w.Flush()
	for _, warning := range f.Catalog().Warnings() {
		fmt.Printf("warning: hdu %d: %s: %s\n", warning.Hdu, warning.Kind, warning.Message)
	}
}

func schemaCmd(args []string) {
	fsFlags := flag.NewFlagSet("schema", flag.ExitOnError)
	in := fsFlags.String("in", "", "input .fits")
	hdu := fsFlags.Int("hdu", 0, "HDU index")
	fsFlags.Parse(args)
	if *in == "" {
		fail("required: --in")
	}
	f, err := fits.Open(*in)
	if err != nil {
		fail("open: %v", err)
	}
	defer f.Close()
	schema, err := f.Schema(*hdu)
	if err != nil {
		fail("schema: %v", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "HDU %d (%s)\n", *hdu, schema.Type)
	fmt.Fprintln(w, "FIELD\tTYPE\tNULLABLE")
	for _, field := range schema.Fields {
		typ := field.Type
		if field.Form == fits.FormString && field.Length > 0 {
			typ = fmt.Sprintf("string(%d)", field.Length)
		}
		if field.Array {
			typ = "array of " + typ
		}
		fmt.Fprintf(w, "%s\t%s\t%v\n", field.Name, typ, field.Nullable)
	}
	w.Flush()
	if schema.Table != nil {
		fmt.Printf("rows: %d, row bytes: %d\n", schema.Table.RowCount, schema.Table.RowBytes)
	}
	if schema.Image != nil {
		fmt.Printf("axes: %v, element bytes: %d\n", schema.Image.Axes, schema.Image.ElementBytes)
	}
}

func rowsCmd(args []string) {
	fsFlags := flag.NewFlagSet("rows", flag.ExitOnError)
	in := fsFlags.String("in", "", "input .fits")
	hdu := fsFlags.Int("hdu", 1, "HDU index")
	start := fsFlags.Int64("start", 0, "first row")
	stop := fsFlags.Int64("stop", -1, "row past the last (default: all rows)")
	column := fsFlags.String("column", "", "restrict output to one column")
	fsFlags.Parse(args)
	if *in == "" {
		fail("required: --in")
	}
	f, err := fits.Open(*in)
	if err != nil {
		fail("open: %v", err)
	}
	defer f.Close()
	table, err := f.Table(*hdu)
	if err != nil {
		fail("table: %v", err)
	}
	if *stop < 0 {
		*stop = table.RowCount()
	}
	layout := table.Layout()
	enc := json.NewEncoder(os.Stdout)
	if *column != "" {
		col := -1
		for i, c := range layout.Columns {
			if c.Name == *column {
				col = i
			}
		}
		if col < 0 {
			fail("no column %q", *column)
		}
		values, err := table.ReadColumnRange(col, *start, *stop)
		if err != nil {
			fail("read column: %v", err)
		}
		for i, v := range values {
			enc.Encode(map[string]any{"row": *start + int64(i), *column: v.GoValue()})
		}
		return
	}
	for row := *start; row < *stop; row++ {
		values, err := table.ReadRow(row)
		if err != nil {
			fail("read row %d: %v", row, err)
		}
		cells := make(map[string]any, len(values))
		for i, v := range values {
			cells[layout.Columns[i].Name] = v.GoValue()
		}
		enc.Encode(map[string]any{"row": row, "values": cells})
	}
}

func imageCmd(args []string) {
	fsFlags := flag.NewFlagSet("image", flag.ExitOnError)
	in := fsFlags.String("in", "", "input .fits")
	hdu := fsFlags.Int("hdu", 0, "HDU index")
	originFlag := fsFlags.String("origin", "", "slab origin, comma separated")
	extentFlag := fsFlags.String("extent", "", "slab extent, comma separated")
	fsFlags.Parse(args)
	if *in == "" {
		fail("required: --in")
	}
	f, err := fits.Open(*in)
	if err != nil {
		fail("open: %v", err)
	}
	defer f.Close()
	im, err := f.Image(*hdu)
	if err != nil {
		fail("image: %v", err)
	}
	dims := im.Dimensions()
	origin := make([]int64, len(dims))
	extent := append([]int64(nil), dims...)
	if *originFlag != "" {
		if origin, err = parseCoords(*originFlag); err != nil {
			fail("origin: %v", err)
		}
	}
	if *extentFlag != "" {
		if extent, err = parseCoords(*extentFlag); err != nil {
			fail("extent: %v", err)
		}
	}
	values, err := im.ReadSlab(origin, extent)
	if err != nil {
		fail("read slab: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v.GoValue()
	}
	enc.Encode(map[string]any{"axes": dims, "origin": origin, "extent": extent, "elements": out})
}

func parseCoords(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		var n int64
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%d", &n); err != nil {
			return nil, fmt.Errorf("bad coordinate %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func validateCmd(args []string) {
	fsFlags := flag.NewFlagSet("validate", flag.ExitOnError)
	in := fsFlags.String("in", "", "input .fits")
	profile := fsFlags.String("profile", "fits-3.0", "profile")
	rulesPath := fsFlags.String("rules", "", "rulepack.json")
	dictPath := fsFlags.String("dict", "", "dictionary JSON file")
	outDiag := fsFlags.String("out", "diagnostics.ndjson", "diagnostics output")
	outAcc := fsFlags.String("acceptance", "acceptance_report.json", "acceptance json")
	includeOffsets := fsFlags.Bool("diag-include-offsets", true, "include byte offsets in diagnostics output")
	concurrency := fsFlags.Int("concurrency", runtime.NumCPU(), "maximum concurrent file evaluations")
	metricsFlag := fsFlags.Bool("metrics", false, "print validation throughput metrics")
	progressFlag := fsFlags.Bool("progress", false, "display validation progress updates")
	fsFlags.Parse(args)

	if *in == "" {
		fail("required: --in")
	}
	rp, err := resolveRulePack(*rulesPath, *profile)
	if err != nil {
		fail("resolve rulepack: %v", err)
	}
	store, err := dict.EnsureLoaded(*dictPath)
	if err != nil {
		fail("load dictionary: %v", err)
	}

	var metrics *common.Metrics
	if *metricsFlag || *progressFlag {
		metrics = common.NewMetrics()
		if info, err := os.Stat(*in); err == nil {
			metrics.SetTotalBytes(info.Size())
		}
	}

	engine := rules.NewEngine(rp)
	engine.RegisterBuiltins()
	engine.SetConfigValue("diag.include_offsets", *includeOffsets)
	engine.SetConcurrency(*concurrency)

	var stopProgress func()
	if metrics != nil {
		metrics.Start()
		if *progressFlag {
			stopProgress = common.StartProgressPrinter(os.Stderr, metrics, 0)
		}
	}

	ctx := &rules.Context{InputFile: *in, Profile: *profile, Dict: store, Metrics: metrics}
	_, err = engine.Eval(ctx)
	if metrics != nil {
		metrics.Stop()
	}
	if stopProgress != nil {
		stopProgress()
	}
	if err != nil {
		fail("eval: %v", err)
	}
	if err := engine.WriteDiagnosticsNDJSON(*outDiag); err != nil {
		fail("write diagnostics: %v", err)
	}
	rep := engine.MakeAcceptance()
	if err := report.SaveAcceptanceJSON(rep, *outAcc); err != nil {
		fail("write acceptance: %v", err)
	}
	fmt.Printf("validated %s: %d findings, errors=%d warnings=%d pass=%v\n",
		*in, rep.Summary.Total, rep.Summary.Errors, rep.Summary.Warnings, rep.Summary.Pass)
	if metrics != nil && *metricsFlag {
		snap := metrics.Snapshot()
		fmt.Printf("processed %s in %s (%.2f MiB/s), %d HDUs\n",
			common.FormatBytes(snap.Bytes), snap.Duration, snap.ThroughputBytesPerSecond()/(1024*1024), snap.Hdus)
	}
	if !rep.Summary.Pass {
		os.Exit(1)
	}
}

func resolveRulePack(rulesPath, profile string) (rules.RulePack, error) {
	if rulesPath != "" {
		return rules.LoadRulePack(rulesPath)
	}
	candidates := []string{
		filepath.Join("profiles", profile, "rules-min.json"),
		filepath.Join("..", "profiles", profile, "rules-min.json"),
		filepath.Join("..", "..", "profiles", profile, "rules-min.json"),
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return rules.LoadRulePack(candidate)
		}
	}
	return rules.RulePack{}, fmt.Errorf("no rule pack found for profile %s (pass --rules)", profile)
}

func reportCmd(args []string) {
	fsFlags := flag.NewFlagSet("report", flag.ExitOnError)
	accPath := fsFlags.String("acceptance", "", "acceptance json")
	out := fsFlags.String("out", "acceptance_report.pdf", "output pdf")
	lang := fsFlags.String("lang", "en", "report language (en|tr)")
	manifestPath := fsFlags.String("manifest", "", "manifest json to reference")
	fsFlags.Parse(args)
	if *accPath == "" {
		fail("required: --acceptance")
	}
	rep, err := report.LoadAcceptanceJSON(*accPath)
	if err != nil {
		fail("load acceptance: %v", err)
	}
	language, err := report.ParseLanguage(*lang)
	if err != nil {
		fail("language: %v", err)
	}
	opts := report.PDFOptions{Language: language}
	if *manifestPath != "" {
		m, err := manifest.Load(*manifestPath)
		if err != nil {
			fail("load manifest: %v", err)
		}
		digest, err := manifest.Digest(m)
		if err != nil {
			fail("digest manifest: %v", err)
		}
		opts.ManifestHash = digest
	}
	if err := report.SaveAcceptancePDF(rep, *out, opts); err != nil {
		fail("write pdf: %v", err)
	}
	fmt.Printf("wrote %s\n", *out)
}

func manifestCmd(args []string) {
	fsFlags := flag.NewFlagSet("manifest", flag.ExitOnError)
	inputs := fsFlags.String("inputs", "", "comma-separated input files")
	out := fsFlags.String("out", "manifest.json", "output manifest")
	fsFlags.Parse(args)
	if *inputs == "" {
		fail("required: --inputs")
	}
	paths := strings.Split(*inputs, ",")
	for i := range paths {
		paths[i] = strings.TrimSpace(paths[i])
	}
	m, err := manifest.Build(paths)
	if err != nil {
		fail("build manifest: %v", err)
	}
	if err := manifest.Save(m, *out); err != nil {
		fail("write manifest: %v", err)
	}
	digest, err := manifest.Digest(m)
	if err != nil {
		fail("digest manifest: %v", err)
	}
	fmt.Printf("wrote %s (%d items, digest %s)\n", *out, len(m.Items), digest)
}

type batchResult struct {
	Input      string `json:"input"`
	Diagnostic string `json:"diagnostics"`
	Acceptance string `json:"acceptance"`
	Pass       bool   `json:"pass"`
	Err        string `json:"error,omitempty"`
}

func batchCmd(args []string) {
	fsFlags := flag.NewFlagSet("batch", flag.ExitOnError)
	in := fsFlags.String("in", "", "input directory")
	profile := fsFlags.String("profile", "fits-3.0", "profile")
	rulesPath := fsFlags.String("rules", "", "rulepack.json")
	dictPath := fsFlags.String("dict", "", "dictionary JSON file")
	outDir := fsFlags.String("out-dir", "", "output directory")
	concurrency := fsFlags.Int("concurrency", runtime.NumCPU(), "maximum concurrent file evaluations")
	fsFlags.Parse(args)
	if *in == "" || *outDir == "" {
		fail("required: --in and --out-dir")
	}
	rp, err := resolveRulePack(*rulesPath, *profile)
	if err != nil {
		fail("resolve rulepack: %v", err)
	}
	store, err := dict.EnsureLoaded(*dictPath)
	if err != nil {
		fail("load dictionary: %v", err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fail("out dir: %v", err)
	}
	inputs, err := collectFitsFiles(*in)
	if err != nil {
		fail("scan inputs: %v", err)
	}
	if len(inputs) == 0 {
		fail("no .fits files under %s", *in)
	}

	// Each worker owns its engine and file handle; boundaries are cheap to
	// recompute per handle.
	jobs := make(chan string)
	resultsCh := make(chan batchResult)
	workers := *concurrency
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for input := range jobs {
				resultsCh <- runBatchOne(input, *outDir, rp, store, *profile)
			}
		}()
	}
	go func() {
		for _, input := range inputs {
			jobs <- input
		}
		close(jobs)
		wg.Wait()
		close(resultsCh)
	}()

	var results []batchResult
	failures := 0
	for res := range resultsCh {
		if res.Err != "" || !res.Pass {
			failures++
		}
		results = append(results, res)
	}
	summaryPath := filepath.Join(*outDir, "batch_summary.json")
	b, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile(summaryPath, append(b, '\n'), 0o644); err != nil {
		fail("write summary: %v", err)
	}
	fmt.Printf("batch: %d files, %d failing, summary at %s\n", len(results), failures, summaryPath)
	if failures > 0 {
		os.Exit(1)
	}
}

func runBatchOne(input, outDir string, rp rules.RulePack, store *dict.Store, profile string) batchResult {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	res := batchResult{
		Input:      input,
		Diagnostic: filepath.Join(outDir, base+".diagnostics.ndjson"),
		Acceptance: filepath.Join(outDir, base+".acceptance.json"),
	}
	engine := rules.NewEngine(rp)
	engine.RegisterBuiltins()
	ctx := &rules.Context{InputFile: input, Profile: profile, Dict: store}
	if _, err := engine.Eval(ctx); err != nil {
		res.Err = err.Error()
		return res
	}
	if err := engine.WriteDiagnosticsNDJSON(res.Diagnostic); err != nil {
		res.Err = err.Error()
		return res
	}
	rep := engine.MakeAcceptance()
	if err := report.SaveAcceptanceJSON(rep, res.Acceptance); err != nil {
		res.Err = err.Error()
		return res
	}
	res.Pass = rep.Summary.Pass
	return res
}

func collectFitsFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".fits", ".fit", ".fts":
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
