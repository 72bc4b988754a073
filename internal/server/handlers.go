package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"example.com/fitsgate/internal/common"
	"example.com/fitsgate/internal/dict"
	"example.com/fitsgate/internal/fits"
	"example.com/fitsgate/internal/manifest"
	"example.com/fitsgate/internal/report"
	"example.com/fitsgate/internal/rules"
)

// Server coordinates HTTP handlers and manages temporary artifacts produced
// by inspection and validation requests.
type Server struct {
	artifacts   *ArtifactStore
	workDir     string
	uploadsDir  string
	profilePack map[string]profilePackEntry
	profileIDs  []string
	dictionary  *dict.Store
	concurrency int
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory.
func NewServer(opts Options) (*Server, error) {
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := os.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := os.MkdirTemp(storageDir, "fitsd-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	packs, ids, err := buildProfilePackMap(opts)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}
	store, err := dict.EnsureLoaded(opts.Dictionary)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("load dictionary: %w", err)
	}
	s := &Server{
		artifacts:   &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:     workDir,
		uploadsDir:  uploadsDir,
		profilePack: packs,
		profileIDs:  ids,
		dictionary:  store,
		concurrency: concurrency,
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return os.RemoveAll(s.workDir)
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := os.CreateTemp(s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	id := randomID()
	art := Artifact{
		ID:          id,
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[id] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) resolvePath(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty input path")
	}
	if art, ok := s.getArtifact(token); ok {
		return art.Path, nil
	}
	abs := token
	if !filepath.IsAbs(token) {
		abs = filepath.Clean(token)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

type hduSummary struct {
	Index       int    `json:"index"`
	Type        string `json:"type"`
	Xtension    string `json:"xtension,omitempty"`
	HeaderStart int64  `json:"headerStart"`
	DataStart   int64  `json:"dataStart"`
	DataStop    int64  `json:"dataStop"`
	HduStop     int64  `json:"hduStop"`
	Cards       int    `json:"cards"`
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inputPath, err := s.resolvePath(r.URL.Query().Get("input"))
	if err != nil {
		http.Error(w, fmt.Sprintf("input resolve: %v", err), http.StatusBadRequest)
		return
	}
	f, err := fits.Open(inputPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("open: %v", err), http.StatusBadRequest)
		return
	}
	defer f.Close()
	count := f.Count()
	hdus := make([]hduSummary, 0, count)
	for i := 0; i < count; i++ {
		bounds, err := f.Boundaries(i)
		if err != nil {
			break
		}
		hdr, err := f.Header(i)
		if err != nil {
			break
		}
		hdus = append(hdus, hduSummary{
			Index:       bounds.Index,
			Type:        bounds.Type.String(),
			Xtension:    bounds.Xtension,
			HeaderStart: bounds.HeaderStart,
			DataStart:   bounds.DataStart,
			DataStop:    bounds.DataStop,
			HduStop:     bounds.HduStop,
			Cards:       len(hdr.Cards),
		})
	}
	resp := struct {
		File     string         `json:"file"`
		Hdus     []hduSummary   `json:"hdus"`
		Warnings []fits.Warning `json:"warnings,omitempty"`
	}{
		File:     filepath.Base(inputPath),
		Hdus:     hdus,
		Warnings: f.Catalog().Warnings(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inputPath, err := s.resolvePath(r.URL.Query().Get("input"))
	if err != nil {
		http.Error(w, fmt.Sprintf("input resolve: %v", err), http.StatusBadRequest)
		return
	}
	hdu, err := queryInt(r, "hdu", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := fits.Open(inputPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("open: %v", err), http.StatusBadRequest)
		return
	}
	defer f.Close()
	schema, err := f.Schema(hdu)
	if err != nil {
		status := http.StatusBadRequest
		var idxErr *fits.IndexError
		if errors.As(err, &idxErr) {
			status = http.StatusNotFound
		}
		http.Error(w, fmt.Sprintf("schema: %v", err), status)
		return
	}
	resp := struct {
		Hdu      int          `json:"hdu"`
		Type     string       `json:"type"`
		Fields   []fits.Field `json:"fields"`
		RowBytes int          `json:"rowBytes,omitempty"`
		RowCount int64        `json:"rowCount,omitempty"`
		Axes     []int64      `json:"axes,omitempty"`
	}{
		Hdu:    hdu,
		Type:   schema.Type.String(),
		Fields: schema.Fields,
	}
	if schema.Table != nil {
		resp.RowBytes = schema.Table.RowBytes
		resp.RowCount = schema.Table.RowCount
	}
	if schema.Image != nil {
		resp.Axes = schema.Image.Axes
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	inputPath, err := s.resolvePath(r.URL.Query().Get("input"))
	if err != nil {
		http.Error(w, fmt.Sprintf("input resolve: %v", err), http.StatusBadRequest)
		return
	}
	hdu, err := queryInt(r, "hdu", 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f, err := fits.Open(inputPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("open: %v", err), http.StatusBadRequest)
		return
	}
	defer f.Close()
	table, err := f.Table(hdu)
	if err != nil {
		http.Error(w, fmt.Sprintf("table: %v", err), http.StatusBadRequest)
		return
	}
	start, err := queryInt(r, "start", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	stop, err := queryInt(r, "stop", int(table.RowCount()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if start < 0 || int64(stop) > table.RowCount() || stop < start {
		http.Error(w, fmt.Sprintf("row range [%d, %d) out of range", start, stop), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	writer := NewNDJSONWriter(w)
	layout := table.Layout()
	for row := int64(start); row < int64(stop); row++ {
		values, err := table.ReadRow(row)
		if err != nil {
			_ = writer.WriteObject(map[string]any{"type": "error", "row": row, "error": err.Error()})
			return
		}
		cells := make(map[string]any, len(values))
		for i, v := range values {
			cells[layout.Columns[i].Name] = v.GoValue()
		}
		if err := writer.WriteObject(map[string]any{"row": row, "values": cells}); err != nil {
			return
		}
	}
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stream := r.URL.Query().Get("stream") == "true"
	var req struct {
		Inputs         []string        `json:"inputs"`
		Profile        string          `json:"profile"`
		RulePack       *rules.RulePack `json:"rulePack"`
		IncludeOffsets *bool           `json:"includeOffsets"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 {
		http.Error(w, "inputs required", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Profile) == "" {
		http.Error(w, "profile required", http.StatusBadRequest)
		return
	}
	inputPath, err := s.resolvePath(req.Inputs[0])
	if err != nil {
		http.Error(w, fmt.Sprintf("input resolve: %v", err), http.StatusBadRequest)
		return
	}
	rp, err := s.loadRulePack(req.Profile, req.RulePack)
	if err != nil {
		http.Error(w, fmt.Sprintf("load rulepack: %v", err), http.StatusBadRequest)
		return
	}
	engine := rules.NewEngine(rp)
	engine.RegisterBuiltins()
	engine.SetConcurrency(s.concurrency)
	if req.IncludeOffsets != nil {
		engine.SetConfigValue("diag.include_offsets", *req.IncludeOffsets)
	}
	ctx := &rules.Context{InputFile: inputPath, Profile: req.Profile, Dict: s.dictionary}

	if stream {
		writer := NewNDJSONWriter(w)
		engine.SetDiagnosticCallback(func(d rules.Diagnostic) error {
			return writer.WriteDiagnostic(d)
		})
		w.Header().Set("Content-Type", "application/x-ndjson")
		diags, err := engine.Eval(ctx)
		engine.SetDiagnosticCallback(nil)
		if err != nil {
			_ = writer.WriteObject(map[string]any{"type": "error", "error": err.Error()})
			return
		}
		rep := engine.MakeAcceptance()
		arts, err := s.persistValidation(engine, rep)
		if err != nil {
			_ = writer.WriteObject(map[string]any{"type": "error", "error": err.Error()})
			return
		}
		summary := struct {
			Type       string        `json:"type"`
			Acceptance any           `json:"acceptance"`
			Artifacts  []ArtifactRef `json:"artifacts"`
			Total      int           `json:"diagnostics"`
		}{
			Type:       "acceptance",
			Acceptance: rep,
			Artifacts:  arts,
			Total:      len(diags),
		}
		_ = writer.WriteObject(summary)
		return
	}

	diags, err := engine.Eval(ctx)
	if err != nil {
		common.Logf("validate %s failed: %v", inputPath, err)
		http.Error(w, fmt.Sprintf("eval: %v", err), http.StatusInternalServerError)
		return
	}
	rep := engine.MakeAcceptance()
	arts, err := s.persistValidation(engine, rep)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Acceptance  rules.AcceptanceReport `json:"acceptance"`
		Diagnostics int                    `json:"diagnostics"`
		Artifacts   []ArtifactRef          `json:"artifacts"`
	}{
		Acceptance:  rep,
		Diagnostics: len(diags),
		Artifacts:   arts,
	}
	writeJSON(w, http.StatusOK, resp)
}

// persistValidation writes the diagnostics NDJSON, acceptance JSON and
// acceptance PDF artifacts and registers them for download.
func (s *Server) persistValidation(engine *rules.Engine, rep rules.AcceptanceReport) ([]ArtifactRef, error) {
	diagPath, err := s.tempPath("diagnostics-*.ndjson")
	if err != nil {
		return nil, fmt.Errorf("diagnostics temp: %w", err)
	}
	if err := engine.WriteDiagnosticsNDJSON(diagPath); err != nil {
		return nil, fmt.Errorf("write diagnostics: %w", err)
	}
	accPath, err := s.tempPath("acceptance-*.json")
	if err != nil {
		return nil, fmt.Errorf("acceptance temp: %w", err)
	}
	if err := report.SaveAcceptanceJSON(rep, accPath); err != nil {
		return nil, fmt.Errorf("write acceptance: %w", err)
	}
	pdfPath, err := s.tempPath("acceptance-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("acceptance pdf temp: %w", err)
	}
	if err := report.SaveAcceptancePDF(rep, pdfPath, report.PDFOptions{}); err != nil {
		return nil, fmt.Errorf("write acceptance pdf: %w", err)
	}
	diagArt, err := s.addArtifact(diagPath, "diagnostics.ndjson", "application/x-ndjson", "diagnostics")
	if err != nil {
		return nil, fmt.Errorf("register diagnostics: %w", err)
	}
	accArt, err := s.addArtifact(accPath, "acceptance_report.json", "application/json", "acceptance")
	if err != nil {
		return nil, fmt.Errorf("register acceptance: %w", err)
	}
	pdfArt, err := s.addArtifact(pdfPath, "acceptance_report.pdf", "application/pdf", "acceptance")
	if err != nil {
		return nil, fmt.Errorf("register acceptance pdf: %w", err)
	}
	return []ArtifactRef{toRef(diagArt), toRef(accArt), toRef(pdfArt)}, nil
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Inputs  []string `json:"inputs"`
		ShaAlgo string   `json:"shaAlgo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Inputs) == 0 {
		http.Error(w, "inputs required", http.StatusBadRequest)
		return
	}
	if req.ShaAlgo == "" {
		req.ShaAlgo = "sha256"
	}
	if !strings.EqualFold(req.ShaAlgo, "sha256") {
		http.Error(w, "only sha256 supported", http.StatusBadRequest)
		return
	}
	var paths []string
	for _, in := range req.Inputs {
		resolved, err := s.resolvePath(in)
		if err != nil {
			http.Error(w, fmt.Sprintf("resolve %s: %v", in, err), http.StatusBadRequest)
			return
		}
		paths = append(paths, resolved)
	}
	m, err := manifest.Build(paths)
	if err != nil {
		http.Error(w, fmt.Sprintf("build manifest: %v", err), http.StatusInternalServerError)
		return
	}
	outPath, err := s.tempPath("manifest-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("manifest temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := manifest.Save(m, outPath); err != nil {
		http.Error(w, fmt.Sprintf("write manifest: %v", err), http.StatusInternalServerError)
		return
	}
	art, err := s.addArtifact(outPath, "manifest.json", "application/json", "manifest")
	if err != nil {
		http.Error(w, fmt.Sprintf("register manifest: %v", err), http.StatusInternalServerError)
		return
	}
	digest, err := manifest.Digest(m)
	if err != nil {
		http.Error(w, fmt.Sprintf("digest manifest: %v", err), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Manifest manifest.Manifest `json:"manifest"`
		Digest   string            `json:"digest"`
		Artifact ArtifactRef       `json:"artifact"`
	}{
		Manifest: m,
		Digest:   digest,
		Artifact: toRef(art),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.profileIDs)
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		writeJSON(w, http.StatusOK, s.listArtifacts())
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := os.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", art.Name)
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}

func (s *Server) loadRulePack(profile string, override *rules.RulePack) (rules.RulePack, error) {
	if override != nil && len(override.Rules) > 0 {
		return *override, nil
	}
	entry, ok := s.profilePack[profile]
	if !ok {
		return rules.RulePack{}, fmt.Errorf("no rule pack for profile %s", profile)
	}
	return rules.LoadRulePack(entry.rulesPath)
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("query %s: %v", key, err)
	}
	return n, nil
}

func guessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".ndjson", ".jsonl":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".txt":
		return "text/plain"
	case ".fits", ".fit", ".fts":
		return "application/octet-stream"
	default:
		return "application/octet-stream"
	}
}

func randomID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		now := time.Now().UTC()
		return fmt.Sprintf("%d%06d", now.UnixNano(), os.Getpid())
	}
	return hex.EncodeToString(b[:])
}
