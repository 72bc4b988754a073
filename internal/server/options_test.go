package server

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRulesFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	doc := `{"rulePackId": "test", "version": "0", "profile": "fits-3.0", "rules": []}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestLoadProfileManifest(t *testing.T) {
	dir := t.TempDir()
	writeRulesFile(t, dir, "rules-a.json")
	manifestPath := filepath.Join(dir, "index.json")
	doc := `{"profiles": [{"id": "fits-3.0", "name": "FITS 3.0", "rules": "rules-a.json"}]}`
	if err := os.WriteFile(manifestPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	packs, err := LoadProfileManifest(manifestPath)
	if err != nil {
		t.Fatalf("LoadProfileManifest failed: %v", err)
	}
	if len(packs) != 1 {
		t.Fatalf("packs = %d, want 1", len(packs))
	}
	if packs[0].ID != "fits-3.0" {
		t.Fatalf("id = %q", packs[0].ID)
	}
	if !filepath.IsAbs(packs[0].Rules) {
		t.Fatalf("rules path %q should be absolute", packs[0].Rules)
	}
}

func TestLoadProfileManifestErrors(t *testing.T) {
	if _, err := LoadProfileManifest(""); err == nil {
		t.Fatalf("empty path should fail")
	}
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "index.json")
	if err := os.WriteFile(manifestPath, []byte(`{"profiles": []}`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadProfileManifest(manifestPath); err == nil {
		t.Fatalf("empty profile list should fail")
	}
	if err := os.WriteFile(manifestPath, []byte(`{"profiles": [{"id": "", "rules": "x.json"}]}`), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadProfileManifest(manifestPath); err == nil {
		t.Fatalf("missing id should fail")
	}
}

func TestBuildProfilePackMapRequiresProfiles(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeRulesFile(t, dir, "rules.json")
	_, _, err := buildProfilePackMap(Options{ProfilePacks: []ProfilePack{
		{ID: "fits-3.0", Rules: rulesPath},
	}})
	if err == nil {
		t.Fatalf("missing fits-4.0 should fail")
	}
	packs, ids, err := buildProfilePackMap(Options{ProfilePacks: []ProfilePack{
		{ID: "fits-3.0", Rules: rulesPath},
		{ID: "fits-4.0", Rules: rulesPath},
	}})
	if err != nil {
		t.Fatalf("buildProfilePackMap failed: %v", err)
	}
	if len(packs) != 2 || len(ids) != 2 || ids[0] != "fits-3.0" {
		t.Fatalf("packs = %v ids = %v", packs, ids)
	}
}

func TestBuildProfilePackMapRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	rulesPath := writeRulesFile(t, dir, "rules.json")
	_, _, err := buildProfilePackMap(Options{ProfilePacks: []ProfilePack{
		{ID: "fits-3.0", Rules: rulesPath},
		{ID: "fits-3.0", Rules: rulesPath},
	}})
	if err == nil {
		t.Fatalf("duplicate profile should fail")
	}
}
