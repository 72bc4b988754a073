package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RequiredProfiles lists the FITS standard revisions that must be available
// to start the daemon.
var RequiredProfiles = []string{"fits-3.0", "fits-4.0"}

// ProfilePack describes a rule bundle bound to a FITS standard revision.
type ProfilePack struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Rules string `json:"rules" yaml:"rules"`
}

// Options configures server creation.
type Options struct {
	StorageDir      string
	ProfileManifest string
	ProfilePacks    []ProfilePack
	Dictionary      string
	Concurrency     int
}

type profilePackEntry struct {
	id        string
	name      string
	rulesPath string
}

// LoadProfileManifest parses a manifest JSON document that enumerates the
// available rule packs. Relative paths are resolved against the manifest's
// directory.
func LoadProfileManifest(path string) ([]ProfilePack, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("manifest path is empty")
	}
	manifestPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("manifest path: %w", err)
	}
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	var doc struct {
		Profiles []ProfilePack `json:"profiles"`
	}
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(doc.Profiles) == 0 {
		return nil, errors.New("manifest contains no profiles")
	}
	base := filepath.Dir(manifestPath)
	out := make([]ProfilePack, len(doc.Profiles))
	for i, pack := range doc.Profiles {
		resolved, err := resolveProfilePaths(base, pack)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

func resolveProfilePaths(base string, pack ProfilePack) (ProfilePack, error) {
	pack.ID = strings.TrimSpace(pack.ID)
	pack.Name = strings.TrimSpace(pack.Name)
	pack.Rules = strings.TrimSpace(pack.Rules)
	if pack.ID == "" {
		return ProfilePack{}, errors.New("manifest profile entry missing id")
	}
	if pack.Rules == "" {
		return ProfilePack{}, fmt.Errorf("manifest profile %s missing rules path", pack.ID)
	}
	if !filepath.IsAbs(pack.Rules) {
		pack.Rules = filepath.Join(base, pack.Rules)
	}
	return pack, nil
}

func buildProfilePackMap(opts Options) (map[string]profilePackEntry, []string, error) {
	packs := opts.ProfilePacks
	if len(packs) == 0 {
		manifest := opts.ProfileManifest
		if strings.TrimSpace(manifest) == "" {
			manifest = filepath.Join("profiles", "index.json")
		}
		var err error
		packs, err = LoadProfileManifest(manifest)
		if err != nil {
			return nil, nil, fmt.Errorf("load profile manifest: %w", err)
		}
	}
	entries := make(map[string]profilePackEntry)
	for _, pack := range packs {
		id := strings.TrimSpace(pack.ID)
		rulesPath := strings.TrimSpace(pack.Rules)
		if id == "" {
			return nil, nil, errors.New("profile pack missing id")
		}
		if rulesPath == "" {
			return nil, nil, fmt.Errorf("profile %s missing rules path", id)
		}
		if !filepath.IsAbs(rulesPath) {
			abs, err := filepath.Abs(rulesPath)
			if err != nil {
				return nil, nil, fmt.Errorf("profile %s rules abs: %w", id, err)
			}
			rulesPath = abs
		}
		if _, err := os.Stat(rulesPath); err != nil {
			return nil, nil, fmt.Errorf("profile %s rules: %w", id, err)
		}
		if _, exists := entries[id]; exists {
			return nil, nil, fmt.Errorf("duplicate profile %s configured", id)
		}
		entries[id] = profilePackEntry{
			id:        id,
			name:      pack.Name,
			rulesPath: rulesPath,
		}
	}
	for _, required := range RequiredProfiles {
		if _, ok := entries[required]; !ok {
			return nil, nil, fmt.Errorf("required profile %s not configured", required)
		}
	}
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return entries, ids, nil
}
