package dict

import (
	"fmt"
	"strings"
)

// KeywordEntry describes one header keyword known to the dictionary.
type KeywordEntry struct {
	Keyword  string
	Meaning  string
	Category string
	Standard bool
}

// Store indexes keyword entries for lookup during validation. Indexed
// keywords like NAXIS1..NAXIS999 are stored once under their root with a
// trailing '#'.
type Store struct {
	exact   map[string]KeywordEntry
	indexed map[string]KeywordEntry
}

type JSONFile struct {
	Keywords []JSONKeywordEntry `json:"keywords"`
}

type JSONKeywordEntry struct {
	Keyword  string `json:"keyword"`
	Meaning  string `json:"meaning,omitempty"`
	Category string `json:"category,omitempty"`
	Standard *bool  `json:"standard,omitempty"`
}

// FromJSON builds a Store from the decoded dictionary file.
func FromJSON(file JSONFile) (*Store, error) {
	s := &Store{
		exact:   make(map[string]KeywordEntry, len(file.Keywords)),
		indexed: make(map[string]KeywordEntry),
	}
	for i, raw := range file.Keywords {
		keyword := strings.ToUpper(strings.TrimSpace(raw.Keyword))
		if keyword == "" {
			return nil, fmt.Errorf("dictionary entry %d has empty keyword", i)
		}
		entry := KeywordEntry{
			Keyword:  keyword,
			Meaning:  strings.TrimSpace(raw.Meaning),
			Category: strings.TrimSpace(raw.Category),
			Standard: raw.Standard == nil || *raw.Standard,
		}
		if root, ok := strings.CutSuffix(keyword, "#"); ok {
			if root == "" {
				return nil, fmt.Errorf("dictionary entry %d has empty indexed root", i)
			}
			s.indexed[root] = entry
			continue
		}
		s.exact[keyword] = entry
	}
	return s, nil
}

// Lookup resolves a keyword, matching indexed families (NAXIS#, TFORM#,
// TTYPE#, ...) by stripping a decimal suffix.
func (s *Store) Lookup(keyword string) (KeywordEntry, bool) {
	if s == nil {
		return KeywordEntry{}, false
	}
	keyword = strings.ToUpper(strings.TrimSpace(keyword))
	if entry, ok := s.exact[keyword]; ok {
		return entry, true
	}
	root := strings.TrimRight(keyword, "0123456789")
	if root != keyword && root != "" {
		if entry, ok := s.indexed[root]; ok {
			return entry, true
		}
	}
	return KeywordEntry{}, false
}

// Len returns the number of loaded entries.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.exact) + len(s.indexed)
}
