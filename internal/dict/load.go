package dict

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

//go:embed standard.json
var builtinFS embed.FS

var builtin *Store

func init() {
	data, err := builtinFS.ReadFile("standard.json")
	if err != nil {
		panic(fmt.Sprintf("dict: read builtin dictionary: %v", err))
	}
	var file JSONFile
	if err := json.Unmarshal(data, &file); err != nil {
		panic(fmt.Sprintf("dict: parse builtin dictionary: %v", err))
	}
	builtin, err = FromJSON(file)
	if err != nil {
		panic(fmt.Sprintf("dict: build builtin dictionary: %v", err))
	}
}

// Builtin returns the embedded standard-keyword dictionary.
func Builtin() *Store {
	return builtin
}

// Load reads a dictionary JSON document from disk.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file JSONFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return FromJSON(file)
}

// EnsureLoaded loads path when it names a readable file, and falls back to
// the builtin dictionary when path is empty.
func EnsureLoaded(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return Builtin(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("dictionary path is a directory")
	}
	return Load(path)
}
