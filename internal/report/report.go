package report

import (
	"encoding/json"
	"os"

	"example.com/fitsgate/internal/rules"
)

// SaveAcceptanceJSON writes the acceptance report as indented JSON.
func SaveAcceptanceJSON(rep rules.AcceptanceReport, path string) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// LoadAcceptanceJSON reads an acceptance report back from disk.
func LoadAcceptanceJSON(path string) (rules.AcceptanceReport, error) {
	var rep rules.AcceptanceReport
	b, err := os.ReadFile(path)
	if err != nil {
		return rep, err
	}
	err = json.Unmarshal(b, &rep)
	return rep, err
}
