package report

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ogulcanaydogan/research-deck/internal/store"
	"github.com/ogulcanaydogan/research-deck/pkg/types"
)

func WriteJSON(path string, s types.RunSummary) error {
	raw, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return store.WriteFileAtomic(path, append(raw, '\n'), 0o644)
}

// ReadJSON loads a summary previously written by WriteJSON.
func ReadJSON(path string) (types.RunSummary, error) {
	var s types.RunSummary
	raw, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("read summary: %w", err)
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return s, fmt.Errorf("parse summary %s: %w", path, err)
	}
	return s, nil
}
