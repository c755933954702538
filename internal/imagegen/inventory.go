package imagegen

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/ogulcanaydogan/research-deck/internal/hash"
	"github.com/ogulcanaydogan/research-deck/pkg/types"
)

// Inventory reports which valid slides of deck already have an image in
// outDir. Present files are re-hashed so the digests can be compared with a
// previous run summary.
func Inventory(outDir string, deck types.Deck) ([]types.ImageOutcome, error) {
	if outDir == "" {
		outDir = DefaultOutputDir
	}
	out := make([]types.ImageOutcome, 0, len(deck))
	for _, s := range deck.Valid() {
		path := filepath.Join(outDir, types.ImageFileName(s.SlideNumber))
		o := types.ImageOutcome{SlideNumber: s.SlideNumber}
		digest, size, err := hash.DigestFile(path)
		switch {
		case err == nil:
			o.Success = true
			o.Path = path
			o.Digest = digest
			o.SizeBytes = size
		case errors.Is(err, os.ErrNotExist):
			o.Error = "missing"
		default:
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}
