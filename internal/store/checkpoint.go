package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ogulcanaydogan/research-deck/internal/slides"
	"github.com/ogulcanaydogan/research-deck/pkg/schema"
	"github.com/ogulcanaydogan/research-deck/pkg/types"
)

const DefaultCheckpointPath = "slides.json"

var (
	ErrUnreadable   = errors.New("checkpoint unreadable")
	ErrSchema       = errors.New("checkpoint is not a non-empty list of slides")
	ErrNoCheckpoint = errors.New("no checkpoint")
)

// CorruptStoreError is fatal for a run. The checkpoint may hold expensive
// model output, so it is never regenerated automatically.
type CorruptStoreError struct {
	Path    string
	Kind    error
	Err     error
	Details []string
}

func (e *CorruptStoreError) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("corrupt checkpoint %s: %s", e.Path, e.Kind.Error())
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg + "; fix or delete the file to regenerate"
}

func (e *CorruptStoreError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Store persists the deck between runs.
type Store interface {
	Exists() bool
	Load() (types.Deck, error)
	Save(deck types.Deck) error
}

// FileStore keeps the deck as a JSON array at Path.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	if strings.TrimSpace(path) == "" {
		path = DefaultCheckpointPath
	}
	return &FileStore{Path: path}
}

func (s *FileStore) Exists() bool {
	fi, err := os.Stat(s.Path)
	return err == nil && !fi.IsDir()
}

// Load reads the checkpoint and reapplies slide validation, since the file
// may have been edited by hand.
func (s *FileStore) Load() (types.Deck, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", s.Path, ErrNoCheckpoint)
		}
		return nil, &CorruptStoreError{Path: s.Path, Kind: ErrUnreadable, Err: err}
	}
	violations, err := schema.ValidateCheckpoint(raw)
	if err != nil {
		return nil, &CorruptStoreError{Path: s.Path, Kind: ErrUnreadable, Err: err}
	}
	if len(violations) > 0 {
		return nil, &CorruptStoreError{Path: s.Path, Kind: ErrSchema, Details: violations}
	}

	var deck types.Deck
	if err := json.Unmarshal(raw, &deck); err != nil {
		return nil, &CorruptStoreError{Path: s.Path, Kind: ErrUnreadable, Err: err}
	}
	deck, _ = slides.Validate(deck)
	return deck, nil
}

// Save overwrites any previous checkpoint.
func (s *FileStore) Save(deck types.Deck) error {
	if deck == nil {
		deck = types.Deck{}
	}
	raw, err := json.MarshalIndent(deck, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := WriteFileAtomic(s.Path, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}
