package types

import "fmt"

const (
	SourceCheckpoint = "checkpoint"
	SourceGenerated  = "generated"
)

// ImageOutcome is the terminal result of one slide's image generation.
type ImageOutcome struct {
	SlideNumber int    `json:"slide_number"`
	Success     bool   `json:"success"`
	Path        string `json:"path,omitempty"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts"`
	Digest      string `json:"digest,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

type RunSummary struct {
	RunID           string         `json:"run_id"`
	Source          string         `json:"source"`
	DeckFingerprint string         `json:"deck_fingerprint"`
	StartedAt       string         `json:"started_at"`
	FinishedAt      string         `json:"finished_at"`
	TotalSlides     int            `json:"total_slides"`
	ValidSlides     int            `json:"valid_slides"`
	Succeeded       int            `json:"succeeded"`
	Failed          int            `json:"failed"`
	InvalidSlides   []int          `json:"invalid_slides"`
	Warnings        []string       `json:"warnings"`
	Outcomes        []ImageOutcome `json:"outcomes"`
}

// Line is the one-line terminal report.
func (s RunSummary) Line() string {
	return fmt.Sprintf("%d valid, %d succeeded, %d failed", s.ValidSlides, s.Succeeded, s.Failed)
}
