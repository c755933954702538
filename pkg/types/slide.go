package types

import (
	"fmt"
	"strings"
)

type SlideRecord struct {
	SlideNumber      int    `json:"slideNumber"`
	Title            string `json:"title"`
	Text             string `json:"text"`
	ImageDescription string `json:"imageDescription"`
	IsValid          bool   `json:"isValid"`
}

// Deck is ordered in presentation order.
type Deck []SlideRecord

// MissingFields reports which required fields are empty after trimming.
func (s SlideRecord) MissingFields() []string {
	var missing []string
	if strings.TrimSpace(s.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(s.Text) == "" {
		missing = append(missing, "text")
	}
	if strings.TrimSpace(s.ImageDescription) == "" {
		missing = append(missing, "imageDescription")
	}
	return missing
}

// ImageFileName is the output name for a slide's image. n is the slide's
// position in the full deck.
func ImageFileName(n int) string {
	return fmt.Sprintf("slide_%d_image.png", n)
}

func (d Deck) Valid() []SlideRecord {
	out := make([]SlideRecord, 0, len(d))
	for _, s := range d {
		if s.IsValid {
			out = append(out, s)
		}
	}
	return out
}

func (d Deck) InvalidNumbers() []int {
	out := make([]int, 0)
	for _, s := range d {
		if !s.IsValid {
			out = append(out, s.SlideNumber)
		}
	}
	return out
}
