package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	openTag  = "<slides"
	closeTag = "</slides>"
)

var ErrNoMarkup = errors.New("no xml markup in model output")

// ExtractionError is returned when the model output has nothing that looks
// like XML.
type ExtractionError struct {
	Kind   error
	Length int
}

func (e *ExtractionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("extract slides xml: %s (%d bytes of output)", e.Kind.Error(), e.Length)
}

func (e *ExtractionError) Unwrap() error { return e.Kind }

// Extract returns the repaired slide-collection fragment embedded in raw.
func Extract(raw string) (string, error) {
	fragment, err := Locate(raw)
	if err != nil {
		return "", err
	}
	return RepairAmpersands(fragment), nil
}

// Locate finds the first <slides ...> through the last </slides>. Without
// those tags it falls back to the first '<' through the last '>'.
func Locate(raw string) (string, error) {
	start := indexOpenTag(raw)
	end := lastIndexFold(raw, closeTag)
	if start >= 0 && end > start {
		return raw[start : end+len(closeTag)], nil
	}

	first := strings.Index(raw, "<")
	last := strings.LastIndex(raw, ">")
	if first < 0 || last < first {
		return "", &ExtractionError{Kind: ErrNoMarkup, Length: len(raw)}
	}
	return raw[first : last+1], nil
}

var entityPrefix = regexp.MustCompile(`^&(?:amp|lt|gt|quot|apos|#[0-9]+|#[xX][0-9a-fA-F]+);`)

// RepairAmpersands escapes every '&' that does not start a predefined XML
// entity or a character reference. Applying it twice is a no-op.
func RepairAmpersands(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); i++ {
		if s[i] == '&' && !entityPrefix.MatchString(s[i:]) {
			b.WriteString("&amp;")
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// indexOpenTag finds the first <slides tag, skipping longer names such as
// <slideshow> that only share the prefix.
func indexOpenTag(s string) int {
	for from := 0; from < len(s); {
		i := indexFold(s[from:], openTag)
		if i < 0 {
			return -1
		}
		pos := from + i
		next := pos + len(openTag)
		if next < len(s) {
			switch s[next] {
			case '>', '/', ' ', '\t', '\n', '\r':
				return pos
			}
		}
		from = pos + 1
	}
	return -1
}

func indexFold(s, substr string) int {
	n := len(substr)
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}

func lastIndexFold(s, substr string) int {
	n := len(substr)
	for i := len(s) - n; i >= 0; i-- {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}
