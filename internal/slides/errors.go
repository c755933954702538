package slides

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedXML = errors.New("malformed slides xml")
	ErrNoSlides     = errors.New("no slide elements")
)

// StructureError means the extracted fragment could not be turned into a
// deck at all.
type StructureError struct {
	Kind error
	Err  error
}

func (e *StructureError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind.Error(), e.Err)
}

func (e *StructureError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// SlideValidationWarning marks a slide that is kept in the deck but skipped
// for image generation.
type SlideValidationWarning struct {
	SlideNumber int
	Missing     []string
}

func (w SlideValidationWarning) String() string {
	return fmt.Sprintf("slide %d is invalid: missing %s", w.SlideNumber, strings.Join(w.Missing, ", "))
}
