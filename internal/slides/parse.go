package slides

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ogulcanaydogan/research-deck/pkg/types"
)

// Result is a parsed deck plus the non-fatal findings about it.
type Result struct {
	Deck     types.Deck
	Expected int
	Invalid  []SlideValidationWarning
}

// CountMismatch is advisory: the model does not reliably honour the
// requested slide count.
func (r Result) CountMismatch() bool {
	return r.Expected > 0 && len(r.Deck) != r.Expected
}

func (r Result) Warnings() []string {
	out := make([]string, 0, len(r.Invalid)+1)
	if r.CountMismatch() {
		out = append(out, fmt.Sprintf("expected %d slides, model returned %d", r.Expected, len(r.Deck)))
	}
	for _, w := range r.Invalid {
		out = append(out, w.String())
	}
	return out
}

type node struct {
	name     string
	children []*node
	text     strings.Builder
}

func (n *node) childrenNamed(name string) []*node {
	out := make([]*node, 0, len(n.children))
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// Parse turns a repaired slide-collection fragment into a deck. Tag names
// are matched case-insensitively and slide numbers follow document order.
func Parse(fragment string, expected int) (Result, error) {
	roots, err := decodeTree(fragment)
	if err != nil {
		return Result{}, &StructureError{Kind: ErrMalformedXML, Err: err}
	}

	elems := make([]*node, 0)
	for _, root := range roots {
		if root.name == "slide" {
			elems = append(elems, root)
			continue
		}
		elems = append(elems, root.childrenNamed("slide")...)
	}
	if len(elems) == 0 {
		return Result{}, &StructureError{Kind: ErrNoSlides}
	}

	deck := make(types.Deck, 0, len(elems))
	for _, el := range elems {
		deck = append(deck, recordFromNode(el))
	}
	deck, invalid := Validate(deck)
	return Result{Deck: deck, Expected: expected, Invalid: invalid}, nil
}

// Validate renumbers slides by position and recomputes IsValid. Checkpoints
// may be hand-edited, so loaded decks go through this too.
func Validate(deck types.Deck) (types.Deck, []SlideValidationWarning) {
	out := make(types.Deck, len(deck))
	var invalid []SlideValidationWarning
	for i, s := range deck {
		s.SlideNumber = i + 1
		missing := s.MissingFields()
		s.IsValid = len(missing) == 0
		if !s.IsValid {
			invalid = append(invalid, SlideValidationWarning{SlideNumber: s.SlideNumber, Missing: missing})
		}
		out[i] = s
	}
	return out, invalid
}

func recordFromNode(el *node) types.SlideRecord {
	var rec types.SlideRecord
	for _, c := range el.children {
		value := strings.TrimSpace(c.text.String())
		switch c.name {
		case "title":
			rec.Title = value
		case "text":
			rec.Text = value
		case "imagedescription", "image_description":
			rec.ImageDescription = value
		}
	}
	return rec
}

func decodeTree(fragment string) ([]*node, error) {
	dec := xml.NewDecoder(strings.NewReader(fragment))
	var (
		roots []*node
		stack []*node
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: strings.ToLower(t.Name.Local)}
			if len(stack) == 0 {
				roots = append(roots, n)
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
				// Keep nested markup (e.g. <li>) on separate lines once flattened.
				for _, a := range stack {
					if a.text.Len() > 0 {
						a.text.WriteByte('\n')
					}
				}
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			for _, a := range stack {
				a.text.Write(t)
			}
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].name)
	}
	return roots, nil
}
