package prompt

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyResearch = errors.New("research text is empty")

// Build returns the single user message that asks the text model for a
// slide-collection XML document.
func Build(research string, slideCount int) (string, error) {
	research = strings.TrimSpace(research)
	if research == "" {
		return "", ErrEmptyResearch
	}
	if slideCount <= 0 {
		return "", fmt.Errorf("slide count must be positive, got %d", slideCount)
	}
	return fmt.Sprintf(slideTemplate, slideCount, slideCount, research), nil
}

const slideTemplate = `You are an expert presentation designer. Turn the research below into a slide deck of exactly %d slides.

For every slide provide:
- title: a short, specific slide title
- text: 3 to 5 concise speaker bullet points, one per line, each starting with "- "
- imageDescription: a vivid, self-contained prompt for an image model describing one illustration for the slide (no text or lettering in the image)

Respond ONLY with XML in this exact structure and nothing else:

<slides>
  <slide>
    <title>...</title>
    <text>...</text>
    <imageDescription>...</imageDescription>
  </slide>
</slides>

Repeat the <slide> element %d times. Escape "&" as "&amp;" and "<" as "&lt;" inside element text.

Research:
"""
%s
"""
`
