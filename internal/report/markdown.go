package report

import (
	"fmt"
	"strings"

	"github.com/ogulcanaydogan/research-deck/internal/store"
	"github.com/ogulcanaydogan/research-deck/pkg/types"
)

// Status condenses a run into one word. A run with failed images still
// completed; PARTIAL only flags that some slides need a rerun.
func Status(s types.RunSummary) string {
	switch {
	case s.ValidSlides == 0:
		return "NO IMAGES"
	case s.Failed > 0:
		return "PARTIAL"
	default:
		return "COMPLETE"
	}
}

func BuildMarkdown(s types.RunSummary) string {
	var b strings.Builder
	b.WriteString("# Slide Deck Run Report\n\n")
	b.WriteString(fmt.Sprintf("- Status: **%s**\n", Status(s)))
	b.WriteString(fmt.Sprintf("- Run ID: `%s`\n", s.RunID))
	b.WriteString(fmt.Sprintf("- Source: `%s`\n", s.Source))
	b.WriteString(fmt.Sprintf("- Deck Fingerprint: `%s`\n", s.DeckFingerprint))
	if s.StartedAt != "" {
		b.WriteString(fmt.Sprintf("- Started: `%s`\n", s.StartedAt))
	}
	if s.FinishedAt != "" {
		b.WriteString(fmt.Sprintf("- Finished: `%s`\n", s.FinishedAt))
	}
	b.WriteString(fmt.Sprintf("- Slides: `%d` total, `%s`\n\n", s.TotalSlides, s.Line()))

	if len(s.Outcomes) > 0 {
		b.WriteString("## Images\n\n")
		b.WriteString("| Slide | Success | Attempts | Path | Digest | Error |\n")
		b.WriteString("|---:|---:|---:|---|---|---|\n")
		for _, o := range s.Outcomes {
			b.WriteString(fmt.Sprintf("| %d | %t | %d | %s | %s | %s |\n",
				o.SlideNumber, o.Success, o.Attempts, orDash(o.Path), orDash(o.Digest), orDash(cell(o.Error))))
		}
	}

	if len(s.InvalidSlides) > 0 {
		nums := make([]string, 0, len(s.InvalidSlides))
		for _, n := range s.InvalidSlides {
			nums = append(nums, fmt.Sprint(n))
		}
		b.WriteString("\n## Skipped Slides\n\n")
		b.WriteString("Invalid slides (no image requested): " + strings.Join(nums, ", ") + "\n")
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range s.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}

func WriteMarkdown(path string, s types.RunSummary) error {
	return store.WriteFileAtomic(path, []byte(BuildMarkdown(s)), 0o644)
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
