package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ogulcanaydogan/research-deck/internal/extract"
	"github.com/ogulcanaydogan/research-deck/internal/hash"
	"github.com/ogulcanaydogan/research-deck/internal/imagegen"
	"github.com/ogulcanaydogan/research-deck/internal/llm"
	"github.com/ogulcanaydogan/research-deck/internal/prompt"
	"github.com/ogulcanaydogan/research-deck/internal/slides"
	"github.com/ogulcanaydogan/research-deck/internal/store"
	"github.com/ogulcanaydogan/research-deck/pkg/types"
)

const DefaultSlideCount = 10

var ErrMissingResearch = errors.New("research file not found")

const TruncatedWarning = "model output was truncated at its token limit; the deck may be missing slides"

// ImageGenerator produces the image for one slide. It reports failure in the
// outcome and never returns an error.
type ImageGenerator interface {
	Generate(ctx context.Context, description string, slideNumber int) types.ImageOutcome
}

type Options struct {
	Store        store.Store
	Text         llm.TextClient
	TextModel    string
	Images       ImageGenerator
	ResearchPath string
	OutputDir    string
	SlideCount   int
	Logger       *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o Options) outputDir() string {
	if o.OutputDir == "" {
		return imagegen.DefaultOutputDir
	}
	return o.OutputDir
}

func (o Options) slideCount() int {
	if o.SlideCount <= 0 {
		return DefaultSlideCount
	}
	return o.SlideCount
}

// Run loads the checkpoint or generates a new deck, then requests one image
// per valid slide concurrently. Per-slide image failures are reported in the
// summary; only problems obtaining the deck are returned as errors.
func Run(ctx context.Context, opts Options) (types.RunSummary, error) {
	log := opts.logger()
	summary := types.RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if opts.Store == nil {
		return summary, fmt.Errorf("pipeline requires a slide store")
	}
	if opts.Images == nil {
		return summary, fmt.Errorf("pipeline requires an image generator")
	}

	deck, source, warnings, err := obtainDeck(ctx, opts, log)
	if err != nil {
		return summary, err
	}
	fingerprint, err := hash.Fingerprint(deck)
	if err != nil {
		return summary, err
	}
	summary.Source = source
	summary.DeckFingerprint = fingerprint
	summary.TotalSlides = len(deck)
	summary.InvalidSlides = deck.InvalidNumbers()
	summary.Warnings = warnings
	for _, w := range warnings {
		log.Warn(w)
	}

	valid := deck.Valid()
	summary.ValidSlides = len(valid)
	if len(valid) == 0 {
		log.Warn("no valid slides, skipping image generation")
		summary.Outcomes = []types.ImageOutcome{}
		summary.FinishedAt = time.Now().UTC().Format(time.RFC3339)
		return summary, nil
	}

	if err := store.EnsureDir(opts.outputDir()); err != nil {
		return summary, err
	}

	summary.Outcomes = generateAll(ctx, opts.Images, valid)
	for _, o := range summary.Outcomes {
		if o.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	summary.FinishedAt = time.Now().UTC().Format(time.RFC3339)
	log.Info("run complete", "run_id", summary.RunID, "valid", summary.ValidSlides, "succeeded", summary.Succeeded, "failed", summary.Failed)
	return summary, nil
}

// generateAll starts every slide at once. Each goroutine owns one slot of the
// result slice, so results come back in deck order whatever order they finish.
func generateAll(ctx context.Context, images ImageGenerator, valid []types.SlideRecord) []types.ImageOutcome {
	outcomes := make([]types.ImageOutcome, len(valid))
	var g errgroup.Group
	for i, s := range valid {
		g.Go(func() error {
			outcomes[i] = images.Generate(ctx, s.ImageDescription, s.SlideNumber)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func obtainDeck(ctx context.Context, opts Options, log *slog.Logger) (types.Deck, string, []string, error) {
	if opts.Store.Exists() {
		deck, err := opts.Store.Load()
		if err != nil {
			return nil, "", nil, err
		}
		log.Info("resuming from checkpoint", "slides", len(deck))
		_, invalid := slides.Validate(deck)
		warnings := make([]string, 0, len(invalid))
		for _, w := range invalid {
			warnings = append(warnings, w.String())
		}
		return deck, types.SourceCheckpoint, warnings, nil
	}

	result, truncated, err := generateDeck(ctx, opts, log)
	if err != nil {
		return nil, "", nil, err
	}
	if err := opts.Store.Save(result.Deck); err != nil {
		return nil, "", nil, err
	}
	log.Info("checkpoint saved", "slides", len(result.Deck))
	warnings := result.Warnings()
	if truncated {
		warnings = append([]string{TruncatedWarning}, warnings...)
	}
	return result.Deck, types.SourceGenerated, warnings, nil
}

// generateDeck asks the text model for the deck. truncated reports that the
// model stopped at its token limit, which usually means missing slides.
func generateDeck(ctx context.Context, opts Options, log *slog.Logger) (result slides.Result, truncated bool, err error) {
	raw, err := os.ReadFile(opts.ResearchPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return result, false, fmt.Errorf("%w: %s", ErrMissingResearch, opts.ResearchPath)
		}
		return result, false, fmt.Errorf("read research: %w", err)
	}
	if opts.Text == nil {
		return result, false, fmt.Errorf("no checkpoint and no text model configured")
	}
	content, err := prompt.Build(string(raw), opts.slideCount())
	if err != nil {
		return result, false, err
	}

	log.Info("generating slides", "model", opts.TextModel, "slides", opts.slideCount())
	resp, err := opts.Text.Chat(ctx, llm.UserMessage(opts.TextModel, content))
	if err != nil {
		return result, false, fmt.Errorf("generate slides: %w", err)
	}
	truncated = resp.FinishReason == llm.FinishReasonLength
	log.Debug("model output", "raw", resp.Content, "finish_reason", resp.FinishReason)

	fragment, err := extract.Extract(resp.Content)
	if err != nil {
		return result, truncated, err
	}
	log.Debug("extracted markup", "xml", fragment)

	result, err = slides.Parse(strings.TrimSpace(fragment), opts.slideCount())
	if err != nil {
		return slides.Result{}, truncated, err
	}
	return result, truncated, nil
}
