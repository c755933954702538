package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ogulcanaydogan/research-deck/internal/hash"
	"github.com/ogulcanaydogan/research-deck/internal/llm"
	"github.com/ogulcanaydogan/research-deck/internal/store"
	"github.com/ogulcanaydogan/research-deck/pkg/types"
)

const (
	DefaultOutputDir = "slide_images"
	DefaultSize      = "1024x1024"
)

var (
	ErrMissingPayload = errors.New("response missing image payload")
	ErrEmptyPrompt    = errors.New("image description is empty")
)

// ImageGenerationFailure is a slide whose image could not be produced. It
// never aborts the batch.
type ImageGenerationFailure struct {
	SlideNumber int
	Attempts    int
	Err         error
}

func (e *ImageGenerationFailure) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("slide %d: image generation failed after %d attempt(s): %v", e.SlideNumber, e.Attempts, e.Err)
}

func (e *ImageGenerationFailure) Unwrap() error { return e.Err }

// Generator produces one image per call, retrying failed requests on the
// Backoff schedule.
type Generator struct {
	Client    llm.ImageClient
	Model     string
	Size      string
	OutputDir string
	Backoff   Backoff
	Sleep     Sleeper
	Logger    *slog.Logger
}

func (g *Generator) outputDir() string {
	if g.OutputDir == "" {
		return DefaultOutputDir
	}
	return g.OutputDir
}

func (g *Generator) size() string {
	if g.Size == "" {
		return DefaultSize
	}
	return g.Size
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return g.Logger
}

// Path is where the image for slide n is written.
func (g *Generator) Path(n int) string {
	return filepath.Join(g.outputDir(), types.ImageFileName(n))
}

// Generate drives the request for one slide to Success or Exhausted. The
// file is written only after a complete response has been decoded.
func (g *Generator) Generate(ctx context.Context, description string, slideNumber int) types.ImageOutcome {
	outcome := types.ImageOutcome{SlideNumber: slideNumber}
	data, attempts, err := g.request(ctx, description, slideNumber)
	outcome.Attempts = attempts
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}

	path := g.Path(slideNumber)
	if err := store.WriteFileAtomic(path, data, 0o644); err != nil {
		// The image was paid for; a local write problem is not retried.
		failure := &ImageGenerationFailure{SlideNumber: slideNumber, Attempts: attempts, Err: err}
		g.logger().Error("write slide image", "slide", slideNumber, "path", path, "err", err)
		outcome.Error = failure.Error()
		return outcome
	}
	outcome.Success = true
	outcome.Path = path
	outcome.Digest = hash.DigestBytes(data)
	outcome.SizeBytes = int64(len(data))
	g.logger().Info("slide image written", "slide", slideNumber, "path", path, "attempts", attempts)
	return outcome
}

func (g *Generator) request(ctx context.Context, description string, slideNumber int) ([]byte, int, error) {
	log := g.logger().With("slide", slideNumber)
	if strings.TrimSpace(description) == "" {
		return nil, 0, &ImageGenerationFailure{SlideNumber: slideNumber, Err: ErrEmptyPrompt}
	}
	if g.Client == nil {
		return nil, 0, &ImageGenerationFailure{SlideNumber: slideNumber, Err: errors.New("image client is not configured")}
	}
	sleep := g.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	req := llm.ImageRequest{
		Model:          g.Model,
		Prompt:         description,
		N:              1,
		Size:           g.size(),
		ResponseFormat: "b64_json",
	}

	m := newMachine(g.Backoff)
	m.start()
	for {
		data, err := g.attempt(ctx, req)
		if err == nil {
			m.succeed()
			return data, m.Attempts(), nil
		}
		delay, retry := m.fail()
		if !retry {
			log.Warn("image generation exhausted", "attempts", m.Attempts(), "err", err)
			return nil, m.Attempts(), &ImageGenerationFailure{SlideNumber: slideNumber, Attempts: m.Attempts(), Err: err}
		}
		log.Warn("image generation failed, retrying", "failed_attempts", m.failures, "delay", delay, "err", err)
		if serr := sleep(ctx, delay); serr != nil {
			m.abort()
			return nil, m.Attempts(), &ImageGenerationFailure{SlideNumber: slideNumber, Attempts: m.Attempts(), Err: errors.Join(err, serr)}
		}
	}
}

func (g *Generator) attempt(ctx context.Context, req llm.ImageRequest) ([]byte, error) {
	resp, err := g.Client.GenerateImage(ctx, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(resp.B64JSON) == "" {
		return nil, ErrMissingPayload
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(resp.B64JSON))
	if err != nil {
		return nil, fmt.Errorf("decode image payload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrMissingPayload
	}
	return data, nil
}
