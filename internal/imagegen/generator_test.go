package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ogulcanaydogan/research-deck/internal/llm"
)

type scriptedClient struct {
	mu        sync.Mutex
	responses []func() (llm.ImageResponse, error)
	requests  []llm.ImageRequest
}

func (c *scriptedClient) GenerateImage(_ context.Context, req llm.ImageRequest) (llm.ImageResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	i := len(c.requests) - 1
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return c.responses[i]()
}

func ok(data string) func() (llm.ImageResponse, error) {
	return func() (llm.ImageResponse, error) {
		return llm.ImageResponse{B64JSON: base64.StdEncoding.EncodeToString([]byte(data))}, nil
	}
}

func fail(msg string) func() (llm.ImageResponse, error) {
	return func() (llm.ImageResponse, error) { return llm.ImageResponse{}, errors.New(msg) }
}

func noPayload() (llm.ImageResponse, error) { return llm.ImageResponse{}, nil }

type sleepRecorder struct {
	delays []time.Duration
}

func (r *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func newGenerator(t *testing.T, client llm.ImageClient, rec *sleepRecorder) *Generator {
	t.Helper()
	return &Generator{
		Client:    client,
		Model:     "image-model",
		Size:      "1024x1024",
		OutputDir: t.TempDir(),
		Backoff:   Backoff{MaxRetries: 3, InitialDelay: 1000 * time.Millisecond},
		Sleep:     rec.sleep,
	}
}

func TestGenerate_AlwaysFailingExhaustsBudget(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){fail("503 upstream")}}
	rec := &sleepRecorder{}
	g := newGenerator(t, client, rec)

	out := g.Generate(context.Background(), "a red fox", 4)

	if out.Success {
		t.Fatal("expected failure")
	}
	if len(client.requests) != 4 {
		t.Fatalf("attempts = %d, want 4", len(client.requests))
	}
	if out.Attempts != 4 {
		t.Errorf("outcome attempts = %d, want 4", out.Attempts)
	}
	want := []time.Duration{1000 * time.Millisecond, 2000 * time.Millisecond, 4000 * time.Millisecond}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, rec.delays[i], want[i])
		}
	}
	if !strings.Contains(out.Error, "503 upstream") {
		t.Errorf("error should carry last failure message, got %q", out.Error)
	}
	if _, err := os.Stat(g.Path(4)); !os.IsNotExist(err) {
		t.Fatalf("no file may be written on failure, stat err = %v", err)
	}
	entries, _ := os.ReadDir(g.OutputDir)
	if len(entries) != 0 {
		t.Fatalf("output dir should be empty, has %d entries", len(entries))
	}
}

func TestGenerate_SucceedsAfterRetries(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){
		fail("timeout"), noPayload, ok("PNGDATA"),
	}}
	rec := &sleepRecorder{}
	g := newGenerator(t, client, rec)

	out := g.Generate(context.Background(), "a blue whale", 2)

	if !out.Success {
		t.Fatalf("expected success, got %+v", out)
	}
	if out.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", out.Attempts)
	}
	if len(rec.delays) != 2 || rec.delays[0] != time.Second || rec.delays[1] != 2*time.Second {
		t.Errorf("delays = %v", rec.delays)
	}
	wantPath := filepath.Join(g.OutputDir, "slide_2_image.png")
	if out.Path != wantPath {
		t.Errorf("path = %q, want %q", out.Path, wantPath)
	}
	raw, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "PNGDATA" {
		t.Errorf("content = %q", raw)
	}
	if !strings.HasPrefix(out.Digest, "sha256:") || out.SizeBytes != int64(len("PNGDATA")) {
		t.Errorf("digest/size = %q/%d", out.Digest, out.SizeBytes)
	}
}

func TestGenerate_FirstAttemptSuccessNoDelay(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){ok("img")}}
	rec := &sleepRecorder{}
	g := newGenerator(t, client, rec)

	out := g.Generate(context.Background(), "prompt", 1)
	if !out.Success || out.Attempts != 1 {
		t.Fatalf("outcome = %+v", out)
	}
	if len(rec.delays) != 0 {
		t.Fatalf("no delay expected, got %v", rec.delays)
	}
}

func TestGenerate_RequestShape(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){ok("img")}}
	g := newGenerator(t, client, &sleepRecorder{})

	desc := "  A lighthouse & a storm, watercolor  "
	g.Generate(context.Background(), desc, 1)

	req := client.requests[0]
	if req.Prompt != desc {
		t.Errorf("prompt must be verbatim, got %q", req.Prompt)
	}
	if req.N != 1 || req.Size != "1024x1024" || req.Model != "image-model" || req.ResponseFormat != "b64_json" {
		t.Errorf("request = %+v", req)
	}
}

func TestGenerate_MissingPayloadCountsAsFailure(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){noPayload}}
	rec := &sleepRecorder{}
	g := newGenerator(t, client, rec)
	g.Backoff.MaxRetries = 1

	out := g.Generate(context.Background(), "prompt", 3)
	if out.Success {
		t.Fatal("expected failure")
	}
	if len(client.requests) != 2 {
		t.Fatalf("attempts = %d, want 2", len(client.requests))
	}
	if !strings.Contains(out.Error, ErrMissingPayload.Error()) {
		t.Errorf("error = %q", out.Error)
	}
}

func TestGenerate_BadBase64IsRetried(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){
		func() (llm.ImageResponse, error) { return llm.ImageResponse{B64JSON: "%%%not-base64"}, nil },
		ok("img"),
	}}
	g := newGenerator(t, client, &sleepRecorder{})
	out := g.Generate(context.Background(), "prompt", 1)
	if !out.Success || out.Attempts != 2 {
		t.Fatalf("outcome = %+v", out)
	}
}

func TestGenerate_ZeroRetries(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){fail("boom")}}
	rec := &sleepRecorder{}
	g := newGenerator(t, client, rec)
	g.Backoff.MaxRetries = 0

	out := g.Generate(context.Background(), "prompt", 1)
	if out.Success || len(client.requests) != 1 || len(rec.delays) != 0 {
		t.Fatalf("outcome = %+v, requests = %d, delays = %v", out, len(client.requests), rec.delays)
	}
}

func TestGenerate_EmptyDescriptionNotSent(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){ok("img")}}
	g := newGenerator(t, client, &sleepRecorder{})
	out := g.Generate(context.Background(), "   ", 1)
	if out.Success || len(client.requests) != 0 {
		t.Fatalf("outcome = %+v, requests = %d", out, len(client.requests))
	}
}

func TestGenerate_CancelledDuringBackoff(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){fail("boom")}}
	ctx, cancel := context.WithCancel(context.Background())
	g := newGenerator(t, client, &sleepRecorder{})
	g.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return SleepContext(ctx, d)
	}

	out := g.Generate(ctx, "prompt", 1)
	if out.Success {
		t.Fatal("expected failure")
	}
	if len(client.requests) != 1 {
		t.Fatalf("attempts = %d, want 1", len(client.requests))
	}
	if !strings.Contains(out.Error, "context canceled") {
		t.Errorf("error = %q", out.Error)
	}
}

func TestGenerate_WriteFailureNotRetried(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){ok("img")}}
	g := newGenerator(t, client, &sleepRecorder{})
	g.OutputDir = filepath.Join(t.TempDir(), "missing")

	out := g.Generate(context.Background(), "prompt", 1)
	if out.Success {
		t.Fatal("expected failure when output dir is missing")
	}
	if len(client.requests) != 1 {
		t.Fatalf("write failure must not re-bill the service, requests = %d", len(client.requests))
	}
}

func TestGenerator_PathNaming(t *testing.T) {
	g := &Generator{OutputDir: "out"}
	for n := 1; n <= 10; n++ {
		want := filepath.Join("out", "slide_"+itoa(n)+"_image.png")
		if got := g.Path(n); got != want {
			t.Errorf("Path(%d) = %q, want %q", n, got, want)
		}
	}
	if got := (&Generator{}).Path(1); got != filepath.Join(DefaultOutputDir, "slide_1_image.png") {
		t.Errorf("default path = %q", got)
	}
}

func itoa(n int) string {
	if n == 10 {
		return "10"
	}
	return string(rune('0' + n))
}

func TestImageGenerationFailure_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	err := error(&ImageGenerationFailure{SlideNumber: 2, Attempts: 4, Err: inner})
	if !errors.Is(err, inner) {
		t.Fatal("expected Unwrap to expose inner error")
	}
	if !strings.Contains(err.Error(), "slide 2") || !strings.Contains(err.Error(), "4 attempt") {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestGenerate_RetryLogCountsFailedAttempts(t *testing.T) {
	client := &scriptedClient{responses: []func() (llm.ImageResponse, error){fail("boom")}}
	g := newGenerator(t, client, &sleepRecorder{})
	g.Backoff.MaxRetries = 2
	var buf bytes.Buffer
	g.Logger = slog.New(slog.NewJSONHandler(&buf, nil))

	g.Generate(context.Background(), "prompt", 5)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var retries []string
	for _, l := range lines {
		if strings.Contains(l, "retrying") {
			retries = append(retries, l)
		}
	}
	if len(retries) != 2 {
		t.Fatalf("retry lines = %d:\n%s", len(retries), buf.String())
	}
	if !strings.Contains(retries[0], `"failed_attempts":1`) || !strings.Contains(retries[1], `"failed_attempts":2`) {
		t.Fatalf("unexpected retry counts:\n%s", buf.String())
	}
}
