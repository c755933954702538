package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ogulcanaydogan/research-deck/internal/config"
)

// Client talks to an OpenAI-compatible API. Each configured base URL is
// tried in order until one answers.
type Client struct {
	baseURLs []string
	model    string
	apiKey   string
	http     *http.Client
}

func NewClient(cfg config.ServiceConfig) *Client {
	baseURLs := splitBaseURLs(cfg.BaseURL)
	if len(baseURLs) == 0 {
		baseURLs = []string{normalizeBaseURL("https://api.openai.com/v1")}
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURLs: baseURLs,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
}

// post sends payload to path on each base URL in turn and decodes the first
// 2xx response into out.
func (c *Client) post(ctx context.Context, path string, payload []byte, out any) error {
	if len(c.baseURLs) == 0 {
		return fmt.Errorf("base URL is not configured")
	}
	failures := make([]string, 0, len(c.baseURLs))
	for _, baseURL := range c.baseURLs {
		err := c.postAtEndpoint(ctx, baseURL+path, payload, out)
		if err == nil {
			return nil
		}
		failures = append(failures, fmt.Sprintf("%s (%v)", baseURL, err))
		if ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("request failed across endpoints: %s", strings.Join(failures, " | "))
}

func (c *Client) postAtEndpoint(ctx context.Context, endpoint string, payload []byte, out any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body apiErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		return fmt.Errorf("status %s: %s", resp.Status, body.Error.Message)
	}
	return fmt.Errorf("status %s", resp.Status)
}

func normalizeBaseURL(baseURL string) string {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return trimmed
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	trimmed = strings.TrimRight(trimmed, "/")
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}

func splitBaseURLs(raw string) []string {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r' || r == '\t' || r == ' '
	})
	out := make([]string, 0, len(tokens))
	seen := map[string]struct{}{}
	for _, token := range tokens {
		normalized := normalizeBaseURL(token)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}
