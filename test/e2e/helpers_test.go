//go:build e2e

package e2e

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-containerregistry/pkg/registry"
)

// modelServer is an OpenAI-compatible stand-in for both model services.
type modelServer struct {
	mu         sync.Mutex
	deck       string
	chatCalls  int
	imageCalls map[string]int
	// flaky prompts fail this many times before succeeding.
	flaky map[string]int
}

func newModelServer(t *testing.T, deck string) (*modelServer, string) {
	t.Helper()
	m := &modelServer{deck: deck, imageCalls: map[string]int{}, flaky: map[string]int{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", m.chat)
	mux.HandleFunc("/v1/images/generations", m.image)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return m, srv.URL + "/v1"
}

func (m *modelServer) chat(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	m.chatCalls++
	m.mu.Unlock()
	resp := map[string]any{
		"choices": []any{map[string]any{
			"message":       map[string]any{"role": "assistant", "content": m.deck},
			"finish_reason": "stop",
		}},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (m *modelServer) image(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Prompt         string `json:"prompt"`
		N              int    `json:"n"`
		ResponseFormat string `json:"response_format"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.N != 1 || req.ResponseFormat != "b64_json" {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
		return
	}
	m.mu.Lock()
	m.imageCalls[req.Prompt]++
	failing := m.imageCalls[req.Prompt] <= m.flaky[req.Prompt]
	m.mu.Unlock()

	if strings.Contains(req.Prompt, "forbidden") || failing {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"image backend overloaded"}}`))
		return
	}
	payload := base64.StdEncoding.EncodeToString([]byte("PNG:" + req.Prompt))
	_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{map[string]any{"b64_json": payload}}})
}

func (m *modelServer) totalImageCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.imageCalls {
		n += c
	}
	return n
}

func startRegistry(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(registry.New())
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func slide(title, text, desc string) string {
	return fmt.Sprintf("<slide><title>%s</title><text>%s</text><imageDescription>%s</imageDescription></slide>", title, text, desc)
}
