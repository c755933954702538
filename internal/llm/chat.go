package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// FinishReasonLength is reported when the completion hit max tokens.
const FinishReasonLength = "length"

type ChatResponse struct {
	Content      string
	FinishReason string
}

// TextClient is the text-generation service.
type TextClient interface {
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      Message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if c == nil {
		return ChatResponse{}, fmt.Errorf("llm client is nil")
	}
	if len(req.Messages) == 0 {
		return ChatResponse{}, fmt.Errorf("llm chat requires at least one message")
	}
	if req.Model == "" {
		req.Model = c.model
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	var decoded chatCompletionResponse
	if err := c.post(ctx, "/chat/completions", payload, &decoded); err != nil {
		return ChatResponse{}, fmt.Errorf("chat: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return ChatResponse{}, fmt.Errorf("chat: response missing choices")
	}
	content := decoded.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return ChatResponse{}, fmt.Errorf("chat: response empty")
	}
	return ChatResponse{
		Content:      content,
		FinishReason: strings.TrimSpace(decoded.Choices[0].FinishReason),
	}, nil
}

// UserMessage builds a single-message request, which is all the slide
// prompt needs.
func UserMessage(model, content string) ChatRequest {
	return ChatRequest{
		Model:    model,
		Messages: []Message{{Role: "user", Content: content}},
	}
}
