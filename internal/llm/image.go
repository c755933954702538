package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

type ImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// ImageResponse carries the base64 payload of the first generated image.
// B64JSON is empty when the service answered without one; callers decide
// whether that is an error.
type ImageResponse struct {
	B64JSON string
}

// ImageClient is the image-generation service.
type ImageClient interface {
	GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error)
}

type imageGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error) {
	if c == nil {
		return ImageResponse{}, fmt.Errorf("llm client is nil")
	}
	if req.Model == "" {
		req.Model = c.model
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return ImageResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	var decoded imageGenerationResponse
	if err := c.post(ctx, "/images/generations", payload, &decoded); err != nil {
		return ImageResponse{}, fmt.Errorf("generate image: %w", err)
	}
	if len(decoded.Data) == 0 {
		return ImageResponse{}, nil
	}
	return ImageResponse{B64JSON: decoded.Data[0].B64JSON}, nil
}
