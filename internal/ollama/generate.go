// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/jeranaias/rigrun-ollama/internal/chunk"
	"github.com/jeranaias/rigrun-ollama/internal/prompt"
)

// =============================================================================
// BUFFERED GENERATE / CHAT / EMBED
// =============================================================================

// Generate sends a single-shot prompt and returns the complete response.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	req.Model = c.modelOrDefault(req.Model)
	if err := validateGenerate(req); err != nil {
		return nil, err
	}
	req.Stream = false

	var resp GenerateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate", req, &resp); err != nil {
		return nil, err
	}
	c.logger.Debug("generate complete",
		"model", req.Model,
		"response_len", len(resp.Response),
		"duration", resp.TotalTime())
	return &resp, nil
}

// GenerateJSON asks for a reply matching schema. The prompt is augmented
// with the expected structure and the reply is stripped of markdown and
// surrounding prose. A reply that still is not valid JSON is returned as is,
// with a warning logged.
func (c *Client) GenerateJSON(ctx context.Context, req GenerateRequest, schema prompt.Schema) (*GenerateResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, invalidRequest("prompt is required")
	}
	req.Prompt = prompt.Augment(req.Prompt, schema)

	resp, err := c.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	resp.Response = prompt.Clean(resp.Response)
	if !prompt.IsValidJSON(resp.Response) {
		c.logger.Warn("model returned invalid JSON",
			"model", resp.Model,
			"preview", preview(resp.Response, 100))
	}
	return resp, nil
}

// Chat sends a conversation and returns the complete assistant reply.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Model = c.modelOrDefault(req.Model)
	if err := validateChat(req); err != nil {
		return nil, err
	}
	req.Stream = false

	var resp ChatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Embed returns one embedding vector per input. Unset fields take the
// configured embedding defaults.
func (c *Client) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	defaults := c.config.Embedding
	if req.Model == "" {
		req.Model = defaults.Model
	}
	if req.Model == "" {
		return nil, invalidRequest("embedding model is required")
	}
	if len(req.Input) == 0 {
		return nil, invalidRequest("embedding input is required")
	}
	if req.Truncate == nil {
		truncate := defaults.Truncate
		req.Truncate = &truncate
	}
	if req.KeepAlive == "" {
		req.KeepAlive = defaults.KeepAlive
	}
	if req.Dimensions == 0 {
		req.Dimensions = defaults.Dimensions
	}

	var resp EmbedResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/embed", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(req.Input) {
		return nil, &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "embedding count does not match input count",
		}
	}
	return &resp, nil
}

// ChunkedEmbedResponse pairs each chunk of the input text with its vector.
type ChunkedEmbedResponse struct {
	EmbedResponse
	Chunks []string
}

// EmbedChunked splits text with cfg and embeds every chunk in one batch
// request. A disabled cfg embeds text as a single chunk.
func (c *Client) EmbedChunked(ctx context.Context, model, text string, cfg chunk.Config) (*ChunkedEmbedResponse, error) {
	if err := cfg.Validate(); err != nil {
		return nil, invalidRequest("chunking: %v", err)
	}
	chunks := chunk.Split(text, cfg)
	c.logger.Debug("text chunked",
		"runes", utf8.RuneCountInString(text),
		"chunks", len(chunks),
		"strategy", cfg.Strategy,
		"enabled", cfg.Enabled)

	resp, err := c.Embed(ctx, EmbedRequest{Model: model, Input: chunks})
	if err != nil {
		return nil, err
	}
	return &ChunkedEmbedResponse{EmbedResponse: *resp, Chunks: chunks}, nil
}

// EmbedText is EmbedChunked with the configured chunking settings.
func (c *Client) EmbedText(ctx context.Context, model, text string) (*ChunkedEmbedResponse, error) {
	return c.EmbedChunked(ctx, model, text, c.config.Embedding.Chunking)
}

// =============================================================================
// VALIDATION
// =============================================================================

func validateGenerate(req GenerateRequest) error {
	if strings.TrimSpace(req.Model) == "" {
		return invalidRequest("model name is required")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return invalidRequest("prompt is required")
	}
	return nil
}

func validateChat(req ChatRequest) error {
	if strings.TrimSpace(req.Model) == "" {
		return invalidRequest("model name is required")
	}
	if len(req.Messages) == 0 {
		return invalidRequest("at least one message is required")
	}
	return nil
}

func validatePull(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalidRequest("model name is required")
	}
	return nil
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
