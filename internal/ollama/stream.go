// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// =============================================================================
// STREAMED OPERATIONS
// =============================================================================

// GenerateStream starts a streamed generate and returns immediately. Text
// arrives as TextChunk events. An invalid request is rejected before any
// network activity.
func (c *Client) GenerateStream(ctx context.Context, req GenerateRequest, h Handler) (*Handle, error) {
	req.Model = c.modelOrDefault(req.Model)
	if err := validateGenerate(req); err != nil {
		return nil, err
	}
	req.Stream = true

	sr, err := c.streamRequest("/api/generate", KindGenerate, "generate-"+newOperationID(), req)
	if err != nil {
		return nil, err
	}
	return c.start(ctx, sr, h), nil
}

// ChatStream starts a streamed chat and returns immediately. The assistant
// reply arrives as ChatChunk events.
func (c *Client) ChatStream(ctx context.Context, req ChatRequest, h Handler) (*Handle, error) {
	req.Model = c.modelOrDefault(req.Model)
	if err := validateChat(req); err != nil {
		return nil, err
	}
	req.Stream = true

	sr, err := c.streamRequest("/api/chat", KindChat, "chat-"+newOperationID(), req)
	if err != nil {
		return nil, err
	}
	return c.start(ctx, sr, h), nil
}

// PullModelStream starts downloading a model and returns immediately. The
// handle's operation is the model name, and Progress events carry it too.
// On success the model is added to the catalogue before OnComplete runs.
func (c *Client) PullModelStream(ctx context.Context, name string, insecure bool, h Handler) (*Handle, error) {
	if err := validatePull(name); err != nil {
		return nil, err
	}
	sr, err := c.pullRequest(name, insecure)
	if err != nil {
		return nil, err
	}
	c.logger.Info("model pull started", "model", name)
	return c.start(ctx, sr, h), nil
}

// newOperationID names a generate or chat transfer; pulls use the model name.
func newOperationID() string {
	return uuid.NewString()
}

func (c *Client) pullRequest(name string, insecure bool) (StreamRequest, error) {
	return c.streamRequest("/api/pull", KindPull, name, PullRequest{Name: name, Insecure: insecure, Stream: true})
}

func (c *Client) streamRequest(path string, kind Kind, operation string, payload any) (StreamRequest, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return StreamRequest{}, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to marshal request", Cause: err}
	}
	return StreamRequest{
		URL:       c.config.BaseURL + path,
		Payload:   data,
		Kind:      kind,
		Operation: operation,
	}, nil
}

// =============================================================================
// STREAM ACCUMULATOR
// =============================================================================

// StreamAccumulator concatenates text and chat chunks. It is safe to feed
// from a Handler while another goroutine reads the content.
type StreamAccumulator struct {
	mu      sync.Mutex
	content strings.Builder
	chunks  int
}

// NewStreamAccumulator creates an empty accumulator.
func NewStreamAccumulator() *StreamAccumulator {
	return &StreamAccumulator{}
}

// Add appends the content of a TextChunk or ChatChunk; other events are
// ignored.
func (a *StreamAccumulator) Add(ev Event) {
	var text string
	switch ev := ev.(type) {
	case TextChunk:
		text = ev.Content
	case ChatChunk:
		text = ev.Content
	default:
		return
	}

	a.mu.Lock()
	a.content.WriteString(text)
	a.chunks++
	a.mu.Unlock()
}

// Content returns everything accumulated so far.
func (a *StreamAccumulator) Content() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.content.String()
}

// Chunks returns the number of chunks seen.
func (a *StreamAccumulator) Chunks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chunks
}
