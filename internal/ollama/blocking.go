// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import "context"

// =============================================================================
// BLOCKING FACADE
// =============================================================================

type terminal struct {
	result Result
	err    error
}

// runBlocking starts a transfer and waits for its terminal notification.
// onEvent may be nil. There is no timeout: cancelling ctx cancels the
// transfer, which then resolves as Cancelled.
func (c *Client) runBlocking(ctx context.Context, req StreamRequest, onEvent func(Event)) (Result, error) {
	signal := make(chan terminal, 1)

	h := Handler{
		OnComplete: func(res Result) { signal <- terminal{result: res} },
		OnError:    func(err error) { signal <- terminal{err: err} },
	}
	if onEvent != nil {
		h.OnEvent = func(ev Event) error {
			onEvent(ev)
			return nil
		}
	}

	handle := c.start(ctx, req, h)
	t := <-signal
	if t.err != nil {
		// The handle recorded the full result before OnError ran.
		t.result = handle.result
	}
	return t.result, outcomeError(t.result, t.err)
}

// outcomeError turns a terminal notification into the error a blocking
// caller sees: nil on success, a cancellation error distinct from failures
// otherwise.
func outcomeError(res Result, err error) error {
	if err != nil {
		return err
	}
	switch res.Outcome {
	case OutcomeSuccess:
		return nil
	case OutcomeCancelled:
		return ErrCancelled
	}
	if res.Err != nil {
		return res.Err
	}
	return &ClientError{Type: ErrTypeUnknown, Message: res.ErrorMessage}
}

// PullModel downloads a model and blocks until it finishes. Progress is
// reported to onProgress when non-nil. A cancelled pull returns an error for
// which IsCancelled is true.
func (c *Client) PullModel(ctx context.Context, name string, insecure bool, onProgress func(Progress)) (Result, error) {
	if err := validatePull(name); err != nil {
		return Result{Operation: name, Outcome: OutcomeFailure, ErrorMessage: err.Error(), Err: err}, err
	}
	req, err := c.pullRequest(name, insecure)
	if err != nil {
		return Result{Operation: name, Outcome: OutcomeFailure, ErrorMessage: err.Error(), Err: err}, err
	}

	var onEvent func(Event)
	if onProgress != nil {
		onEvent = func(ev Event) {
			if p, ok := ev.(Progress); ok {
				onProgress(p)
			}
		}
	}

	c.logger.Info("model pull started", "model", name)
	res, err := c.runBlocking(ctx, req, onEvent)
	if err == nil {
		c.logger.Info("model pulled successfully", "model", name, "duration", res.FormattedDuration())
	}
	return res, err
}

// CollectGenerate streams a generate and returns the concatenated text once
// the stream completes. Text is only returned on success.
func (c *Client) CollectGenerate(ctx context.Context, req GenerateRequest, onChunk func(string)) (string, Result, error) {
	req.Model = c.modelOrDefault(req.Model)
	if err := validateGenerate(req); err != nil {
		return "", Result{Outcome: OutcomeFailure, ErrorMessage: err.Error(), Err: err}, err
	}
	req.Stream = true
	sr, err := c.streamRequest("/api/generate", KindGenerate, "generate-"+newOperationID(), req)
	if err != nil {
		return "", Result{Outcome: OutcomeFailure, ErrorMessage: err.Error(), Err: err}, err
	}
	return c.collect(ctx, sr, onChunk)
}

// CollectChat streams a chat and returns the concatenated assistant reply
// once the stream completes. Text is only returned on success.
func (c *Client) CollectChat(ctx context.Context, req ChatRequest, onChunk func(string)) (string, Result, error) {
	req.Model = c.modelOrDefault(req.Model)
	if err := validateChat(req); err != nil {
		return "", Result{Outcome: OutcomeFailure, ErrorMessage: err.Error(), Err: err}, err
	}
	req.Stream = true
	sr, err := c.streamRequest("/api/chat", KindChat, "chat-"+newOperationID(), req)
	if err != nil {
		return "", Result{Outcome: OutcomeFailure, ErrorMessage: err.Error(), Err: err}, err
	}
	return c.collect(ctx, sr, onChunk)
}

func (c *Client) collect(ctx context.Context, req StreamRequest, onChunk func(string)) (string, Result, error) {
	acc := NewStreamAccumulator()
	res, err := c.runBlocking(ctx, req, func(ev Event) {
		acc.Add(ev)
		if onChunk == nil {
			return
		}
		switch ev := ev.(type) {
		case TextChunk:
			onChunk(ev.Content)
		case ChatChunk:
			onChunk(ev.Content)
		}
	})
	if err != nil {
		return "", res, err
	}
	return acc.Content(), res, nil
}

// =============================================================================
// FUTURES
// =============================================================================

// Future is the eventual value of an asynchronous operation.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.value = v
	f.err = err
	close(f.done)
}

// Done is closed once the value is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the value is available or ctx is done. Abandoning the
// wait leaves the operation running; cancel the context it was started
// with to stop it.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// PullModelAsync runs PullModel on its own goroutine.
func (c *Client) PullModelAsync(ctx context.Context, name string, insecure bool, onProgress func(Progress)) *Future[Result] {
	f := newFuture[Result]()
	go func() {
		f.resolve(c.PullModel(ctx, name, insecure, onProgress))
	}()
	return f
}
