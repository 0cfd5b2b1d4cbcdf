// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"sync/atomic"
)

// Handle is the caller's control over one in-flight transfer. All methods
// are non-blocking except Wait, and safe to call from any goroutine.
type Handle struct {
	operation string
	token     *CancelToken

	done     atomic.Bool
	progress atomic.Pointer[Progress]

	finished chan struct{}
	result   Result
	err      error
}

func newHandle(operation string, token *CancelToken) *Handle {
	return &Handle{
		operation: operation,
		token:     token,
		finished:  make(chan struct{}),
	}
}

// Operation returns the model name or request id of the transfer.
func (h *Handle) Operation() string { return h.operation }

// Cancel aborts the transfer. Calling it again, or after the transfer has
// finished, has no effect.
func (h *Handle) Cancel() {
	if h.token == nil || h.done.Load() {
		return
	}
	h.token.Cancel()
}

// Cancelled reports whether Cancel was called (directly or through the
// context the transfer was started with).
func (h *Handle) Cancelled() bool {
	return h.token != nil && h.token.Cancelled()
}

// Done reports whether the terminal notification has been dispatched.
func (h *Handle) Done() bool { return h.done.Load() }

// LatestProgress returns the most recent pull progress, or nil if none has
// arrived yet or the transfer is not a pull.
func (h *Handle) LatestProgress() *Progress { return h.progress.Load() }

// Finished is closed once the transfer reaches its terminal state.
func (h *Handle) Finished() <-chan struct{} { return h.finished }

// Wait blocks until the transfer finishes or ctx is done and reports the
// result the way the blocking calls do. Giving up on the wait does not
// cancel the transfer.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.finished:
		return h.result, outcomeError(h.result, h.err)
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (h *Handle) setProgress(p Progress) {
	h.progress.Store(&p)
}

// finish is called exactly once, by the sink that won the terminal guard.
func (h *Handle) finish(res Result, err error) {
	h.result = res
	h.err = err
	h.done.Store(true)
	close(h.finished)
}
