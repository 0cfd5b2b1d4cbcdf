// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST SERVER
// =============================================================================

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, handler http.Handler, opts ...func(*ClientConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &ClientConfig{BaseURL: srv.URL, Logger: quietLogger()}
	for _, opt := range opts {
		opt(cfg)
	}
	return NewClientWithConfig(cfg)
}

// ndjson writes each line followed by a newline, flushing after every line.
func ndjson(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			writeLine(w, line)
		}
	}
}

func writeLine(w http.ResponseWriter, line string) {
	fmt.Fprintln(w, line)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// hang keeps the response open until the client goes away.
func hang(r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(10 * time.Second):
	}
}

// =============================================================================
// RECORDING HANDLER
// =============================================================================

type recorder struct {
	mu       sync.Mutex
	events   []Event
	results  []Result
	errs     []error
	terminal chan struct{}
}

func newRecorder() *recorder {
	return &recorder{terminal: make(chan struct{}, 8)}
}

func (r *recorder) handler() Handler {
	return Handler{
		OnEvent: func(ev Event) error {
			r.mu.Lock()
			r.events = append(r.events, ev)
			r.mu.Unlock()
			return nil
		},
		OnComplete: func(res Result) {
			r.mu.Lock()
			r.results = append(r.results, res)
			r.mu.Unlock()
			r.terminal <- struct{}{}
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.terminal <- struct{}{}
		},
	}
}

// wait blocks for the first terminal notification, then gives a late
// duplicate a chance to show up.
func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.terminal:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal notification")
	}
	time.Sleep(20 * time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	require.Equal(t, 1, len(r.results)+len(r.errs), "exactly one terminal notification")
}

func (r *recorder) result(t *testing.T) Result {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.results, 1, "expected OnComplete, got errors %v", r.errs)
	return r.results[0]
}

func (r *recorder) err(t *testing.T) error {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.errs, 1, "expected OnError, got results %v", r.results)
	return r.errs[0]
}

func (r *recorder) progress() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Progress
	for _, ev := range r.events {
		if p, ok := ev.(Progress); ok {
			out = append(out, p)
		}
	}
	return out
}

func (r *recorder) eventCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
