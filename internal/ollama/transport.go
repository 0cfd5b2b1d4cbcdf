// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// maxLineSize bounds a single NDJSON line. Pull status lines are tiny but
// generate lines with a final context array can reach several hundred KB.
const maxLineSize = 4 * 1024 * 1024

// =============================================================================
// STREAM REQUEST
// =============================================================================

// StreamRequest describes one streamed call. It must not be modified once
// the transfer has started.
type StreamRequest struct {
	URL       string
	Payload   []byte
	Kind      Kind
	Operation string
}

// =============================================================================
// CANCEL TOKEN
// =============================================================================

// CancelToken aborts one transfer. Cancel records the cancellation before
// aborting the request so that a read error caused by the abort can be
// recognised as a cancellation.
type CancelToken struct {
	ctx       context.Context
	abort     context.CancelCauseFunc
	cancelled atomic.Bool
	once      sync.Once
	stop      func() bool
}

// NewCancelToken derives a token from parent. Cancelling parent cancels the
// token the same way Cancel does.
func NewCancelToken(parent context.Context) *CancelToken {
	ctx, abort := context.WithCancelCause(context.WithoutCancel(parent))
	t := &CancelToken{ctx: ctx, abort: abort}
	t.stop = context.AfterFunc(parent, t.Cancel)
	return t
}

// Cancel marks the token cancelled and aborts the underlying request.
// It is idempotent and safe to call from any goroutine.
func (t *CancelToken) Cancel() {
	t.once.Do(func() {
		t.cancelled.Store(true)
		t.abort(ErrCancelled)
	})
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	return t.cancelled.Load()
}

// Context is the request context governed by the token.
func (t *CancelToken) Context() context.Context {
	return t.ctx
}

// abortWith tears the request down without marking it cancelled, used for
// idle timeouts and handler-requested aborts.
func (t *CancelToken) abortWith(cause error) {
	t.abort(cause)
}

// release detaches the token from its parent context once the transfer is
// over.
func (t *CancelToken) release() {
	t.stop()
	t.abort(context.Canceled)
}

// =============================================================================
// LINE SOURCE
// =============================================================================

// LineSource yields the lines of a response body.
type LineSource interface {
	// NextLine blocks until a line is available. It returns io.EOF once the
	// server has closed the stream.
	NextLine() ([]byte, error)
	Close() error
}

type bodyLineSource struct {
	body   io.ReadCloser
	reader *bufio.Reader
	token  *CancelToken
	idle   time.Duration
	timer  *time.Timer
}

// NextLine runs the idle timer only while it waits on the network. Time
// spent in handlers between calls is not counted.
func (s *bodyLineSource) NextLine() ([]byte, error) {
	if s.timer != nil {
		s.timer.Reset(s.idle)
	}

	var buf []byte
	for {
		frag, isPrefix, err := s.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(buf) > 0 {
					return s.deliver(buf)
				}
				return nil, io.EOF
			}
			return nil, transportError(s.token.Context(), err)
		}
		if len(buf)+len(frag) > maxLineSize {
			return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "stream line exceeds maximum size"}
		}
		buf = append(buf, frag...)
		if !isPrefix {
			return s.deliver(buf)
		}
	}
}

// deliver stops the idle timer and returns line. A timer that fired while
// the line was being read has already aborted the request, which the caller
// sees as a Timeout on the next read.
func (s *bodyLineSource) deliver(line []byte) ([]byte, error) {
	if s.timer != nil {
		s.timer.Stop()
	}
	return line, nil
}

func (s *bodyLineSource) Close() error {
	if s.timer != nil {
		s.timer.Stop()
	}
	return s.body.Close()
}

// =============================================================================
// TRANSPORT
// =============================================================================

// Transport opens streamed HTTP requests. Pull requests go through a client
// without any timeout; generate and chat streams are guarded by an idle read
// timeout that is re-armed on every line.
type Transport struct {
	streamClient *http.Client
	readTimeout  time.Duration
	authorize    func(*http.Request)
	logger       *slog.Logger
}

// NewTransport builds a transport with the given connect and idle read
// timeouts. A zero readTimeout disables the idle timer entirely.
func NewTransport(connectTimeout, readTimeout time.Duration, authorize func(*http.Request), logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	if authorize == nil {
		authorize = func(*http.Request) {}
	}

	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}
	rt := http.DefaultTransport.(*http.Transport).Clone()
	rt.DialContext = dialer.DialContext

	return &Transport{
		// No Timeout: it would bound the whole body read, and pulls can run
		// for tens of minutes.
		streamClient: &http.Client{Transport: rt},
		readTimeout:  readTimeout,
		authorize:    authorize,
		logger:       logger,
	}
}

// Open sends req and returns a line reader over the response body. Exactly
// one connection is made; nothing is retried.
func (t *Transport) Open(token *CancelToken, req StreamRequest) (LineSource, error) {
	httpReq, err := http.NewRequestWithContext(token.Context(), http.MethodPost, req.URL, bytes.NewReader(req.Payload))
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson")
	t.authorize(httpReq)

	var timer *time.Timer
	idle := t.readTimeout
	if req.Kind == KindPull {
		idle = 0
	}
	if idle > 0 {
		// Covers the wait for response headers as well as every line read.
		timer = time.AfterFunc(idle, func() { token.abortWith(errReadTimeout) })
	}

	resp, err := t.streamClient.Do(httpReq)
	if err != nil {
		if timer != nil {
			timer.Stop()
		}
		return nil, transportError(token.Context(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if timer != nil {
			timer.Stop()
		}
		defer resp.Body.Close()
		return nil, statusError(resp, req.Kind.String()+" "+req.Operation)
	}

	t.logger.Debug("stream opened",
		"operation", req.Operation,
		"kind", req.Kind.String(),
		"status", resp.StatusCode,
	)

	return &bodyLineSource{
		body:   resp.Body,
		reader: bufio.NewReaderSize(resp.Body, 64*1024),
		token:  token,
		idle:   idle,
		timer:  timer,
	}, nil
}
