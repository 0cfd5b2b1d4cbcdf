// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/time/rate"
)

// start launches one transfer on its own goroutine and returns its handle
// before any event is read.
func (c *Client) start(ctx context.Context, req StreamRequest, h Handler) *Handle {
	token := NewCancelToken(ctx)
	handle := newHandle(req.Operation, token)
	s := newSink(h, handle, c.logger)

	go c.run(token, handle, s, req)
	return handle
}

// run is the decode loop of a single transfer. Every exit path ends in
// exactly one terminal call on the sink.
func (c *Client) run(token *CancelToken, handle *Handle, s *sink, req StreamRequest) {
	started := time.Now()
	defer token.release()

	logger := c.logger.With("operation", req.Operation, "kind", req.Kind.String())
	elapsed := func() time.Duration { return time.Since(started) }

	cancelled := func() {
		logger.Info("transfer cancelled", "duration", elapsed())
		s.complete(cancelledResult(req.Operation, elapsed()))
	}

	src, err := c.transport.Open(token, req)
	if err != nil {
		if token.Cancelled() {
			cancelled()
			return
		}
		logger.Warn("transfer failed to start", "error", err)
		s.fail(failureResult(req.Operation, elapsed(), err), err)
		return
	}
	defer src.Close()

	dec := NewDecoder(req.Kind, req.Operation, logger)
	progressLog := rate.Sometimes{Interval: 2 * time.Second}

	for {
		line, readErr := src.NextLine()

		// Checked before the read error so that an abort caused by Cancel
		// is never reported as a transport failure.
		if token.Cancelled() {
			cancelled()
			return
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				logger.Warn("stream closed before completion", "skipped_lines", dec.Skipped())
				s.complete(failureResult(req.Operation, elapsed(), ErrIncomplete))
				return
			}
			logger.Warn("transfer failed", "error", readErr)
			s.fail(failureResult(req.Operation, elapsed(), readErr), readErr)
			return
		}

		for _, ev := range dec.Decode(line) {
			if token.Cancelled() {
				cancelled()
				return
			}

			switch ev := ev.(type) {
			case Done:
				c.transferSucceeded(req)
				logger.Info("transfer complete", "duration", elapsed())
				s.complete(successResult(req.Operation, elapsed()))
				return

			case ServerError:
				err := &ClientError{Type: ErrTypeServerReported, Message: ev.Message}
				logger.Warn("server reported error", "error", ev.Message)
				s.complete(failureResult(req.Operation, elapsed(), err))
				return

			case Progress:
				handle.setProgress(ev)
				progressLog.Do(func() {
					logger.Debug("pull progress", "status", ev.Status, "digest", ev.Digest,
						"completed", ev.Completed, "total", ev.Total)
				})
			}

			if abortErr := s.dispatchEvent(ev); abortErr != nil {
				err := &ClientError{Type: ErrTypeAborted, Message: "transfer aborted by handler", Cause: abortErr}
				token.abortWith(err)
				logger.Info("transfer aborted by handler", "error", abortErr)
				s.complete(failureResult(req.Operation, elapsed(), err))
				return
			}
		}
	}
}

// transferSucceeded applies the side effects of a successful stream before
// the caller is notified.
func (c *Client) transferSucceeded(req StreamRequest) {
	if req.Kind != KindPull {
		return
	}
	if c.catalog.Add(req.Operation) {
		c.logger.Debug("model added to catalogue", "model", req.Operation)
	}
}
