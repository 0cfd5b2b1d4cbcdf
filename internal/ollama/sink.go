// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Handler receives the events of one or more transfers. Every field is
// optional.
//
// OnEvent is called for each intermediate event in wire order. Returning a
// non-nil error aborts the transfer, which then completes as a Failure
// carrying that error. A panic in OnEvent is recovered and logged, and the
// transfer continues.
//
// Exactly one of OnComplete or OnError is called per transfer. OnError
// receives transport and HTTP failures; everything else, including server
// reported errors and cancellation, arrives through OnComplete.
//
// Cancellation is checked again immediately before each OnEvent call. A
// Cancel from another goroutine can still land between that check and the
// call, so at most one event may arrive after Cancel returns.
//
// A Handler shared between transfers is called concurrently from each
// transfer's goroutine.
type Handler struct {
	OnEvent    func(Event) error
	OnComplete func(Result)
	OnError    func(error)
}

// sink enforces the delivery rules of a Handler for a single transfer.
type sink struct {
	h        Handler
	handle   *Handle
	logger   *slog.Logger
	terminal atomic.Bool
}

func newSink(h Handler, handle *Handle, logger *slog.Logger) *sink {
	return &sink{h: h, handle: handle, logger: logger}
}

// dispatchEvent forwards ev unless the transfer was cancelled or already
// reached a terminal state. The returned error is the handler's request to
// abort.
func (s *sink) dispatchEvent(ev Event) (err error) {
	if s.terminal.Load() || s.h.OnEvent == nil || s.handle.Cancelled() {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("event handler panicked",
				"operation", s.handle.Operation(),
				"event", fmt.Sprintf("%T", ev),
				"panic", r,
			)
			err = nil
		}
	}()
	return s.h.OnEvent(ev)
}

// complete delivers a result through OnComplete. Only the first terminal
// call per transfer has any effect.
func (s *sink) complete(res Result) {
	if !s.terminal.CompareAndSwap(false, true) {
		return
	}
	s.handle.finish(res, nil)
	if s.h.OnComplete != nil {
		s.guard("complete", func() { s.h.OnComplete(res) })
	}
}

// fail delivers a transport or HTTP failure through OnError.
func (s *sink) fail(res Result, err error) {
	if !s.terminal.CompareAndSwap(false, true) {
		return
	}
	s.handle.finish(res, err)
	if s.h.OnError != nil {
		s.guard("error", func() { s.h.OnError(err) })
	}
}

func (s *sink) guard(stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("terminal handler panicked",
				"operation", s.handle.Operation(),
				"stage", stage,
				"panic", r,
			)
		}
	}()
	fn()
}
