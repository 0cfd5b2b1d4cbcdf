// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-ollama/internal/util"
)

// =============================================================================
// OPERATION KINDS
// =============================================================================

// Kind identifies which endpoint a stream belongs to and therefore which
// line shape the decoder expects.
type Kind int

const (
	KindGenerate Kind = iota
	KindChat
	KindPull
)

func (k Kind) String() string {
	switch k {
	case KindGenerate:
		return "generate"
	case KindChat:
		return "chat"
	case KindPull:
		return "pull"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// Event is one decoded stream line. The set of implementations is closed:
// TextChunk, ChatChunk, Progress, Done and ServerError.
type Event interface {
	event()
}

// TextChunk is a fragment of a generate response.
type TextChunk struct {
	Content string
}

// ChatChunk is a fragment of an assistant chat message.
type ChatChunk struct {
	Content string
}

// Progress is one status line of a model pull.
type Progress struct {
	Operation string // model being pulled
	Status    string
	Digest    string
	Completed int64
	Total     int64
}

// Done marks the successful end of a stream.
type Done struct {
	Reason string
}

// ServerError carries an explicit error reported by the server in-stream.
type ServerError struct {
	Message string
}

func (TextChunk) event()   {}
func (ChatChunk) event()   {}
func (Progress) event()    {}
func (Done) event()        {}
func (ServerError) event() {}

// Percent returns completion in the range 0-100, or 0 when the total is
// unknown.
func (p Progress) Percent() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Completed) * 100 / float64(p.Total)
}

// FormattedProgress renders "1.00 GB / 4.00 GB (25.0%)", or the bare status
// for lines without byte counts.
func (p Progress) FormattedProgress() string {
	if p.Total <= 0 {
		if p.Status == "" {
			return "preparing..."
		}
		return p.Status
	}
	return fmt.Sprintf("%s / %s (%.1f%%)",
		util.FormatBytes(p.Completed), util.FormatBytes(p.Total), p.Percent())
}

// IsDownloading reports whether the line describes a layer download.
func (p Progress) IsDownloading() bool {
	return strings.Contains(strings.ToLower(p.Status), "download")
}

// IsSuccess reports whether the status is the terminal "success" marker.
func (p Progress) IsSuccess() bool {
	return strings.EqualFold(p.Status, "success")
}

// =============================================================================
// RESULTS
// =============================================================================

// Outcome is the terminal classification of a transfer.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeFailure
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is created once per transfer and never modified afterwards.
type Result struct {
	Operation    string
	Outcome      Outcome
	Duration     time.Duration
	ErrorMessage string
	// Err is the typed cause for Failure and Cancelled outcomes.
	Err error
}

// DurationMs returns the transfer duration in milliseconds.
func (r Result) DurationMs() int64 { return r.Duration.Milliseconds() }

// IsSuccess reports a successful outcome.
func (r Result) IsSuccess() bool { return r.Outcome == OutcomeSuccess }

// IsCancelled reports a cancelled outcome.
func (r Result) IsCancelled() bool { return r.Outcome == OutcomeCancelled }

// FormattedDuration renders the duration for display ("3m 20s").
func (r Result) FormattedDuration() string { return util.FormatDuration(r.Duration) }

func successResult(op string, d time.Duration) Result {
	return Result{Operation: op, Outcome: OutcomeSuccess, Duration: d}
}

func cancelledResult(op string, d time.Duration) Result {
	return Result{
		Operation:    op,
		Outcome:      OutcomeCancelled,
		Duration:     d,
		ErrorMessage: ErrCancelled.Message,
		Err:          ErrCancelled,
	}
}

func failureResult(op string, d time.Duration, err error) Result {
	return Result{
		Operation:    op,
		Outcome:      OutcomeFailure,
		Duration:     d,
		ErrorMessage: failureMessage(err),
		Err:          err,
	}
}

// failureMessage prefers the server's own text over the wrapped error string.
func failureMessage(err error) string {
	if ce, ok := err.(*ClientError); ok && ce.Type == ErrTypeServerReported {
		return ce.Message
	}
	return err.Error()
}
