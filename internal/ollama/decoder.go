// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
)

// Decoder maps NDJSON lines of one stream to events. It is not safe for
// concurrent use; each transfer owns its own decoder.
type Decoder struct {
	kind      Kind
	operation string
	logger    *slog.Logger

	// highest completed byte count seen per digest
	completed map[string]int64
	skipped   int
}

// NewDecoder creates a decoder for one stream of the given kind.
func NewDecoder(kind Kind, operation string, logger *slog.Logger) *Decoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Decoder{
		kind:      kind,
		operation: operation,
		logger:    logger,
		completed: make(map[string]int64),
	}
}

// Skipped returns the number of malformed lines dropped so far.
func (d *Decoder) Skipped() int { return d.skipped }

// Decode returns the events carried by one line. A nil result means the
// line is skipped: blank, malformed, or without content.
//
// A generate or chat line may yield both a chunk and Done when the final
// line still carries content.
func (d *Decoder) Decode(line []byte) []Event {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	switch d.kind {
	case KindGenerate:
		var l generateLine
		if !d.unmarshal(line, &l) {
			return nil
		}
		if l.Error != nil {
			return []Event{ServerError{Message: *l.Error}}
		}
		return d.textEvents(TextChunk{Content: l.Response}, l.Response, l.Done, l.DoneReason)

	case KindChat:
		var l chatLine
		if !d.unmarshal(line, &l) {
			return nil
		}
		if l.Error != nil {
			return []Event{ServerError{Message: *l.Error}}
		}
		return d.textEvents(ChatChunk{Content: l.Message.Content}, l.Message.Content, l.Done, l.DoneReason)

	case KindPull:
		var l pullLine
		if !d.unmarshal(line, &l) {
			return nil
		}
		if l.Error != nil {
			return []Event{ServerError{Message: *l.Error}}
		}
		if strings.EqualFold(l.Status, "success") {
			return []Event{Done{}}
		}
		return []Event{d.progress(l)}
	}

	return nil
}

func (d *Decoder) unmarshal(line []byte, v any) bool {
	if err := json.Unmarshal(line, v); err != nil {
		d.skipped++
		d.logger.Debug("skipping malformed stream line",
			"operation", d.operation,
			"kind", d.kind.String(),
			"error", err,
		)
		return false
	}
	return true
}

func (d *Decoder) textEvents(chunk Event, content string, done bool, reason string) []Event {
	var events []Event
	if content != "" {
		events = append(events, chunk)
	}
	if done {
		events = append(events, Done{Reason: reason})
	}
	return events
}

// progress builds a Progress event with completed clamped so that it never
// moves backwards within a digest and never exceeds a known total.
func (d *Decoder) progress(l pullLine) Progress {
	completed := l.Completed
	if completed < 0 {
		completed = 0
	}
	if l.Digest != "" {
		if prev, ok := d.completed[l.Digest]; ok && completed < prev {
			completed = prev
		}
	}
	if l.Total > 0 && completed > l.Total {
		completed = l.Total
	}
	if l.Digest != "" {
		d.completed[l.Digest] = completed
	}

	return Progress{
		Operation: d.operation,
		Status:    l.Status,
		Digest:    l.Digest,
		Completed: completed,
		Total:     l.Total,
	}
}
