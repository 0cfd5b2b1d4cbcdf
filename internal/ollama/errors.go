// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the Ollama client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a ClientError of the same type, so that
// errors.Is(err, ErrCancelled) matches any cancellation regardless of message.
func (e *ClientError) Is(target error) bool {
	var t *ClientError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeNotRunning
	ErrTypeTimeout
	ErrTypeModelNotFound
	ErrTypeConnection
	ErrTypeInvalidResponse
	ErrTypeInvalidRequest
	ErrTypeCancelled
	ErrTypeServerReported
	ErrTypeUnauthorized
	ErrTypeForbidden
	ErrTypeServerError
	ErrTypeIncomplete
	ErrTypeAborted
)

var errorTypeNames = map[ErrorType]string{
	ErrTypeUnknown:         "unknown",
	ErrTypeNotRunning:      "not_running",
	ErrTypeTimeout:         "timeout",
	ErrTypeModelNotFound:   "model_not_found",
	ErrTypeConnection:      "connection",
	ErrTypeInvalidResponse: "invalid_response",
	ErrTypeInvalidRequest:  "invalid_request",
	ErrTypeCancelled:       "cancelled",
	ErrTypeServerReported:  "server_reported",
	ErrTypeUnauthorized:    "unauthorized",
	ErrTypeForbidden:       "forbidden",
	ErrTypeServerError:     "server_error",
	ErrTypeIncomplete:      "incomplete",
	ErrTypeAborted:         "aborted",
}

func (t ErrorType) String() string {
	if name, ok := errorTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("error_type(%d)", int(t))
}

// Sentinel errors for easy checking.
var (
	ErrNotRunning     = &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running"}
	ErrTimeout        = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrModelNotFound  = &ClientError{Type: ErrTypeModelNotFound, Message: "model not found"}
	ErrCancelled      = &ClientError{Type: ErrTypeCancelled, Message: "transfer cancelled"}
	ErrIncomplete     = &ClientError{Type: ErrTypeIncomplete, Message: "stream ended before completion"}
	ErrInvalidRequest = &ClientError{Type: ErrTypeInvalidRequest, Message: "invalid request"}
)

// errReadTimeout is the cancel cause installed by the idle read timer.
var errReadTimeout = errors.New("stream read timed out")

func invalidRequest(format string, args ...any) *ClientError {
	return &ClientError{Type: ErrTypeInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

func hasType(err error, t ErrorType) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type == t
	}
	return false
}

// IsModelNotFound checks if the error indicates a model was not found.
func IsModelNotFound(err error) bool { return hasType(err, ErrTypeModelNotFound) }

// IsNotRunning checks if the error indicates Ollama is not running.
func IsNotRunning(err error) bool { return hasType(err, ErrTypeNotRunning) }

// IsUnreachable reports whether the server could not be reached at all.
func IsUnreachable(err error) bool {
	return hasType(err, ErrTypeNotRunning) || hasType(err, ErrTypeConnection)
}

// IsTimeout checks if the error indicates a timeout.
func IsTimeout(err error) bool { return hasType(err, ErrTypeTimeout) }

// IsCancelled checks if the error reports a caller-initiated cancellation.
func IsCancelled(err error) bool { return hasType(err, ErrTypeCancelled) }

// IsInvalidRequest checks if the error was raised before any network call
// because a required field was missing.
func IsInvalidRequest(err error) bool { return hasType(err, ErrTypeInvalidRequest) }

// transportError wraps a failure from http.Client.Do or a body read.
func transportError(ctx context.Context, err error) *ClientError {
	if errors.Is(context.Cause(ctx), errReadTimeout) {
		return &ClientError{Type: ErrTypeTimeout, Message: "stream idle timeout", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Message: "transport failure", Cause: err}
}

// connectError maps a failed request to the not-running/timeout sentinels.
func connectError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return &ClientError{Type: ErrTypeNotRunning, Message: "Ollama is not running", Cause: err}
}

// statusError maps a non-2xx response to a typed error. The body is read up
// to a small limit so that the server's explanation reaches the caller.
func statusError(resp *http.Response, op string) *ClientError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := strings.TrimSpace(string(body))
	var oe OllamaError
	if err := json.Unmarshal(body, &oe); err == nil && oe.Error != "" {
		detail = oe.Error
	}

	msg := fmt.Sprintf("%s: HTTP %d", op, resp.StatusCode)
	if detail != "" {
		msg += ": " + detail
	}

	t := ErrTypeInvalidResponse
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		t = ErrTypeUnauthorized
	case http.StatusForbidden:
		t = ErrTypeForbidden
	case http.StatusNotFound:
		t = ErrTypeModelNotFound
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		t = ErrTypeServerError
	}
	return &ClientError{Type: t, Message: msg}
}
