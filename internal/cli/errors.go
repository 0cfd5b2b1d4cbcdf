// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types, display and exit codes for the CLI.
//
// Commands always return errors; Run decides how to display them and which
// exit code to use.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/rigrun-ollama/internal/config"
	"github.com/jeranaias/rigrun-ollama/internal/ollama"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	// ExitCancelled follows the shell convention for SIGINT.
	ExitCancelled = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError reports invalid command usage.
type UsageError struct {
	Reason  string
	Example string
}

func (e *UsageError) Error() string {
	if e.Example != "" {
		return fmt.Sprintf("%s\nExample: %s", e.Reason, e.Example)
	}
	return e.Reason
}

// ErrMissingArgument creates a UsageError for a missing argument.
func ErrMissingArgument(argName, example string) error {
	return &UsageError{Reason: "missing required argument: " + argName, Example: example}
}

// ConfigError wraps a configuration load or save failure.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// PullFailedError summarizes a multi-model pull with failures.
type PullFailedError struct {
	Failed []string
	Total  int
}

func (e *PullFailedError) Error() string {
	return fmt.Sprintf("%d of %d pulls failed: %v", len(e.Failed), e.Total, e.Failed)
}

// printedError marks an error whose JSON response the command already wrote.
type printedError struct {
	err error
}

func (e *printedError) Error() string { return e.err.Error() }
func (e *printedError) Unwrap() error { return e.err }

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	var cfgErr *ConfigError
	var validation config.ValidateErrors
	if errors.As(err, &cfgErr) || errors.As(err, &validation) {
		return ExitConfigError
	}

	var ce *ollama.ClientError
	if errors.As(err, &ce) {
		switch ce.Type {
		case ollama.ErrTypeCancelled:
			return ExitCancelled
		case ollama.ErrTypeInvalidRequest:
			return ExitUsageError
		case ollama.ErrTypeNotRunning, ollama.ErrTypeConnection:
			return ExitNetworkError
		case ollama.ErrTypeTimeout:
			return ExitTimeoutError
		case ollama.ErrTypeModelNotFound:
			return ExitNotFoundError
		case ollama.ErrTypeUnauthorized, ollama.ErrTypeForbidden:
			return ExitAuthError
		}
	}
	return ExitGeneralError
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as a JSON error response in JSON mode.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		NewJSONErrorResponse(command, err).Fprint(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// errorType names the error category in JSON error responses.
func errorType(err error) string {
	var ce *ollama.ClientError
	if errors.As(err, &ce) {
		return ce.Type.String()
	}
	var usage *UsageError
	if errors.As(err, &usage) {
		return "usage"
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return "config"
	}
	return "generic"
}

// encodeIndented writes v as indented JSON.
func encodeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
