// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - Machine-readable output for --json.
//
// Every command prints exactly one JSONResponse to stdout in JSON mode;
// human-readable messages and logs go to stderr.

package cli

import (
	"io"
	"time"
)

// JSONResponse is the envelope every command prints in JSON mode.
type JSONResponse struct {
	Success bool `json:"success"`

	// Data is the command-specific payload.
	Data any `json:"data"`

	// Error is the error message when Success is false, null otherwise.
	Error *string `json:"error"`

	// ErrorType categorizes Error (for example "model_not_found").
	ErrorType string `json:"error_type,omitempty"`

	// Timestamp is RFC 3339 UTC.
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a failed response from err.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		ErrorType: errorType(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// WithData attaches a payload to an error response, such as the per-model
// results of a partly failed pull.
func (r *JSONResponse) WithData(data any) *JSONResponse {
	r.Data = data
	return r
}

// Fprint writes the response as indented JSON.
func (r *JSONResponse) Fprint(w io.Writer) error {
	return encodeIndented(w, r)
}

// =============================================================================
// PAYLOADS
// =============================================================================

// VersionData is the payload of "version --json".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
}

// TransferData reports one transfer's outcome.
type TransferData struct {
	Operation  string `json:"operation"`
	Outcome    string `json:"outcome"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ModelData is one row of "models --json".
type ModelData struct {
	Name          string    `json:"name"`
	Size          int64     `json:"size"`
	Digest        string    `json:"digest,omitempty"`
	ModifiedAt    time.Time `json:"modified_at,omitempty"`
	Family        string    `json:"family,omitempty"`
	ParameterSize string    `json:"parameter_size,omitempty"`
	Quantization  string    `json:"quantization,omitempty"`
}

// GenerateData is the payload of "generate --json" and one-shot "chat --json".
type GenerateData struct {
	Model      string `json:"model"`
	Response   string `json:"response"`
	Operation  string `json:"operation"`
	Outcome    string `json:"outcome"`
	DurationMs int64  `json:"duration_ms"`
}

// EmbedData is the payload of "embed --json".
type EmbedData struct {
	Model  string           `json:"model"`
	Chunks []EmbedChunkData `json:"chunks"`
}

// EmbedChunkData is one embedded chunk.
type EmbedChunkData struct {
	Index     int       `json:"index"`
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding"`
}

// HealthData is the payload of "health --json".
type HealthData struct {
	URL       string `json:"url"`
	Running   bool   `json:"running"`
	Models    int    `json:"models"`
	LatencyMs int64  `json:"latency_ms"`
}
