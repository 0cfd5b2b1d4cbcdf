// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"net/http"
	"strings"
)

// SecurityConfig describes the optional authentication header sent with
// every request, for servers sitting behind an API gateway.
type SecurityConfig struct {
	// HeaderName is the header to set (default: X-API-Key).
	HeaderName string

	// HeaderValueFormat is the header value template; "{value}" is replaced
	// with APIKey. Use "Bearer {value}" for bearer tokens.
	HeaderValueFormat string

	// APIKey enables the header when non-empty.
	APIKey string
}

// Enabled reports whether a header will be sent.
func (s SecurityConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && s.HeaderName != ""
}

// HeaderValue renders the header value for the configured key.
func (s SecurityConfig) HeaderValue() string {
	format := s.HeaderValueFormat
	if format == "" {
		format = "{value}"
	}
	return strings.ReplaceAll(format, "{value}", s.APIKey)
}

func (c *Client) authorize(req *http.Request) {
	if !c.config.Security.Enabled() {
		return
	}
	req.Header.Set(c.config.Security.HeaderName, c.config.Security.HeaderValue())
}

// maskSecret keeps the first four characters of a secret for log lines.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}
