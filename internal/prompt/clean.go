// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"encoding/json"
	"strings"
)

const fence = "```"

// Clean strips markdown code fences and any text outside the outermost JSON
// object or array. Text with no JSON delimiters is returned trimmed.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return s
	}

	if i := strings.Index(s, fence+"json"); i >= 0 {
		s = s[:i] + strings.TrimLeft(s[i+len(fence+"json"):], " \t\r\n")
	}
	if strings.HasPrefix(s, fence) {
		s = strings.TrimLeft(s[len(fence):], " \t\r\n")
	}
	if strings.HasSuffix(s, fence) {
		s = s[:strings.LastIndex(s, fence)]
	}

	start := strings.IndexAny(s, "{[")
	if start > 0 {
		s = s[start:]
	}
	end := strings.LastIndexAny(s, "}]")
	if end >= 0 && end < len(s)-1 {
		s = s[:end+1]
	}

	return strings.TrimSpace(s)
}

// IsValidJSON reports whether s parses as a JSON document.
func IsValidJSON(s string) bool {
	if strings.TrimSpace(s) == "" {
		return false
	}
	return json.Valid([]byte(s))
}

// Prettify re-indents a JSON document, returning s unchanged if it does not
// parse.
func Prettify(s string) string {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s
	}
	return string(out)
}
