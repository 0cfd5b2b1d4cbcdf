// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"encoding/json"
	"strings"
)

const instructions = `IMPORTANT INSTRUCTIONS:
- You MUST respond ONLY in valid JSON format
- Do NOT include any explanations, markdown code blocks (` + "```" + `), or extra text
- Output ONLY the raw JSON object that matches the required structure
- All field names must exactly match the schema

`

// readableSchema is the summary shown to the model: field types only, with
// nested objects collapsed.
type readableSchema struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
	Required   []string          `json:"required,omitempty"`
	Items      *readableItems    `json:"items,omitempty"`
}

type readableItems struct {
	Type string `json:"type"`
}

// Augment wraps prompt with instructions that demand JSON matching schema.
func Augment(prompt string, schema Schema) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("REQUIRED JSON STRUCTURE:\n")
	b.WriteString(describe(schema))
	b.WriteString("\n\nUSER TASK:\n")
	b.WriteString(prompt)
	return b.String()
}

func describe(s Schema) string {
	r := readableSchema{Type: s.Type, Required: s.Required}
	if len(s.Properties) > 0 {
		r.Properties = make(map[string]string, len(s.Properties))
		for name, p := range s.Properties {
			if p.Nested != nil {
				r.Properties[name] = "object (nested)"
				continue
			}
			r.Properties[name] = p.Type
		}
	}
	if s.Type == "array" && s.Items != nil {
		r.Items = &readableItems{Type: s.Items.Type}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return `{"type": "` + s.Type + `"}`
	}
	return string(data)
}
