// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAugment(t *testing.T) {
	schema := Object(map[string]string{"title": "string", "score": "integer"}).
		Require("title").
		With("author", Object(map[string]string{"name": "string"}))

	out := Augment("Summarise the ticket", schema)

	assert.True(t, strings.HasPrefix(out, "IMPORTANT INSTRUCTIONS:\n"))
	assert.Contains(t, out, "REQUIRED JSON STRUCTURE:\n")
	assert.True(t, strings.HasSuffix(out, "USER TASK:\nSummarise the ticket"))
	assert.Contains(t, out, `"title": "string"`)
	assert.Contains(t, out, `"author": "object (nested)"`)
	assert.Contains(t, out, `"required": [`)
}

func TestAugment_Array(t *testing.T) {
	out := Augment("List colours", ArrayOf(Schema{Type: "string"}))
	assert.Contains(t, out, `"type": "array"`)
	assert.Contains(t, out, `"items": {`)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"preamble", "Here you go:\n{\"a\":1}\nHope that helps!", `{"a":1}`},
		{"array first", `ok [ {"a":1} ] done`, `[ {"a":1} ]`},
		{"no json", "  nothing here  ", "nothing here"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestIsValidJSON(t *testing.T) {
	assert.True(t, IsValidJSON(`{"a":[1,2]}`))
	assert.True(t, IsValidJSON(`[]`))
	assert.False(t, IsValidJSON(`{"a":`))
	assert.False(t, IsValidJSON(""))
}

func TestPrettify(t *testing.T) {
	assert.Equal(t, "{\n  \"a\": 1\n}", Prettify(`{"a":1}`))
	assert.Equal(t, "not json", Prettify("not json"))
}

func TestSchemaFormat_NestedInline(t *testing.T) {
	schema := Object(map[string]string{"id": "integer"}).
		With("meta", Object(map[string]string{"tag": "string"}))

	raw, err := schema.Format()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	props := decoded["properties"].(map[string]any)
	meta := props["meta"].(map[string]any)
	assert.Equal(t, "object", meta["type"])
	assert.Contains(t, meta, "properties")
}

func TestLoadSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	doc := `{
		"type": "object",
		"properties": {
			"name": {"type": "string", "description": "full name"},
			"address": {"type": "object", "properties": {"city": {"type": "string"}}},
			"tags": {"type": "array"}
		},
		"required": ["name"]
	}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	s, err := LoadSchema(path)
	require.NoError(t, err)
	assert.Equal(t, "object", s.Type)
	assert.Equal(t, []string{"name"}, s.Required)
	assert.Equal(t, "full name", s.Properties["name"].Description)
	require.NotNil(t, s.Properties["address"].Nested)
	assert.Equal(t, "string", s.Properties["address"].Nested.Properties["city"].Type)
	assert.Nil(t, s.Properties["tags"].Nested)

	_, err = ParseSchema([]byte("{"))
	assert.Error(t, err)
}
