// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"encoding/json"
	"fmt"
	"os"
)

// Schema is the subset of JSON Schema used to describe an expected reply.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
	Items      *Schema             `json:"items,omitempty"`
}

// Property is one field of an object schema. Nested is set for object-typed
// fields that have their own structure.
type Property struct {
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	Nested      *Schema `json:"-"`
}

// MarshalJSON flattens a nested schema into the property itself, as JSON
// Schema expects.
func (p Property) MarshalJSON() ([]byte, error) {
	if p.Nested != nil {
		n := *p.Nested
		return json.Marshal(n)
	}
	type plain Property
	return json.Marshal(plain(p))
}

// Object builds an object schema from field name to type.
func Object(fields map[string]string) Schema {
	s := Schema{Type: "object", Properties: make(map[string]Property, len(fields))}
	for name, typ := range fields {
		s.Properties[name] = Property{Type: typ}
	}
	return s
}

// ArrayOf builds an array schema whose items follow item.
func ArrayOf(item Schema) Schema {
	return Schema{Type: "array", Items: &item}
}

// Require returns a copy of s with the given fields marked required.
func (s Schema) Require(fields ...string) Schema {
	s.Required = append(append([]string(nil), s.Required...), fields...)
	return s
}

// With returns a copy of s with a nested object property added.
func (s Schema) With(name string, nested Schema) Schema {
	props := make(map[string]Property, len(s.Properties)+1)
	for k, v := range s.Properties {
		props[k] = v
	}
	props[name] = Property{Type: "object", Nested: &nested}
	s.Properties = props
	return s
}

// Format returns the schema encoded for a request's "format" field.
func (s Schema) Format() (json.RawMessage, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	return data, nil
}

// LoadSchema reads a schema from a JSON file.
func LoadSchema(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("failed to read schema: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema decodes a JSON schema document. Object-typed properties with
// their own "properties" become nested schemas.
func ParseSchema(data []byte) (Schema, error) {
	var raw struct {
		Type       string                     `json:"type"`
		Properties map[string]json.RawMessage `json:"properties"`
		Required   []string                   `json:"required"`
		Items      json.RawMessage            `json:"items"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Schema{}, fmt.Errorf("invalid schema: %w", err)
	}

	s := Schema{Type: raw.Type, Required: raw.Required}
	if s.Type == "" {
		s.Type = "object"
	}

	if len(raw.Properties) > 0 {
		s.Properties = make(map[string]Property, len(raw.Properties))
		for name, body := range raw.Properties {
			var p struct {
				Type        string          `json:"type"`
				Description string          `json:"description"`
				Properties  json.RawMessage `json:"properties"`
			}
			if err := json.Unmarshal(body, &p); err != nil {
				return Schema{}, fmt.Errorf("invalid property %q: %w", name, err)
			}
			prop := Property{Type: p.Type, Description: p.Description}
			if p.Type == "object" && len(p.Properties) > 0 {
				nested, err := ParseSchema(body)
				if err != nil {
					return Schema{}, fmt.Errorf("invalid property %q: %w", name, err)
				}
				prop.Nested = &nested
			}
			s.Properties[name] = prop
		}
	}

	if len(raw.Items) > 0 {
		items, err := ParseSchema(raw.Items)
		if err != nil {
			return Schema{}, fmt.Errorf("invalid items: %w", err)
		}
		s.Items = &items
	}

	return s, nil
}
