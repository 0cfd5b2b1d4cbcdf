// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// FUNCTION CALLING
// =============================================================================

// FunctionRequest asks a tool-capable model to pick one of Tools for
// UserText, following the routing rules in SystemPrompt.
type FunctionRequest struct {
	Model        string
	UserText     string
	SystemPrompt string
	Tools        []FunctionTool
	Options      *Options
	KeepAlive    string
}

// FunctionTool is a tool the model may choose.
type FunctionTool struct {
	Name        string
	Description string
	Parameters  []FunctionParameter
}

// FunctionParameter is one argument of a FunctionTool. An empty Type means
// "string".
type FunctionParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// RequiredParam returns a required parameter.
func RequiredParam(name, typ, description string) FunctionParameter {
	return FunctionParameter{Name: name, Type: typ, Description: description, Required: true}
}

// OptionalParam returns an optional parameter.
func OptionalParam(name, typ, description string) FunctionParameter {
	return FunctionParameter{Name: name, Type: typ, Description: description}
}

// EnumParam returns a required string parameter limited to values.
func EnumParam(name, description string, values ...string) FunctionParameter {
	return FunctionParameter{Name: name, Type: "string", Description: description, Required: true, Enum: values}
}

// FunctionResponse is the tool the model chose. HasToolCall is false when
// the model answered in prose instead; Raw then holds that answer.
type FunctionResponse struct {
	ToolName    string
	Arguments   ToolArguments
	HasToolCall bool
	Raw         *ChatResponse
}

// FunctionCall sends req as a non-streaming chat with tools and returns the
// first tool call of the reply. Missing fields fail with InvalidRequest
// before any network call.
func (c *Client) FunctionCall(ctx context.Context, req FunctionRequest) (*FunctionResponse, error) {
	if err := validateFunction(req); err != nil {
		return nil, err
	}
	c.logger.Debug("function call", "model", req.Model, "tools", len(req.Tools))

	resp, err := c.Chat(ctx, req.chatRequest())
	if err != nil {
		return nil, err
	}

	out := functionResponse(resp)
	c.logger.Debug("function call complete",
		"model", req.Model,
		"tool", out.ToolName,
		"has_tool_call", out.HasToolCall)
	return out, nil
}

func (r FunctionRequest) chatRequest() ChatRequest {
	tools := make([]Tool, len(r.Tools))
	for i, t := range r.Tools {
		tools[i] = t.tool()
	}
	return ChatRequest{
		Model: r.Model,
		Messages: []Message{
			NewSystemMessage(r.SystemPrompt),
			NewUserMessage(r.UserText),
		},
		Tools:     tools,
		Options:   r.Options,
		KeepAlive: r.KeepAlive,
	}
}

func (t FunctionTool) tool() Tool {
	params := ToolParameters{
		Type:       "object",
		Properties: make(map[string]ToolProperty, len(t.Parameters)),
		Required:   []string{},
	}
	for _, p := range t.Parameters {
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		params.Properties[p.Name] = ToolProperty{Type: typ, Description: p.Description, Enum: p.Enum}
		if p.Required {
			params.Required = append(params.Required, p.Name)
		}
	}
	return Tool{
		Type:     "function",
		Function: ToolSchema{Name: t.Name, Description: t.Description, Parameters: params},
	}
}

func functionResponse(resp *ChatResponse) *FunctionResponse {
	if !resp.Message.HasToolCalls() {
		return &FunctionResponse{Raw: resp}
	}
	call := resp.Message.ToolCalls[0].Function
	args := call.Arguments
	if args == nil {
		args = ToolArguments{}
	}
	return &FunctionResponse{
		ToolName:    call.Name,
		Arguments:   args,
		HasToolCall: true,
		Raw:         resp,
	}
}

func validateFunction(req FunctionRequest) error {
	if strings.TrimSpace(req.Model) == "" {
		return invalidRequest("model name is required")
	}
	if strings.TrimSpace(req.UserText) == "" {
		return invalidRequest("user text is required")
	}
	if strings.TrimSpace(req.SystemPrompt) == "" {
		return invalidRequest("system prompt is required")
	}
	if len(req.Tools) == 0 {
		return invalidRequest("at least one tool is required")
	}
	for i, t := range req.Tools {
		if strings.TrimSpace(t.Name) == "" {
			return invalidRequest("tool %d has no name", i)
		}
	}
	return nil
}

// =============================================================================
// ARGUMENT ACCESSORS
// =============================================================================

// String returns argument key formatted as a string.
func (a ToolArguments) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Int returns argument key as an int. Numeric strings are accepted.
func (a ToolArguments) Int(key string) (int, bool) {
	switch v := a[key].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

// Bool returns argument key as a bool. "true" and "false" strings are
// accepted.
func (a ToolArguments) Bool(key string) (bool, bool) {
	switch v := a[key].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}
