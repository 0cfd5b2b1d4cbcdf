// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("Hello")

	if msg.Role != "user" {
		t.Errorf("Role = %q, want 'user'", msg.Role)
	}
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want 'Hello'", msg.Content)
	}
}

func TestNewAssistantMessage(t *testing.T) {
	msg := NewAssistantMessage("Response")

	if msg.Role != "assistant" {
		t.Errorf("Role = %q, want 'assistant'", msg.Role)
	}
}

func TestNewSystemMessage(t *testing.T) {
	msg := NewSystemMessage("You are terse")

	if msg.Role != "system" {
		t.Errorf("Role = %q, want 'system'", msg.Role)
	}
}

// =============================================================================
// RESPONSE HELPER TESTS
// =============================================================================

func TestChatResponse_TokensPerSecond(t *testing.T) {
	tests := []struct {
		name     string
		count    int
		duration int64
		want     float64
	}{
		{"zero duration", 100, 0, 0},
		{"one second", 50, int64(time.Second), 50},
		{"half second", 50, int64(500 * time.Millisecond), 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &ChatResponse{EvalCount: tc.count, EvalDuration: tc.duration}
			if got := r.TokensPerSecond(); got != tc.want {
				t.Errorf("TokensPerSecond() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestGenerateResponse_TotalTime(t *testing.T) {
	r := &GenerateResponse{TotalDuration: int64(1500 * time.Millisecond)}
	if got := r.TotalTime(); got != 1500*time.Millisecond {
		t.Errorf("TotalTime() = %v", got)
	}
}

func TestModelInfo_FormatSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KB"},
		{1024 * 1024, "1.00 MB"},
		{2 * 1024 * 1024 * 1024, "2.00 GB"},
	}

	for _, tc := range tests {
		m := &ModelInfo{Size: tc.size}
		if got := m.FormatSize(); got != tc.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

// =============================================================================
// EVENT AND RESULT TESTS
// =============================================================================

func TestProgress_Percent(t *testing.T) {
	tests := []struct {
		completed, total int64
		want             float64
	}{
		{0, 0, 0},
		{50, 0, 0},
		{0, 100, 0},
		{50, 100, 50},
		{100, 100, 100},
	}

	for _, tc := range tests {
		p := Progress{Completed: tc.completed, Total: tc.total}
		if got := p.Percent(); got != tc.want {
			t.Errorf("Percent(%d/%d) = %v, want %v", tc.completed, tc.total, got, tc.want)
		}
	}
}

func TestProgress_FormattedProgress(t *testing.T) {
	tests := []struct {
		name string
		p    Progress
		want string
	}{
		{"no status", Progress{}, "preparing..."},
		{"status only", Progress{Status: "pulling manifest"}, "pulling manifest"},
		{"bytes", Progress{Status: "downloading", Completed: 512, Total: 1024}, "512 B / 1.00 KB (50.0%)"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.p.FormattedProgress(); got != tc.want {
				t.Errorf("FormattedProgress() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestProgress_StatusHelpers(t *testing.T) {
	if !(Progress{Status: "downloading sha256:abc"}).IsDownloading() {
		t.Error("downloading status should report IsDownloading")
	}
	if (Progress{Status: "verifying sha256 digest"}).IsDownloading() {
		t.Error("verifying status should not report IsDownloading")
	}
	if !(Progress{Status: "SUCCESS"}).IsSuccess() {
		t.Error("IsSuccess should ignore case")
	}
}

func TestResult_Helpers(t *testing.T) {
	r := successResult("llama3.2", 1500*time.Millisecond)
	if !r.IsSuccess() || r.IsCancelled() {
		t.Errorf("success result misreported: %+v", r)
	}
	if r.DurationMs() != 1500 {
		t.Errorf("DurationMs() = %d, want 1500", r.DurationMs())
	}

	c := cancelledResult("llama3.2", time.Second)
	if !c.IsCancelled() || !IsCancelled(c.Err) {
		t.Errorf("cancelled result misreported: %+v", c)
	}

	f := failureResult("llama3.2", 0, &ClientError{Type: ErrTypeServerReported, Message: "model not found"})
	if f.ErrorMessage != "model not found" {
		t.Errorf("ErrorMessage = %q, want server text", f.ErrorMessage)
	}
}

func TestOutcome_String(t *testing.T) {
	if OutcomeCancelled.String() != "cancelled" {
		t.Errorf("OutcomeCancelled.String() = %q", OutcomeCancelled.String())
	}
	if KindPull.String() != "pull" {
		t.Errorf("KindPull.String() = %q", KindPull.String())
	}
}
