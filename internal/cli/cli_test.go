// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigrun-ollama/internal/catalog"
	"github.com/jeranaias/rigrun-ollama/internal/config"
	"github.com/jeranaias/rigrun-ollama/internal/ollama"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestNewArgParser(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		boolNames []string
		wantSub   string
		validate  func(t *testing.T, p *ArgParser)
	}{
		{
			name:    "empty args",
			args:    []string{},
			wantSub: "",
		},
		{
			name:    "flag with value",
			args:    []string{"llama3", "--system", "be brief"},
			wantSub: "llama3",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("system") != "be brief" {
					t.Errorf("Flag(system) = %q, want %q", p.Flag("system"), "be brief")
				}
			},
		},
		{
			name:      "registered bool flag keeps next positional",
			args:      []string{"--insecure", "llama3", "mistral"},
			boolNames: []string{"insecure"},
			wantSub:   "llama3",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("insecure") {
					t.Error("BoolFlag(insecure) should be true")
				}
				if got := p.Positional(); len(got) != 2 {
					t.Errorf("Positional() = %v, want 2 entries", got)
				}
			},
		},
		{
			name:    "unregistered flag consumes next argument",
			args:    []string{"--insecure", "llama3"},
			wantSub: "",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("insecure") != "llama3" {
					t.Errorf("Flag(insecure) = %q, want %q", p.Flag("insecure"), "llama3")
				}
			},
		},
		{
			name:    "equals form",
			args:    []string{"gen", "--limit=2", "--raw=false"},
			wantSub: "gen",
			validate: func(t *testing.T, p *ArgParser) {
				if p.IntFlag("limit", 0) != 2 {
					t.Errorf("IntFlag(limit) = %d, want 2", p.IntFlag("limit", 0))
				}
				if p.BoolFlag("raw") {
					t.Error("BoolFlag(raw) should be false for --raw=false")
				}
			},
		},
		{
			name:    "double dash ends flags",
			args:    []string{"hello", "--", "--not-a-flag", "-x"},
			wantSub: "hello",
			validate: func(t *testing.T, p *ArgParser) {
				if got := p.Rest(0); got != "hello --not-a-flag -x" {
					t.Errorf("Rest(0) = %q", got)
				}
				if p.BoolFlag("not-a-flag") {
					t.Error("flag after -- should be positional")
				}
			},
		},
		{
			name:      "short flags",
			args:      []string{"old-model", "-y"},
			boolNames: []string{"y"},
			wantSub:   "old-model",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("yes", "y") {
					t.Error("BoolFlag(yes, y) should be true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args, tt.boolNames...)
			if parser.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", parser.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_IntFlag(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"flag present", []string{"--count", "10"}, 10},
		{"flag missing uses default", []string{}, 5},
		{"invalid int uses default", []string{"--count", "abc"}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewArgParser(tt.args).IntFlag("count", 5)
			if got != tt.want {
				t.Errorf("IntFlag(count, 5) = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestArgParser_PositionalAndRest(t *testing.T) {
	p := NewArgParser([]string{"set", "ollama.url", "http://a:1"})

	assert.Equal(t, "ollama.url", p.PositionalAt(1))
	assert.Equal(t, "", p.PositionalAt(5))
	assert.Equal(t, "", p.PositionalAt(-1))
	assert.Equal(t, "http://a:1", p.Rest(2))
	assert.Equal(t, "", p.Rest(3))
	assert.Equal(t, "fallback", p.FlagOrDefault("missing", "fallback"))
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		argv []string
		want Command
	}{
		{nil, CmdHelp},
		{[]string{"help"}, CmdHelp},
		{[]string{"--help"}, CmdHelp},
		{[]string{"--version"}, CmdVersion},
		{[]string{"pull", "llama3"}, CmdPull},
		{[]string{"gen", "hi"}, CmdGenerate},
		{[]string{"generate", "hi"}, CmdGenerate},
		{[]string{"chat"}, CmdChat},
		{[]string{"ls"}, CmdModels},
		{[]string{"list"}, CmdModels},
		{[]string{"show", "x"}, CmdShow},
		{[]string{"rm", "x"}, CmdDelete},
		{[]string{"status"}, CmdHealth},
		{[]string{"embed", "x"}, CmdEmbed},
		{[]string{"CONFIG"}, CmdConfig},
		{[]string{"frobnicate"}, CmdUnknown},
	}

	for _, tt := range tests {
		t.Run(strings.Join(tt.argv, "_"), func(t *testing.T) {
			got, _ := Parse(tt.argv)
			if got != tt.want {
				t.Errorf("Parse(%v) = %v, want %v", tt.argv, got, tt.want)
			}
		})
	}
}

func TestParse_GlobalFlagsAnywhere(t *testing.T) {
	cmd, args := Parse([]string{"--json", "generate", "why?", "-m", "qwen2.5:7b", "--url=http://h:1", "--system", "terse", "-q"})

	assert.Equal(t, CmdGenerate, cmd)
	assert.True(t, args.JSON)
	assert.True(t, args.Quiet)
	assert.Equal(t, "qwen2.5:7b", args.Model)
	assert.Equal(t, "http://h:1", args.URL)
	assert.Equal(t, "generate", args.Name)
	assert.Equal(t, []string{"why?", "--system", "terse"}, args.Raw)
}

func TestParse_DoubleDashStopsGlobalFlags(t *testing.T) {
	_, args := Parse([]string{"generate", "--", "--json"})
	assert.False(t, args.JSON)
	assert.Equal(t, []string{"--", "--json"}, args.Raw)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "pull", CmdPull.String())
	assert.Equal(t, "command(99)", Command(99).String())
}

// =============================================================================
// EXIT CODE TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Reason: "bad"}, ExitUsageError},
		{"config", &ConfigError{Err: errors.New("broken")}, ExitConfigError},
		{"validation", config.ValidateErrors{{Field: "ollama.url", Message: "empty"}}, ExitConfigError},
		{"cancelled", ollama.ErrCancelled, ExitCancelled},
		{"wrapped cancelled", fmt.Errorf("pull: %w", ollama.ErrCancelled), ExitCancelled},
		{"not running", ollama.ErrNotRunning, ExitNetworkError},
		{"timeout", ollama.ErrTimeout, ExitTimeoutError},
		{"not found", ollama.ErrModelNotFound, ExitNotFoundError},
		{"invalid request", ollama.ErrInvalidRequest, ExitUsageError},
		{"unauthorized", &ollama.ClientError{Type: ollama.ErrTypeUnauthorized}, ExitAuthError},
		{"pull failed", &PullFailedError{Failed: []string{"a"}, Total: 2}, ExitGeneralError},
		{"printed keeps cause", &printedError{err: ollama.ErrNotRunning}, ExitNetworkError},
		{"generic", errors.New("boom"), ExitGeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestDisplayError_JSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, "show", ollama.ErrModelNotFound, true)

	var resp JSONResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "model_not_found", resp.ErrorType)
	assert.Equal(t, "show", resp.Command)
}

func TestUsageErrorMessage(t *testing.T) {
	err := ErrMissingArgument("model", "rigrun-ollama pull llama3.2")
	assert.Contains(t, err.Error(), "missing required argument: model")
	assert.Contains(t, err.Error(), "Example: rigrun-ollama pull llama3.2")
}

// =============================================================================
// CONFIRMATION TESTS (confirm.go)
// =============================================================================

func TestRequireConfirmation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    ConfirmationOptions
		want    bool
		wantErr bool
	}{
		{"yes flag", "", ConfirmationOptions{ConfirmFlag: true}, true, false},
		{"json without yes", "", ConfirmationOptions{JSONMode: true, Interactive: true}, false, true},
		{"not a terminal", "y\n", ConfirmationOptions{}, false, true},
		{"answered y", "y\n", ConfirmationOptions{Interactive: true}, true, false},
		{"answered YES", "YES\n", ConfirmationOptions{Interactive: true}, true, false},
		{"answered no", "n\n", ConfirmationOptions{Interactive: true}, false, false},
		{"eof", "", ConfirmationOptions{Interactive: true}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := RequireConfirmation(strings.NewReader(tt.input), &out, "delete x", tt.opts)
			if tt.wantErr {
				var usage *UsageError
				assert.ErrorAs(t, err, &usage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.opts.Interactive && !tt.opts.ConfirmFlag {
				assert.Contains(t, out.String(), "delete x")
			}
		})
	}
}

// =============================================================================
// PULL OUTPUT TESTS (pull_cmd.go, pull_view.go)
// =============================================================================

func TestPullOutcome(t *testing.T) {
	ok := ollama.Result{Operation: "a", Outcome: ollama.OutcomeSuccess}
	failed := ollama.Result{Operation: "b", Outcome: ollama.OutcomeFailure}
	cancelled := ollama.Result{Operation: "c", Outcome: ollama.OutcomeCancelled}

	assert.NoError(t, pullOutcome([]ollama.Result{ok, ok}))
	assert.True(t, ollama.IsCancelled(pullOutcome([]ollama.Result{ok, cancelled})))

	err := pullOutcome([]ollama.Result{ok, failed, cancelled})
	var pf *PullFailedError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, []string{"b"}, pf.Failed)
	assert.Equal(t, 3, pf.Total)
}

func TestPlainPullPrinter(t *testing.T) {
	pp := newPlainPullPrinter()
	progress := func(status string, completed, total int64) ollama.Progress {
		return ollama.Progress{Operation: "llama3", Status: status, Completed: completed, Total: total}
	}

	assert.Equal(t, "llama3: pulling manifest", pp.line(progress("pulling manifest", 0, 0)))
	assert.Empty(t, pp.line(progress("pulling manifest", 0, 0)))

	first := pp.line(progress("downloading", 5, 100))
	assert.True(t, strings.HasPrefix(first, "llama3: downloading"), first)

	// Same decile: nothing new to say.
	assert.Empty(t, pp.line(progress("downloading", 8, 100)))
	assert.NotEmpty(t, pp.line(progress("downloading", 12, 100)))
	assert.Empty(t, pp.line(progress("downloading", 15, 100)))
	assert.NotEmpty(t, pp.line(progress("downloading", 100, 100)))

	// Another model keeps its own state.
	other := ollama.Progress{Operation: "mistral", Status: "downloading", Completed: 50, Total: 100}
	assert.NotEmpty(t, pp.line(other))
}

func TestPullView_QuitsWhenAllDone(t *testing.T) {
	v := newPullView([]string{"a", "b"}, func() {})

	_, cmd := v.Update(pullProgressMsg{progress: ollama.Progress{Operation: "a", Status: "downloading", Completed: 1, Total: 4}})
	assert.Nil(t, cmd)
	assert.Equal(t, "downloading", v.rows[0].status)

	_, cmd = v.Update(pullDoneMsg{name: "a", result: ollama.Result{Operation: "a", Outcome: ollama.OutcomeSuccess}})
	assert.Nil(t, cmd)

	// A repeated done message for the same row does not count twice.
	_, cmd = v.Update(pullDoneMsg{name: "a", result: ollama.Result{Operation: "a", Outcome: ollama.OutcomeSuccess}})
	assert.Nil(t, cmd)
	assert.Equal(t, 1, v.remaining)

	_, cmd = v.Update(pullDoneMsg{name: "b", result: ollama.Result{Operation: "b", Outcome: ollama.OutcomeFailure, ErrorMessage: "manifest unknown"}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	view := v.View()
	assert.Contains(t, view, "[OK]")
	assert.Contains(t, view, "manifest unknown")
}

func TestPullView_CtrlCCancelsOnce(t *testing.T) {
	var calls int
	v := newPullView([]string{"a"}, func() { calls++ })

	v.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	v.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	assert.Equal(t, 1, calls)
	assert.True(t, v.cancelling)
	assert.Contains(t, v.View(), "Cancelling...")
}

func TestPullView_ProgressForUnknownRowIgnored(t *testing.T) {
	v := newPullView([]string{"a"}, func() {})
	v.Update(pullProgressMsg{progress: ollama.Progress{Operation: "zzz", Status: "downloading"}})
	assert.Equal(t, "waiting", v.rows[0].status)
}

func TestOutcomeLine(t *testing.T) {
	assert.Contains(t, outcomeLine(ollama.Result{Outcome: ollama.OutcomeSuccess, Duration: time.Second}, nil), "[OK]")
	assert.Contains(t, outcomeLine(ollama.Result{Outcome: ollama.OutcomeCancelled}, ollama.ErrCancelled), "CANCELLED")
	assert.Contains(t, outcomeLine(ollama.Result{Outcome: ollama.OutcomeFailure}, errors.New("disk full")), "disk full")
}

// =============================================================================
// DISPLAY HELPERS
// =============================================================================

func TestDisplayValue(t *testing.T) {
	assert.Equal(t, "(not set)", displayValue("security.api_key", ""))
	assert.Equal(t, "[REDACTED]", displayValue("security.api_key", "sk-123"))
	assert.Equal(t, "http://localhost:11434", displayValue("ollama.url", "http://localhost:11434"))
	assert.Equal(t, "4", displayValue("pull.max_concurrent", 4))
}

func TestPrintModelTable(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	printModelTable(&buf, []catalog.Model{
		{Name: "llama3.2:latest", Size: 2 << 30, ParameterSize: "3.2B", ModifiedAt: now.Add(-2 * time.Hour)},
		{Name: "nomic-embed-text:latest", Size: 274 << 20},
	}, now)

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "llama3.2:latest")
	assert.Contains(t, out, "2.00 GB")
	assert.Contains(t, out, "ago")
	assert.Contains(t, out, "274.00 MB")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

// =============================================================================
// END-TO-END TESTS
// =============================================================================

// fakeOllama serves just enough of the Ollama API for the commands.
type fakeOllama struct {
	deleted atomic.Value
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		fmt.Fprint(w, "Ollama is running")

	case "/api/tags":
		fmt.Fprint(w, `{"models":[{"name":"llama3.2:latest","size":2147483648,"digest":"abc123",`+
			`"modified_at":"2025-01-01T00:00:00Z","details":{"family":"llama","parameter_size":"3.2B","quantization_level":"Q4_K_M"}}]}`)

	case "/api/pull":
		var req ollama.PullRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/x-ndjson")
		if req.Name == "missing" {
			fmt.Fprintln(w, `{"error":"pull model manifest: file does not exist"}`)
			return
		}
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading","digest":"sha256:aa","total":100,"completed":50}`)
		fmt.Fprintln(w, `{"status":"downloading","digest":"sha256:aa","total":100,"completed":100}`)
		fmt.Fprintln(w, `{"status":"success"}`)

	case "/api/generate":
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"llama3.2","response":"The sky ","done":false}`)
		fmt.Fprintln(w, `{"model":"llama3.2","response":"is blue.","done":false}`)
		fmt.Fprintln(w, `{"model":"llama3.2","response":"","done":true,"done_reason":"stop"}`)

	case "/api/embed":
		var req ollama.EmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		vectors := make([][]float64, len(req.Input))
		for i := range vectors {
			vectors[i] = []float64{0.1, 0.2, 0.3}
		}
		json.NewEncoder(w).Encode(ollama.EmbedResponse{Model: req.Model, Embeddings: vectors})

	case "/api/delete":
		var req ollama.DeleteRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.deleted.Store(req.Name)
		w.WriteHeader(http.StatusOK)

	default:
		http.NotFound(w, r)
	}
}

// testEnv isolates the environment and writes a config file pointing at url.
func testEnv(t *testing.T, url string) string {
	t.Helper()
	for _, key := range []string{"OLLAMA_HOST", "RIGRUN_OLLAMA_URL", "RIGRUN_OLLAMA_MODEL", "RIGRUN_OLLAMA_API_KEY", "RIGRUN_OLLAMA_LOG_LEVEL"} {
		t.Setenv(key, "")
	}
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	return writeTestConfig(t, url, "")
}

// writeTestConfig writes a config file for url. A non-empty snapshotPath
// turns the catalogue snapshot on.
func writeTestConfig(t *testing.T, url, snapshotPath string) string {
	t.Helper()
	snapshot := "snapshot_enabled = false"
	if snapshotPath != "" {
		snapshot = fmt.Sprintf("snapshot_enabled = true\nsnapshot_path = %q", snapshotPath)
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	content := fmt.Sprintf(`[ollama]
url = %q
default_model = "llama3.2"

[models]
load_on_startup = false
%s

[log]
level = "error"
`, url, snapshot)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

// run parses argv with the test config and returns the exit code and output.
func run(t *testing.T, cfgPath string, argv ...string) (int, string, string) {
	t.Helper()
	cmd, args := Parse(append([]string{"--config", cfgPath}, argv...))
	var stdout, stderr bytes.Buffer
	code := runWith(cmd, args, Streams{Stdin: strings.NewReader(""), Stdout: &stdout, Stderr: &stderr})
	return code, stdout.String(), stderr.String()
}

func decodeResponse(t *testing.T, out string) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func TestRun_Version(t *testing.T) {
	cfg := testEnv(t, "http://127.0.0.1:1")
	code, out, _ := run(t, cfg, "version", "--json")

	require.Equal(t, ExitSuccess, code)
	resp := decodeResponse(t, out)
	assert.True(t, resp.Success)
	assert.Equal(t, Version, resp.Data.(map[string]any)["version"])
}

func TestRun_UnknownCommand(t *testing.T) {
	cfg := testEnv(t, "http://127.0.0.1:1")
	code, _, stderr := run(t, cfg, "frobnicate")

	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)
}

func TestRun_ConfigSetGet(t *testing.T) {
	cfg := testEnv(t, "http://127.0.0.1:1")

	code, _, stderr := run(t, cfg, "config", "set", "pull.max_concurrent", "3")
	require.Equal(t, ExitSuccess, code, stderr)

	code, out, _ := run(t, cfg, "config", "get", "pull.max_concurrent")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "3\n", out)

	// The earlier values survive the rewrite.
	code, out, _ = run(t, cfg, "config", "get", "ollama.default_model")
	require.Equal(t, ExitSuccess, code)
	assert.Equal(t, "llama3.2\n", out)

	code, _, _ = run(t, cfg, "config", "get", "no.such.key")
	assert.Equal(t, ExitUsageError, code)
}

func TestRun_PullPlain(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	code, out, stderr := run(t, cfg, "pull", "llama3.2", "qwen2.5:7b")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, out, "llama3.2: pulling manifest")
	assert.Contains(t, out, "qwen2.5:7b: downloading")
	assert.Equal(t, 2, strings.Count(out, "[OK]"))
}

func TestRun_PullJSONPartialFailure(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	code, out, _ := run(t, cfg, "--json", "pull", "llama3.2", "missing")
	assert.Equal(t, ExitGeneralError, code)

	resp := decodeResponse(t, out)
	assert.False(t, resp.Success)
	rows, ok := resp.Data.([]any)
	require.True(t, ok, "data should list every pull")
	require.Len(t, rows, 2)

	outcomes := map[string]string{}
	for _, row := range rows {
		m := row.(map[string]any)
		outcomes[m["operation"].(string)] = m["outcome"].(string)
	}
	assert.Equal(t, "success", outcomes["llama3.2"])
	assert.Equal(t, "failure", outcomes["missing"])
}

func TestRun_PullMissingModel(t *testing.T) {
	cfg := testEnv(t, "http://127.0.0.1:1")
	code, _, stderr := run(t, cfg, "pull")
	assert.Equal(t, ExitUsageError, code)
	assert.Contains(t, stderr, "missing required argument")
}

func TestRun_GenerateStreamed(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	code, out, stderr := run(t, cfg, "generate", "why", "is", "the", "sky", "blue?")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Equal(t, "The sky is blue.\n", out)
}

func TestRun_GenerateJSON(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	code, out, _ := run(t, cfg, "gen", "why?", "--json")
	require.Equal(t, ExitSuccess, code)

	resp := decodeResponse(t, out)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "The sky is blue.", data["response"])
	assert.Equal(t, "success", data["outcome"])
	assert.Equal(t, "llama3.2", data["model"])
}

func TestRun_Models(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	code, out, _ := run(t, cfg, "models", "--json")
	require.Equal(t, ExitSuccess, code)

	resp := decodeResponse(t, out)
	rows := resp.Data.([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "llama3.2:latest", row["name"])
	assert.Equal(t, "Q4_K_M", row["quantization"])
}

func TestRun_Delete(t *testing.T) {
	fake := &fakeOllama{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	// Piped stdin cannot confirm.
	code, _, _ := run(t, cfg, "delete", "old-model")
	assert.Equal(t, ExitUsageError, code)
	assert.Nil(t, fake.deleted.Load())

	code, out, stderr := run(t, cfg, "rm", "old-model", "--yes")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, out, "deleted old-model")
	assert.Equal(t, "old-model", fake.deleted.Load())
}

func TestRun_HealthDown(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	url := srv.URL
	srv.Close()
	cfg := testEnv(t, url)

	code, out, _ := run(t, cfg, "health", "--json")
	assert.Equal(t, ExitNetworkError, code)

	resp := decodeResponse(t, out)
	assert.False(t, resp.Success)
	assert.Equal(t, false, resp.Data.(map[string]any)["running"])
}

func TestRun_HealthUp(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	code, out, _ := run(t, cfg, "health")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "[OK]")
	assert.Contains(t, out, srv.URL)
}

func TestRun_ShowOfflineFromSnapshot(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	testEnv(t, srv.URL)
	snapPath := filepath.Join(t.TempDir(), "models.db")

	code, _, stderr := run(t, writeTestConfig(t, srv.URL, snapPath), "models")
	require.Equal(t, ExitSuccess, code, stderr)

	url := srv.URL
	srv.Close()
	offline := writeTestConfig(t, url, snapPath)

	code, out, stderr := run(t, offline, "show", "llama3.2:latest")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, out, "llama")
	assert.Contains(t, out, "3.2B")
	assert.Contains(t, out, "Q4_K_M")
	assert.Contains(t, stderr, "saved catalogue")

	code, _, _ = run(t, offline, "show", "mistral")
	assert.Equal(t, ExitNetworkError, code)

	code, _, _ = run(t, writeTestConfig(t, url, ""), "show", "llama3.2:latest")
	assert.Equal(t, ExitNetworkError, code)
}

func TestRun_EmbedChunked(t *testing.T) {
	srv := httptest.NewServer(&fakeOllama{})
	defer srv.Close()
	cfg := testEnv(t, srv.URL)

	code, out, stderr := run(t, cfg, "--json", "embed", "One. Two! Three?", "--chunk", "sentence", "--size", "10")
	require.Equal(t, ExitSuccess, code, stderr)

	resp := decodeResponse(t, out)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "nomic-embed-text", data["model"])
	chunks := data["chunks"].([]any)
	require.Len(t, chunks, 2)
	assert.Equal(t, "One. Two!", chunks[0].(map[string]any)["text"])
	assert.Len(t, chunks[1].(map[string]any)["embedding"], 3)

	// Chunking is off by default, so the text goes out whole.
	code, out, _ = run(t, cfg, "embed", "One. Two! Three?")
	require.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "1 chunk(s), 3 dimensions")

	code, _, _ = run(t, cfg, "embed", "text", "--chunk", "words")
	assert.Equal(t, ExitUsageError, code)
}
