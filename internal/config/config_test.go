// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/rigrun-ollama/internal/chunk"
)

// clearEnv unsets every variable ApplyEnvOverrides reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OLLAMA_HOST",
		"RIGRUN_OLLAMA_URL",
		"RIGRUN_OLLAMA_MODEL",
		"RIGRUN_OLLAMA_API_KEY",
		"RIGRUN_OLLAMA_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// =============================================================================
// DEFAULTS AND LOADING
// =============================================================================

func TestConfig_Default(t *testing.T) {
	cfg := Default()

	if cfg.Ollama.URL != "http://127.0.0.1:11434" {
		t.Errorf("Ollama.URL = %q", cfg.Ollama.URL)
	}
	if cfg.Ollama.ConnectTimeoutSecs != 30 {
		t.Errorf("ConnectTimeoutSecs = %d, want 30", cfg.Ollama.ConnectTimeoutSecs)
	}
	if cfg.Ollama.ReadTimeoutSecs != 120 {
		t.Errorf("ReadTimeoutSecs = %d, want 120", cfg.Ollama.ReadTimeoutSecs)
	}
	if cfg.Security.HeaderName != "X-API-Key" || cfg.Security.HeaderValueFormat != "{value}" {
		t.Errorf("Security defaults = %+v", cfg.Security)
	}
	if !cfg.Embedding.Truncate || cfg.Embedding.KeepAlive != "5m" {
		t.Errorf("Embedding defaults = %+v", cfg.Embedding)
	}
	if cfg.Pull.MaxConcurrent != 0 {
		t.Errorf("Pull.MaxConcurrent = %d, want unlimited", cfg.Pull.MaxConcurrent)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ollama.URL != Default().Ollama.URL {
		t.Errorf("Ollama.URL = %q", cfg.Ollama.URL)
	}
}

func TestLoad_TOMLKeepsUnsetDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[ollama]
url = "http://gpu-box:11434/"
default_model = "qwen2.5:7b"

[pull]
max_concurrent = 3

[models]
load_on_startup = false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ollama.URL != "http://gpu-box:11434" {
		t.Errorf("trailing slash should be trimmed, got %q", cfg.Ollama.URL)
	}
	if cfg.Ollama.DefaultModel != "qwen2.5:7b" {
		t.Errorf("DefaultModel = %q", cfg.Ollama.DefaultModel)
	}
	if cfg.Ollama.ReadTimeoutSecs != 120 {
		t.Errorf("unset ReadTimeoutSecs should keep default, got %d", cfg.Ollama.ReadTimeoutSecs)
	}
	if cfg.Pull.MaxConcurrent != 3 {
		t.Errorf("Pull.MaxConcurrent = %d", cfg.Pull.MaxConcurrent)
	}
	if cfg.Models.LoadOnStartup {
		t.Error("explicit false should override a true default")
	}
	if !cfg.Models.SnapshotEnabled {
		t.Error("unset SnapshotEnabled should keep default")
	}
}

func TestLoad_JSON(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.json")
	writeFile(t, path, `{"ollama":{"default_model":"mistral"},"log":{"level":"DEBUG","format":"json"}}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Ollama.DefaultModel != "mistral" {
		t.Errorf("DefaultModel = %q", cfg.Ollama.DefaultModel)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	writeFile(t, bad, "[ollama\nurl = ")
	if _, err := Load(bad); err == nil {
		t.Error("expected decode error")
	}

	invalid := filepath.Join(dir, "invalid.toml")
	writeFile(t, invalid, "[pull]\nmax_concurrent = -1\n")
	_, err := Load(invalid)
	var verrs ValidateErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidateErrors, got %v", err)
	}
	if verrs[0].Field != "pull.max_concurrent" {
		t.Errorf("Field = %q", verrs[0].Field)
	}
}

func TestLoad_TightensPermissions(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[ollama]\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if runtimeSupportsChmod() && info.Mode().Perm() != 0600 {
		t.Errorf("mode = %o, want 600", info.Mode().Perm())
	}
}

func runtimeSupportsChmod() bool {
	return filepath.Separator == '/'
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RIGRUN_OLLAMA_MODEL", "phi3")
	t.Setenv("RIGRUN_OLLAMA_API_KEY", "sk-env")
	t.Setenv("RIGRUN_OLLAMA_LOG_LEVEL", "info")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Ollama.DefaultModel != "phi3" {
		t.Errorf("DefaultModel = %q", cfg.Ollama.DefaultModel)
	}
	if cfg.Security.APIKey != "sk-env" {
		t.Errorf("APIKey = %q", cfg.Security.APIKey)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestApplyEnvOverrides_Host(t *testing.T) {
	tests := []struct {
		host string
		url  string
		want string
	}{
		{"gpu-box", "", "http://gpu-box:11434"},
		{"0.0.0.0:8080", "", "http://0.0.0.0:8080"},
		{":9000", "", "http://127.0.0.1:9000"},
		{"https://ollama.example.com", "", "https://ollama.example.com"},
		{"gpu-box", "http://override:1234", "http://override:1234"},
	}

	for _, tc := range tests {
		t.Run(tc.host+"|"+tc.url, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("OLLAMA_HOST", tc.host)
			t.Setenv("RIGRUN_OLLAMA_URL", tc.url)

			cfg := Default()
			cfg.ApplyEnvOverrides()
			if cfg.Ollama.URL != tc.want {
				t.Errorf("URL = %q, want %q", cfg.Ollama.URL, tc.want)
			}
		})
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"no scheme", func(c *Config) { c.Ollama.URL = "localhost:11434" }, "ollama.url"},
		{"ftp scheme", func(c *Config) { c.Ollama.URL = "ftp://host" }, "ollama.url"},
		{"zero connect timeout", func(c *Config) { c.Ollama.ConnectTimeoutSecs = 0 }, "ollama.connect_timeout_secs"},
		{"huge read timeout", func(c *Config) { c.Ollama.ReadTimeoutSecs = 7200 }, "ollama.read_timeout_secs"},
		{"format without placeholder", func(c *Config) {
			c.Security.APIKey = "k"
			c.Security.HeaderValueFormat = "Bearer"
		}, "security.header_value_format"},
		{"format without key is fine", func(c *Config) { c.Security.HeaderValueFormat = "Bearer" }, ""},
		{"bad header name", func(c *Config) { c.Security.HeaderName = "X Key" }, "security.header_name"},
		{"negative refresh", func(c *Config) { c.Models.RefreshIntervalMins = -5 }, "models.refresh_interval_mins"},
		{"negative dimensions", func(c *Config) { c.Embedding.Dimensions = -1 }, "embedding.dimensions"},
		{"unknown chunking strategy", func(c *Config) { c.Embedding.Chunking.Strategy = "words" }, "embedding.chunking"},
		{"overlap not below chunk size", func(c *Config) { c.Embedding.Chunking.OverlapSize = 500 }, "embedding.chunking"},
		{"sentence strategy", func(c *Config) {
			c.Embedding.Chunking.Enabled = true
			c.Embedding.Chunking.Strategy = "SENTENCE"
		}, ""},
		{"too many pulls", func(c *Config) { c.Pull.MaxConcurrent = 100 }, "pull.max_concurrent"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()

			if tc.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tc.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Ollama.URL = "nope"
	cfg.Log.Level = "loud"

	var verrs ValidateErrors
	if !errors.As(cfg.Validate(), &verrs) {
		t.Fatal("expected ValidateErrors")
	}
	if len(verrs) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(verrs), verrs)
	}
}

// =============================================================================
// SAVE
// =============================================================================

func TestSave_RoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Ollama.DefaultModel = "gemma2"
	cfg.Pull.MaxConcurrent = 2
	cfg.Security.APIKey = "sk-saved"
	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# rigrun-ollama configuration file") {
		t.Error("missing header comment")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Ollama.DefaultModel != "gemma2" || loaded.Pull.MaxConcurrent != 2 || loaded.Security.APIKey != "sk-saved" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

// =============================================================================
// GET/SET AND STRING
// =============================================================================

func TestLoad_ChunkingSection(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, `
[embedding.chunking]
enabled = true
strategy = "paragraph"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	ch := cfg.Embedding.Chunking
	if !ch.Enabled || ch.Strategy != "paragraph" {
		t.Errorf("Chunking = %+v", ch)
	}
	if ch.ChunkSize != 500 || ch.OverlapSize != 50 {
		t.Errorf("unset sizes should keep defaults, got %d/%d", ch.ChunkSize, ch.OverlapSize)
	}

	if err := cfg.Set("embedding.chunking.chunk_size", "200"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if cfg.Embedding.Chunking.ChunkSize != 200 {
		t.Errorf("ChunkSize = %d", cfg.Embedding.Chunking.ChunkSize)
	}
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("ollama.default_model", "llava"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cfg.Set("pull.max_concurrent", "4"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := cfg.Set("pull.insecure", "yes"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, err := cfg.Get("ollama.default_model")
	if err != nil || v != "llava" {
		t.Errorf("Get() = %v, %v", v, err)
	}
	if cfg.Pull.MaxConcurrent != 4 || !cfg.Pull.Insecure {
		t.Errorf("Pull = %+v", cfg.Pull)
	}

	if err := cfg.Set("pull.max_concurrent", "many"); err == nil {
		t.Error("expected integer parse error")
	}
	if err := cfg.Set("pull.insecure", "perhaps"); err == nil {
		t.Error("expected boolean parse error")
	}
	if _, err := cfg.Get("ollama.nothing"); err == nil {
		t.Error("expected unknown field error")
	}
	if _, err := cfg.Get("ollama.url.host"); err == nil {
		t.Error("expected not-a-struct error")
	}
}

func TestGetAllKeys_Resolve(t *testing.T) {
	cfg := Default()
	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("Get(%q) error = %v", key, err)
		}
	}
}

func TestConfig_StringRedactsKey(t *testing.T) {
	cfg := Default()
	cfg.Security.APIKey = "sk-very-secret"

	s := cfg.String()
	if strings.Contains(s, "sk-very-secret") {
		t.Error("String() leaked the API key")
	}
	if cfg.Security.APIKey != "sk-very-secret" {
		t.Error("String() modified the original")
	}
}

// =============================================================================
// GLOBAL
// =============================================================================

// Run with: go test -race ./internal/config/
func TestConfig_ConcurrentGlobalAccess(t *testing.T) {
	t.Cleanup(func() { SetGlobal(nil) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.Ollama.DefaultModel = "test-model"
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

// =============================================================================
// LOGGER AND CLIENT CONFIG
// =============================================================================

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: "info", Format: "json"}, &buf, false)

	logger.Debug("hidden")
	logger.Info("shown", "model", "llama3.2")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug line should be filtered at info level")
	}
	if !strings.Contains(out, `"model":"llama3.2"`) {
		t.Errorf("expected JSON attrs, got %s", out)
	}

	buf.Reset()
	NewLogger(LogConfig{Level: "error"}, &buf, true).Debug("verbose")
	if !strings.Contains(buf.String(), "verbose") {
		t.Error("verbose should force debug level")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug || ParseLevel("bogus") != slog.LevelWarn {
		t.Error("unexpected level mapping")
	}
}

func TestConfig_ClientConfig(t *testing.T) {
	cfg := Default()
	cfg.Ollama.ReadTimeoutSecs = 45
	cfg.Security.APIKey = "k"
	cfg.Pull.MaxConcurrent = 3

	cc := cfg.ClientConfig(nil)
	if cc.BaseURL != cfg.Ollama.URL {
		t.Errorf("BaseURL = %q", cc.BaseURL)
	}
	if cc.ReadTimeout != 45*time.Second || cc.ConnectTimeout != 30*time.Second {
		t.Errorf("timeouts = %v / %v", cc.ConnectTimeout, cc.ReadTimeout)
	}
	if !cc.Security.Enabled() {
		t.Error("security header should be enabled")
	}
	if cc.MaxConcurrentPulls != 3 {
		t.Errorf("MaxConcurrentPulls = %d", cc.MaxConcurrentPulls)
	}
	if cc.Embedding.Model != "nomic-embed-text" {
		t.Errorf("Embedding.Model = %q", cc.Embedding.Model)
	}
	want := chunk.Config{Strategy: chunk.FixedSize, Size: 500, Overlap: 50}
	if cc.Embedding.Chunking != want {
		t.Errorf("Embedding.Chunking = %+v, want %+v", cc.Embedding.Chunking, want)
	}
}

// =============================================================================
// WATCH
// =============================================================================

func TestWatch_ReloadsOnWrite(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	writeFile(t, path, "[ollama]\ndefault_model = \"first\"\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	err := Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}

	cfg := Default()
	cfg.Ollama.DefaultModel = "second"
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got.Ollama.DefaultModel != "second" {
			t.Errorf("reloaded DefaultModel = %q", got.Ollama.DefaultModel)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}
}
