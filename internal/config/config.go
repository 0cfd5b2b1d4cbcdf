// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/rigrun-ollama/internal/chunk"
	"github.com/jeranaias/rigrun-ollama/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete rigrun-ollama configuration.
type Config struct {
	// Ollama server connection
	Ollama OllamaConfig `toml:"ollama" json:"ollama"`

	// Optional authentication header for servers behind a gateway
	Security SecurityConfig `toml:"security" json:"security"`

	// Model catalogue loading and persistence
	Models ModelsConfig `toml:"models" json:"models"`

	// Defaults for embedding requests
	Embedding EmbeddingConfig `toml:"embedding" json:"embedding"`

	// Model download behaviour
	Pull PullConfig `toml:"pull" json:"pull"`

	// Structured logging
	Log LogConfig `toml:"log" json:"log"`

	// Terminal output
	UI UIConfig `toml:"ui" json:"ui"`
}

// OllamaConfig contains the server connection settings.
type OllamaConfig struct {
	// URL is the Ollama API base URL
	URL string `toml:"url" json:"url"`
	// DefaultModel is used when a command names no model
	DefaultModel string `toml:"default_model" json:"default_model"`
	// ConnectTimeoutSecs bounds TCP connection setup
	ConnectTimeoutSecs int `toml:"connect_timeout_secs" json:"connect_timeout_secs"`
	// ReadTimeoutSecs bounds buffered requests and is the idle timeout
	// between lines of generate/chat streams. Pulls never time out.
	ReadTimeoutSecs int `toml:"read_timeout_secs" json:"read_timeout_secs"`
}

// SecurityConfig contains the authentication header settings.
type SecurityConfig struct {
	// HeaderName is the header carrying the key (default X-API-Key)
	HeaderName string `toml:"header_name" json:"header_name"`
	// HeaderValueFormat is the value template; "{value}" is replaced by APIKey
	HeaderValueFormat string `toml:"header_value_format" json:"header_value_format"`
	// APIKey enables the header when set
	APIKey string `toml:"api_key" json:"api_key"`
}

// ModelsConfig contains model catalogue settings.
type ModelsConfig struct {
	// LoadOnStartup fetches the model list before the first command runs
	LoadOnStartup bool `toml:"load_on_startup" json:"load_on_startup"`
	// RefreshIntervalMins reloads the list periodically in long-running
	// commands (0 = never)
	RefreshIntervalMins int `toml:"refresh_interval_mins" json:"refresh_interval_mins"`
	// SnapshotEnabled persists the list so it can be served offline
	SnapshotEnabled bool `toml:"snapshot_enabled" json:"snapshot_enabled"`
	// SnapshotPath is the SQLite file holding the snapshot
	// (empty = ~/.rigrun-ollama/models.db)
	SnapshotPath string `toml:"snapshot_path" json:"snapshot_path"`
}

// EmbeddingConfig contains defaults for embedding requests.
type EmbeddingConfig struct {
	Model      string         `toml:"model" json:"model"`
	Truncate   bool           `toml:"truncate" json:"truncate"`
	KeepAlive  string         `toml:"keep_alive" json:"keep_alive"`
	Dimensions int            `toml:"dimensions" json:"dimensions"`
	Chunking   ChunkingConfig `toml:"chunking" json:"chunking"`
}

// ChunkingConfig controls how long text is split before embedding.
type ChunkingConfig struct {
	Enabled bool `toml:"enabled" json:"enabled"`
	// Strategy is fixed_size, sentence or paragraph
	Strategy string `toml:"strategy" json:"strategy"`
	// ChunkSize is the maximum chunk length in characters
	ChunkSize int `toml:"chunk_size" json:"chunk_size"`
	// OverlapSize is repeated between fixed_size chunks
	OverlapSize int `toml:"overlap_size" json:"overlap_size"`
}

// PullConfig contains model download settings.
type PullConfig struct {
	// MaxConcurrent limits simultaneous downloads in batch pulls (0 = unlimited)
	MaxConcurrent int `toml:"max_concurrent" json:"max_concurrent"`
	// Insecure allows pulling from registries without TLS verification
	Insecure bool `toml:"insecure" json:"insecure"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" json:"level"`
	// Format is text or json
	Format string `toml:"format" json:"format"`
}

// UIConfig contains terminal output settings.
type UIConfig struct {
	// Markdown renders generated text as markdown on a terminal
	Markdown bool `toml:"markdown" json:"markdown"`
	// Theme is the glamour style name (dark, light, notty, auto)
	Theme string `toml:"theme" json:"theme"`
}

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			URL:                "http://127.0.0.1:11434",
			DefaultModel:       "llama3.2",
			ConnectTimeoutSecs: 30,
			ReadTimeoutSecs:    120,
		},
		Security: SecurityConfig{
			HeaderName:        "X-API-Key",
			HeaderValueFormat: "{value}",
		},
		Models: ModelsConfig{
			LoadOnStartup:   true,
			SnapshotEnabled: true,
		},
		Embedding: EmbeddingConfig{
			Model:     "nomic-embed-text",
			Truncate:  true,
			KeepAlive: "5m",
			Chunking: ChunkingConfig{
				Strategy:    string(chunk.FixedSize),
				ChunkSize:   500,
				OverlapSize: 50,
			},
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		UI: UIConfig{
			Markdown: true,
			Theme:    "auto",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the rigrun-ollama configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".rigrun-ollama"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// SnapshotPath returns the catalogue snapshot path, resolving the default.
func (c *Config) SnapshotPath() (string, error) {
	if c.Models.SnapshotPath != "" {
		return c.Models.SnapshotPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "models.db"), nil
}

// ensureSecurePermissions tightens a config file to 0600 since it may hold
// an API key.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads the configuration at path, or at the default location when path
// is empty. A missing file yields the defaults. Environment overrides are
// applied last, then the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPathTOML()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		var loadErr error
		if strings.EqualFold(filepath.Ext(path), ".json") {
			loadErr = LoadJSON(cfg, path)
		} else {
			loadErr = LoadTOML(cfg, path)
		}
		if loadErr != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", path, loadErr)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// SetDefaults fills empty or out-of-range fields with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Ollama.URL == "" {
		c.Ollama.URL = defaults.Ollama.URL
	}
	c.Ollama.URL = strings.TrimRight(c.Ollama.URL, "/")
	if c.Ollama.ConnectTimeoutSecs == 0 {
		c.Ollama.ConnectTimeoutSecs = defaults.Ollama.ConnectTimeoutSecs
	}
	if c.Ollama.ReadTimeoutSecs == 0 {
		c.Ollama.ReadTimeoutSecs = defaults.Ollama.ReadTimeoutSecs
	}

	if c.Security.HeaderName == "" {
		c.Security.HeaderName = defaults.Security.HeaderName
	}
	if c.Security.HeaderValueFormat == "" {
		c.Security.HeaderValueFormat = defaults.Security.HeaderValueFormat
	}

	if c.Embedding.KeepAlive == "" {
		c.Embedding.KeepAlive = defaults.Embedding.KeepAlive
	}
	if c.Embedding.Chunking.Strategy == "" {
		c.Embedding.Chunking.Strategy = defaults.Embedding.Chunking.Strategy
	}
	if c.Embedding.Chunking.ChunkSize == 0 {
		c.Embedding.Chunking.ChunkSize = defaults.Embedding.Chunking.ChunkSize
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}
	c.Log.Format = strings.ToLower(c.Log.Format)

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// ApplyEnvOverrides applies environment variable overrides.
// RIGRUN_OLLAMA_URL wins over OLLAMA_HOST when both are set.
func (c *Config) ApplyEnvOverrides() {
	// OLLAMA_HOST, as understood by the ollama CLI ("host:port" or a URL)
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Ollama.URL = hostToURL(host)
	}

	// RIGRUN_OLLAMA_URL
	if u := os.Getenv("RIGRUN_OLLAMA_URL"); u != "" {
		c.Ollama.URL = u
	}

	// RIGRUN_OLLAMA_MODEL
	if model := os.Getenv("RIGRUN_OLLAMA_MODEL"); model != "" {
		c.Ollama.DefaultModel = model
	}

	// RIGRUN_OLLAMA_API_KEY
	if key := os.Getenv("RIGRUN_OLLAMA_API_KEY"); key != "" {
		c.Security.APIKey = key
	}

	// RIGRUN_OLLAMA_LOG_LEVEL
	if level := os.Getenv("RIGRUN_OLLAMA_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

func hostToURL(host string) string {
	if strings.Contains(host, "://") {
		return host
	}
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	if !strings.Contains(host, ":") {
		host += ":11434"
	}
	return "http://" + host
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg as TOML to path, or to the default location when path is
// empty. The file is replaced atomically with 0600 permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		p, err := ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}

	var buf strings.Builder
	buf.WriteString("# rigrun-ollama configuration file\n")
	buf.WriteString("# Generated by rigrun-ollama - edit with care\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFileWithDir(path, []byte(buf.String()), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
	validThemes     = map[string]bool{"auto": true, "dark": true, "light": true, "notty": true, "dracula": true}
)

// Validate validates the configuration and returns all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors

	// Ollama
	if u, err := url.Parse(c.Ollama.URL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, ValidationError{
			Field:   "ollama.url",
			Message: fmt.Sprintf("invalid URL '%s', must be http(s)://host:port", c.Ollama.URL),
		})
	}
	if c.Ollama.ConnectTimeoutSecs < 1 || c.Ollama.ConnectTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "ollama.connect_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.Ollama.ConnectTimeoutSecs),
		})
	}
	if c.Ollama.ReadTimeoutSecs < 1 || c.Ollama.ReadTimeoutSecs > 3600 {
		errs = append(errs, ValidationError{
			Field:   "ollama.read_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 3600, got %d", c.Ollama.ReadTimeoutSecs),
		})
	}

	// Security
	if c.Security.APIKey != "" && !strings.Contains(c.Security.HeaderValueFormat, "{value}") {
		errs = append(errs, ValidationError{
			Field:   "security.header_value_format",
			Message: "must contain {value} when an api_key is set",
		})
	}
	if strings.ContainsAny(c.Security.HeaderName, " :\r\n") {
		errs = append(errs, ValidationError{
			Field:   "security.header_name",
			Message: fmt.Sprintf("invalid header name '%s'", c.Security.HeaderName),
		})
	}

	// Models
	if c.Models.RefreshIntervalMins < 0 {
		errs = append(errs, ValidationError{
			Field:   "models.refresh_interval_mins",
			Message: "must not be negative",
		})
	}

	// Embedding
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, ValidationError{
			Field:   "embedding.dimensions",
			Message: "must not be negative",
		})
	}

	// Checked even while disabled so a bad value fails before it is used.
	chunking := c.Embedding.Chunking.chunkConfig()
	chunking.Enabled = true
	if err := chunking.Validate(); err != nil {
		errs = append(errs, ValidationError{
			Field:   "embedding.chunking",
			Message: err.Error(),
		})
	}

	// Pull
	if c.Pull.MaxConcurrent < 0 || c.Pull.MaxConcurrent > 64 {
		errs = append(errs, ValidationError{
			Field:   "pull.max_concurrent",
			Message: fmt.Sprintf("must be between 0 and 64, got %d", c.Pull.MaxConcurrent),
		})
	}

	// Log
	if !validLogLevels[c.Log.Level] {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	if !validLogFormats[c.Log.Format] {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be text or json", c.Log.Format),
		})
	}

	// UI
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("unknown theme '%s'", c.UI.Theme),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ollama.url").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation. String values are
// converted to the field's type.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")

	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go
// field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})

	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

func setFieldValue(field reflect.Value, value any) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				lower := strings.ToLower(strVal)
				boolVal = lower == "yes" || lower == "on"
				if !boolVal && lower != "no" && lower != "off" {
					return fmt.Errorf("invalid boolean value: %q", strVal)
				}
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"ollama.url",
		"ollama.default_model",
		"ollama.connect_timeout_secs",
		"ollama.read_timeout_secs",
		"security.header_name",
		"security.header_value_format",
		"security.api_key",
		"models.load_on_startup",
		"models.refresh_interval_mins",
		"models.snapshot_enabled",
		"models.snapshot_path",
		"embedding.model",
		"embedding.truncate",
		"embedding.keep_alive",
		"embedding.dimensions",
		"embedding.chunking.enabled",
		"embedding.chunking.strategy",
		"embedding.chunking.chunk_size",
		"embedding.chunking.overlap_size",
		"pull.max_concurrent",
		"pull.insecure",
		"log.level",
		"log.format",
		"ui.markdown",
		"ui.theme",
	}
}

// String returns the config as indented JSON with the API key redacted.
func (c *Config) String() string {
	safe := *c
	if safe.Security.APIKey != "" {
		safe.Security.APIKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// Global returns the process-wide configuration, or the defaults when none
// has been set. Thread-safe.
func Global() *Config {
	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	if globalConfig == nil {
		return Default()
	}
	return globalConfig
}

// SetGlobal replaces the process-wide configuration. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}
