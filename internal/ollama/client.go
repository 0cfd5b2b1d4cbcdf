// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/rigrun-ollama/internal/catalog"
	"github.com/jeranaias/rigrun-ollama/internal/chunk"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ollama client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434)
	BaseURL string

	// ConnectTimeout bounds TCP connection setup for every request (default: 30s)
	ConnectTimeout time.Duration

	// ReadTimeout bounds buffered requests end to end, and is the idle timeout
	// between lines of generate/chat streams (default: 120s). Pull streams
	// never time out.
	ReadTimeout time.Duration

	// DefaultModel is used when a request names no model.
	DefaultModel string

	// Security adds an authentication header to every request.
	Security SecurityConfig

	// Embedding holds defaults applied to Embed requests.
	Embedding EmbeddingDefaults

	// MaxConcurrentPulls limits PullModelsAsync (0 = unlimited).
	MaxConcurrentPulls int

	// Catalog receives pull and delete updates. A fresh store is created
	// when nil.
	Catalog *catalog.Store

	// Snapshot, when set, persists the catalogue after each refresh and
	// serves it when the server is unreachable at Init.
	Snapshot CatalogSnapshot

	// Logger receives structured logs (default: slog.Default()).
	Logger *slog.Logger
}

// EmbeddingDefaults are applied to Embed requests that leave a field unset.
// Chunking is used by EmbedText.
type EmbeddingDefaults struct {
	Model      string
	Truncate   bool
	KeepAlive  string
	Dimensions int
	Chunking   chunk.Config
}

// CatalogSnapshot persists catalogue contents between runs.
type CatalogSnapshot interface {
	Save(ctx context.Context, models []catalog.Model) error
	Load(ctx context.Context) ([]catalog.Model, time.Time, error)
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:        "http://127.0.0.1:11434",
		ConnectTimeout: 30 * time.Second,
		ReadTimeout:    120 * time.Second,
		Security:       SecurityConfig{HeaderName: "X-API-Key", HeaderValueFormat: "{value}"},
		Embedding:      EmbeddingDefaults{Truncate: true, KeepAlive: "5m", Chunking: chunk.Default()},
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API.
//
// The Client is safe for concurrent use. Every streamed call runs on its own
// goroutine with its own connection; the catalogue is the only state those
// goroutines share.
//
// Example:
//
//	client := ollama.NewClient()
//	handle, err := client.PullModelStream(ctx, "llama3.2", false, ollama.Handler{
//	    OnEvent: func(ev ollama.Event) error {
//	        if p, ok := ev.(ollama.Progress); ok {
//	            fmt.Println(p.FormattedProgress())
//	        }
//	        return nil
//	    },
//	})
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	transport  *Transport
	catalog    *catalog.Store
	logger     *slog.Logger
}

// NewClient creates a new Ollama client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ollama client with custom configuration.
// Zero values are filled from DefaultConfig.
func NewClientWithConfig(config *ClientConfig) *Client {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}

	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = defaults.ConnectTimeout
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.Security.HeaderName == "" {
		config.Security.HeaderName = defaults.Security.HeaderName
	}
	if config.Security.HeaderValueFormat == "" {
		config.Security.HeaderValueFormat = defaults.Security.HeaderValueFormat
	}
	if config.Catalog == nil {
		config.Catalog = catalog.NewStore()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	logger := config.Logger.With("component", "ollama")

	dialer := &net.Dialer{Timeout: config.ConnectTimeout, KeepAlive: 30 * time.Second}
	rt := http.DefaultTransport.(*http.Transport).Clone()
	rt.DialContext = dialer.DialContext

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Transport: rt,
			Timeout:   config.ReadTimeout,
		},
		catalog: config.Catalog,
		logger:  logger,
	}
	c.transport = NewTransport(config.ConnectTimeout, config.ReadTimeout, c.authorize, logger)

	if config.Security.Enabled() {
		logger.Info("security header configured",
			"header", config.Security.HeaderName,
			"value", maskSecret(config.Security.APIKey))
	}

	return c
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// Catalog returns the store the client keeps up to date.
func (c *Client) Catalog() *catalog.Store {
	return c.catalog
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that Ollama is reachable and running.
func (c *Client) CheckRunning(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if !strings.Contains(strings.ToLower(string(body)), "ollama is running") {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "unexpected health response: " + strings.TrimSpace(string(body)),
		}
	}
	return nil
}

// IsHealthy reports whether the server answers its health endpoint.
func (c *Client) IsHealthy(ctx context.Context) bool {
	err := c.CheckRunning(ctx)
	if err != nil {
		c.logger.Debug("health check failed", "error", err)
	}
	return err == nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do sends a buffered request and maps connection failures and non-2xx
// statuses to ClientError. The caller closes the body on success.
func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, &ClientError{Type: ErrTypeInvalidRequest, Message: "failed to marshal request", Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, connectError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drainAndClose(resp.Body)
		return nil, statusError(resp, method+" "+path)
	}
	return resp, nil
}

// doJSON sends payload and decodes the JSON reply into out.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	resp, err := c.do(ctx, method, path, payload)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return &ClientError{Type: ErrTypeInvalidResponse, Message: "empty response from " + path}
		}
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

func (c *Client) modelOrDefault(model string) string {
	if model == "" {
		return c.config.DefaultModel
	}
	return model
}

// drainAndClose discards what is left of a body so the connection can be
// reused.
func drainAndClose(r io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(r, 64*1024))
	r.Close()
}
