// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"log/slog"
	"time"

	"github.com/jeranaias/rigrun-ollama/internal/chunk"
	"github.com/jeranaias/rigrun-ollama/internal/ollama"
)

// ClientConfig translates the file configuration into client options. The
// catalogue store and snapshot are left for the caller to attach.
func (c *Config) ClientConfig(logger *slog.Logger) *ollama.ClientConfig {
	return &ollama.ClientConfig{
		BaseURL:        c.Ollama.URL,
		ConnectTimeout: time.Duration(c.Ollama.ConnectTimeoutSecs) * time.Second,
		ReadTimeout:    time.Duration(c.Ollama.ReadTimeoutSecs) * time.Second,
		DefaultModel:   c.Ollama.DefaultModel,
		Security: ollama.SecurityConfig{
			HeaderName:        c.Security.HeaderName,
			HeaderValueFormat: c.Security.HeaderValueFormat,
			APIKey:            c.Security.APIKey,
		},
		Embedding: ollama.EmbeddingDefaults{
			Model:      c.Embedding.Model,
			Truncate:   c.Embedding.Truncate,
			KeepAlive:  c.Embedding.KeepAlive,
			Dimensions: c.Embedding.Dimensions,
			Chunking:   c.Embedding.Chunking.chunkConfig(),
		},
		MaxConcurrentPulls: c.Pull.MaxConcurrent,
		Logger:             logger,
	}
}

// chunkConfig converts the file section. An unknown strategy is passed
// through for Validate to report.
func (c ChunkingConfig) chunkConfig() chunk.Config {
	strategy, err := chunk.ParseStrategy(c.Strategy)
	if err != nil {
		strategy = chunk.Strategy(c.Strategy)
	}
	return chunk.Config{
		Enabled:  c.Enabled,
		Strategy: strategy,
		Size:     c.ChunkSize,
		Overlap:  c.OverlapSize,
	}
}
