// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// rigrun-ollama.
//
// Configuration is TOML (JSON is accepted when the file ends in .json), with
// defaults, environment variable overrides and validation.
//
// # Configuration Precedence
//
//   - Command line flags (--url, --verbose)
//   - Environment variables (RIGRUN_OLLAMA_*, OLLAMA_HOST)
//   - ~/.rigrun-ollama/config.toml or the file named by --config
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger := config.NewLogger(cfg.Log, os.Stderr, false)
//	client := ollama.NewClientWithConfig(cfg.ClientConfig(logger))
//
// Watch picks up edits while a long-running command is open.
package config
