// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigrun-ollama command line.
//
// # Key Types
//
//   - Command: the command to run
//   - Args: global flags plus the command's own arguments
//   - App: configuration, logger and client shared by the commands
//   - ArgParser: per-command flag parsing
//   - JSONResponse: the envelope printed in --json mode
//
// # Usage
//
//	os.Exit(cli.Run(cli.Parse(os.Args[1:])))
//
// # Commands
//
//   - pull: parallel downloads with a progress bar per model
//   - generate: streamed completion, markdown or schema-shaped JSON output
//   - chat: one-shot message or an interactive session
//   - models, show, delete: catalogue management
//   - health: server reachability
//   - embed: chunked text embeddings
//   - config: show, get, set, path and keys
//
// Every command accepts --json and then prints exactly one document on
// stdout. Exit codes follow the error category: 2 usage, 3 config,
// 5 network, 7 not found, 8 timeout, 130 cancelled.
package cli
