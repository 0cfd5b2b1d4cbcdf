// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog keeps the client's view of which models the server has.
//
// The Store is the only state shared between concurrent transfers: pull
// completions write to it from their own goroutines while callers read it,
// so every access goes through one RWMutex.
//
// # Key Types
//
//   - Store: mutex-guarded model list keyed by name
//   - Refresher: periodic reload on a ticker
//   - Snapshot: SQLite persistence used as an offline fallback
//
// # Usage
//
//	store := catalog.NewStore()
//	store.Replace(models)
//	if store.Has("llama3.2:latest") { ... }
package catalog
