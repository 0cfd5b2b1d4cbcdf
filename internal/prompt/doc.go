// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt rewrites prompts that ask for structured JSON output and
// cleans the model's reply afterwards.
//
// Models frequently wrap JSON in markdown fences or add a sentence of
// preamble. Augment makes the expected structure explicit in the prompt and
// Clean strips whatever decoration still comes back. Both are pure functions.
//
// # Usage
//
//	schema := prompt.Object(map[string]string{"title": "string", "score": "integer"}).Require("title")
//	p := prompt.Augment("Summarise this ticket", schema)
//	// ... generate ...
//	out := prompt.Clean(reply)
//	if !prompt.IsValidJSON(out) { ... }
package prompt
