// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the client and the CLI.
//
// # Key Functions
//
//   - FormatBytes, FormatDuration: human-readable transfer sizes and times
//   - TruncateRunes, TruncateWidth, PadWidth: terminal-safe string fitting
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	fmt.Println(util.FormatBytes(p.Completed), "of", util.FormatBytes(p.Total))
//	err := util.AtomicWriteFile(path, data, 0600)
package util
