// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"fmt"
	"time"
)

// FormatBytes renders a byte count with two decimals in binary units:
// 512 B, 1.50 KB, 3.25 GB.
func FormatBytes(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	kb := float64(bytes) / 1024
	if kb < 1024 {
		return fmt.Sprintf("%.2f KB", kb)
	}
	mb := kb / 1024
	if mb < 1024 {
		return fmt.Sprintf("%.2f MB", mb)
	}
	return fmt.Sprintf("%.2f GB", mb/1024)
}

// FormatDuration renders a duration at the two most significant units
// (1h 5m, 3m 20s, 12s). Non-positive durations render as "N/A".
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "N/A"
	}
	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60

	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds%60)
	case seconds > 0:
		return fmt.Sprintf("%ds", seconds)
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}
