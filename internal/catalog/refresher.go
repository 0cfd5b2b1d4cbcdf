// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// RefreshFunc reloads the catalogue from its source.
type RefreshFunc func(ctx context.Context) error

// Refresher calls a RefreshFunc on a fixed interval until its context ends.
type Refresher struct {
	interval time.Duration
	refresh  RefreshFunc
	logger   *slog.Logger

	runs     atomic.Int64
	failures atomic.Int64
}

// NewRefresher creates a refresher. The interval must be positive.
func NewRefresher(interval time.Duration, refresh RefreshFunc, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{interval: interval, refresh: refresh, logger: logger}
}

// Run blocks, refreshing once per interval, until ctx is cancelled.
// Failed refreshes are logged and retried on the next tick.
func (r *Refresher) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.runs.Add(1)
			if err := r.refresh(ctx); err != nil {
				r.failures.Add(1)
				r.logger.Warn("scheduled model refresh failed", "error", err)
				continue
			}
			r.logger.Debug("scheduled model refresh done")

		case <-ctx.Done():
			return
		}
	}
}

// Stats returns how many refreshes ran and how many failed.
func (r *Refresher) Stats() (runs, failures int64) {
	return r.runs.Load(), r.failures.Load()
}
