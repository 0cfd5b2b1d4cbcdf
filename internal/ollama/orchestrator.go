// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// =============================================================================
// PARALLEL PULLS
// =============================================================================

// PullModelsParallel starts one pull per name and returns every handle
// without waiting. All names are validated before anything is started, so an
// invalid name means no request is sent at all.
//
// h is shared: its callbacks run concurrently from each pull's goroutine and
// must be safe for that. Progress events carry the model name to tell the
// pulls apart.
func (c *Client) PullModelsParallel(ctx context.Context, names []string, insecure bool, h Handler) ([]*Handle, error) {
	if len(names) == 0 {
		return nil, invalidRequest("at least one model name is required")
	}
	reqs := make([]StreamRequest, len(names))
	for i, name := range names {
		if err := validatePull(name); err != nil {
			return nil, invalidRequest("model name %d is empty", i+1)
		}
		req, err := c.pullRequest(name, insecure)
		if err != nil {
			return nil, err
		}
		reqs[i] = req
	}

	c.logger.Info("parallel pull started", "models", len(names))
	handles := make([]*Handle, len(reqs))
	for i, req := range reqs {
		handles[i] = c.start(ctx, req, h)
	}
	return handles, nil
}

// PullModelsAsync pulls every model and resolves with one Result per name,
// in input order. A failed pull does not stop the others. At most
// MaxConcurrentPulls run at once when that is set.
//
// The future itself never resolves with an error: failures and
// cancellations are reported in the individual results.
func (c *Client) PullModelsAsync(ctx context.Context, names []string, insecure bool) *Future[[]Result] {
	f := newFuture[[]Result]()
	results := make([]Result, len(names))

	var g errgroup.Group
	if c.config.MaxConcurrentPulls > 0 {
		g.SetLimit(c.config.MaxConcurrentPulls)
	}

	go func() {
		for i, name := range names {
			g.Go(func() error {
				res, err := c.PullModel(ctx, name, insecure, nil)
				if err != nil && res.Outcome == OutcomeSuccess {
					res = failureResult(name, res.Duration, err)
				}
				if res.Operation == "" {
					res.Operation = name
				}
				results[i] = res
				return nil
			})
		}
		g.Wait()

		succeeded := 0
		for _, r := range results {
			if r.IsSuccess() {
				succeeded++
			}
		}
		c.logger.Info("parallel pull finished", "models", len(names), "succeeded", succeeded)
		f.resolve(results, nil)
	}()
	return f
}
