// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/rigrun-ollama/internal/catalog"
)

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels retrieves all models installed on the server.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var result ListModelsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/tags", nil, &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// ShowModel retrieves details about a specific model.
func (c *Client) ShowModel(ctx context.Context, name string) (*ShowModelResponse, error) {
	if strings.TrimSpace(name) == "" {
		return nil, invalidRequest("model name is required")
	}
	var result ShowModelResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/show", ShowModelRequest{Name: name}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteModel removes a model from the server. With checkExists set and a
// loaded catalogue, a name the catalogue does not know is rejected without
// contacting the server.
func (c *Client) DeleteModel(ctx context.Context, name string, checkExists bool) error {
	if strings.TrimSpace(name) == "" {
		return invalidRequest("model name is required")
	}
	if checkExists && c.catalog.Initialized() && !c.catalog.Has(name) {
		c.logger.Warn("delete target not in catalogue", "model", name)
		return &ClientError{Type: ErrTypeModelNotFound, Message: "model not found: " + name}
	}

	if err := c.doJSON(ctx, http.MethodDelete, "/api/delete", DeleteRequest{Name: name}, nil); err != nil {
		if IsModelNotFound(err) {
			return &ClientError{Type: ErrTypeModelNotFound, Message: "model not found: " + name, Cause: err}
		}
		return err
	}

	c.catalog.Remove(name)
	c.logger.Info("model deleted", "model", name)
	return nil
}

// =============================================================================
// CATALOGUE
// =============================================================================

// RefreshModels reloads the catalogue from the server and, when a snapshot
// is configured, persists it.
func (c *Client) RefreshModels(ctx context.Context) error {
	infos, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("refresh models: %w", err)
	}

	models := toCatalogModels(infos)
	c.catalog.Replace(models)
	c.logger.Info("model list loaded", "count", len(models))

	if c.config.Snapshot != nil {
		if err := c.config.Snapshot.Save(ctx, models); err != nil {
			c.logger.Warn("failed to save catalogue snapshot", "error", err)
		}
	}
	return nil
}

// Init loads the catalogue at startup. If the server cannot be reached and a
// snapshot exists, the snapshot is served instead. A failure here is never
// fatal for the client; requests are then validated by the server.
func (c *Client) Init(ctx context.Context) error {
	err := c.RefreshModels(ctx)
	if err == nil {
		return nil
	}
	c.logger.Warn("model list unavailable, continuing without validation", "error", err)

	if c.config.Snapshot == nil {
		return err
	}
	models, savedAt, snapErr := c.config.Snapshot.Load(ctx)
	if snapErr != nil {
		if !errors.Is(snapErr, catalog.ErrNoSnapshot) {
			c.logger.Warn("failed to load catalogue snapshot", "error", snapErr)
		}
		return err
	}

	c.catalog.Replace(models)
	c.logger.Info("model list restored from snapshot", "count", len(models), "saved_at", savedAt)
	return nil
}

// AvailableModels returns the cached catalogue, sorted by name.
func (c *Client) AvailableModels() []catalog.Model {
	return c.catalog.List()
}

// IsModelAvailable reports whether name is known. It returns true when the
// catalogue has never been loaded, deferring the check to the server.
func (c *Client) IsModelAvailable(name string) bool {
	return c.catalog.Available(name)
}

// ModelInfo returns the catalogue entry for name.
func (c *Client) ModelInfo(name string) (catalog.Model, bool) {
	return c.catalog.Get(name)
}

func toCatalogModels(infos []ModelInfo) []catalog.Model {
	models := make([]catalog.Model, 0, len(infos))
	for _, m := range infos {
		models = append(models, catalog.Model{
			Name:          m.Name,
			Digest:        m.Digest,
			Size:          m.Size,
			ModifiedAt:    m.ModifiedAt,
			Family:        m.Details.Family,
			ParameterSize: m.Details.ParameterSize,
			Quantization:  m.Details.QuantizationLevel,
		})
	}
	return models
}
