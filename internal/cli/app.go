// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared command state: configuration, logger and client.

package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeranaias/rigrun-ollama/internal/catalog"
	"github.com/jeranaias/rigrun-ollama/internal/config"
	"github.com/jeranaias/rigrun-ollama/internal/ollama"
)

// App carries everything a command needs. Build one with NewApp and Close
// it when the command returns.
type App struct {
	Args    Args
	Streams Streams

	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger
	Client     *ollama.Client

	snapshot *catalog.Snapshot

	// interactive overrides TTY detection; tests set it to false.
	interactive *bool
}

// NewApp loads configuration, applies command-line overrides and builds the
// client. The catalogue is not loaded here; commands that need it call
// LoadCatalog.
func NewApp(args Args, s Streams) (*App, error) {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return nil, &ConfigError{Err: err}
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	if args.URL != "" {
		cfg.Ollama.URL = args.URL
	}
	if args.Model != "" {
		cfg.Ollama.DefaultModel = args.Model
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	config.SetGlobal(cfg)

	logger := config.NewLogger(cfg.Log, s.Stderr, args.Verbose)

	app := &App{
		Args:       args,
		Streams:    s,
		Config:     cfg,
		ConfigPath: path,
		Logger:     logger,
	}

	cc := cfg.ClientConfig(logger)
	cc.Catalog = catalog.NewStore()
	if cfg.Models.SnapshotEnabled {
		if snapPath, err := cfg.SnapshotPath(); err == nil {
			snap, err := catalog.OpenSnapshot(snapPath)
			if err != nil {
				logger.Warn("catalogue snapshot unavailable", "path", snapPath, "error", err)
			} else {
				app.snapshot = snap
				cc.Snapshot = snap
			}
		}
	}
	app.Client = ollama.NewClientWithConfig(cc)

	logger.Debug("client ready", "url", cfg.Ollama.URL, "model", cfg.Ollama.DefaultModel, "config", path)
	return app, nil
}

// Close releases the snapshot database.
func (a *App) Close() {
	if a.snapshot != nil {
		if err := a.snapshot.Close(); err != nil {
			a.Logger.Warn("failed to close catalogue snapshot", "error", err)
		}
	}
}

// LoadCatalog fills the model catalogue when the configuration asks for it
// at startup, falling back to the snapshot when the server is down. Failure
// is logged, never fatal.
func (a *App) LoadCatalog(ctx context.Context) {
	if !a.Config.Models.LoadOnStartup {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.Client.Init(ctx); err != nil {
		a.Logger.Debug("catalogue not loaded", "error", err)
	}
}

// SignalContext returns a context cancelled by SIGINT or SIGTERM. Transfers
// started with it end as Cancelled.
func (a *App) SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Interactive reports whether stdin and stdout are both terminals.
func (a *App) Interactive() bool {
	if a.interactive != nil {
		return *a.interactive
	}
	return IsTTY() && IsStdoutTTY()
}

func (a *App) stdinIsTerminal() bool {
	if a.interactive != nil {
		return *a.interactive
	}
	return IsTTY()
}

// Model returns the model a command should use.
func (a *App) Model() string {
	return a.Config.Ollama.DefaultModel
}
