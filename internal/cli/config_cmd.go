// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - The "config" command.
//
// Subcommands:
//
//	show (default)      Display the effective configuration
//	get <key>           Print one value
//	set <key> <value>   Change one value in the config file
//	path                Show the config file path
//	keys                List every key
//
// Keys use dot notation: ollama.url, pull.max_concurrent, ui.theme.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/rigrun-ollama/internal/config"
)

// HandleConfig inspects or edits the configuration. It needs no server.
func HandleConfig(args Args, s Streams) error {
	path, err := resolveConfigPath(args.ConfigPath)
	if err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	switch sub := p.Subcommand(); sub {
	case "", "show":
		return configShow(args, s, path)
	case "get":
		return configGet(args, s, path, p.PositionalAt(1))
	case "set":
		return configSet(args, s, path, p.PositionalAt(1), p.Rest(2))
	case "path":
		return configPath(args, s, path)
	case "keys":
		if args.JSON {
			return NewJSONResponse("config keys", config.GetAllKeys()).Fprint(s.Stdout)
		}
		for _, k := range config.GetAllKeys() {
			fmt.Fprintln(s.Stdout, k)
		}
		return nil
	default:
		return &UsageError{
			Reason:  "unknown config subcommand: " + sub,
			Example: "rigrun-ollama config [show|get|set|path|keys]",
		}
	}
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	p, err := config.ConfigPathTOML()
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	return p, nil
}

// configShow prints the effective configuration, environment overrides
// included. The API key is never printed.
func configShow(args Args, s Streams, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	if args.JSON {
		return NewJSONResponse("config show", map[string]any{
			"path":   path,
			"config": redacted(cfg),
		}).Fprint(s.Stdout)
	}

	fmt.Fprintln(s.Stdout, TitleStyle.Render("rigrun-ollama configuration"))
	fmt.Fprintln(s.Stdout, renderField("File", path))
	section := ""
	for _, key := range config.GetAllKeys() {
		if head, _, _ := strings.Cut(key, "."); head != section {
			section = head
			fmt.Fprintln(s.Stdout, SectionStyle.Render("["+section+"]"))
		}
		v, err := cfg.Get(key)
		if err != nil {
			continue
		}
		fmt.Fprintln(s.Stdout, RenderLabel(key, 32)+ValueStyle.Render(displayValue(key, v)))
	}
	return nil
}

func configGet(args Args, s Streams, path, key string) error {
	if key == "" {
		return ErrMissingArgument("key", "rigrun-ollama config get ollama.url")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	v, err := cfg.Get(key)
	if err != nil {
		return &UsageError{Reason: err.Error(), Example: "rigrun-ollama config keys"}
	}
	if args.JSON {
		return NewJSONResponse("config get", map[string]any{"key": key, "value": displayValue(key, v)}).Fprint(s.Stdout)
	}
	fmt.Fprintln(s.Stdout, displayValue(key, v))
	return nil
}

// configSet edits the file itself: environment overrides are not applied,
// so they are never written back.
func configSet(args Args, s Streams, path, key, value string) error {
	if key == "" {
		return ErrMissingArgument("key", "rigrun-ollama config set ollama.default_model qwen2.5:7b")
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return &UsageError{Reason: "config set only edits TOML files"}
	}

	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return &ConfigError{Path: path, Err: err}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return &ConfigError{Path: path, Err: err}
	}

	if err := cfg.Set(key, value); err != nil {
		return &UsageError{Reason: err.Error(), Example: "rigrun-ollama config keys"}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	if err := config.Save(cfg, path); err != nil {
		return &ConfigError{Path: path, Err: err}
	}

	if args.JSON {
		return NewJSONResponse("config set", map[string]any{"key": key, "value": displayValue(key, value)}).Fprint(s.Stdout)
	}
	if !args.Quiet {
		fmt.Fprintf(s.Stdout, "%s %s = %s\n", RenderStatus("ok"), key, displayValue(key, value))
	}
	return nil
}

func configPath(args Args, s Streams, path string) error {
	_, err := os.Stat(path)
	exists := err == nil
	if args.JSON {
		return NewJSONResponse("config path", map[string]any{"path": path, "exists": exists}).Fprint(s.Stdout)
	}
	fmt.Fprintln(s.Stdout, path)
	if !exists {
		fmt.Fprintln(s.Stderr, DimStyle.Render("(file does not exist; defaults are in use)"))
	}
	return nil
}

// displayValue masks secrets.
func displayValue(key string, v any) string {
	str := fmt.Sprint(v)
	if strings.HasSuffix(key, "api_key") {
		if str == "" {
			return "(not set)"
		}
		return "[REDACTED]"
	}
	return str
}

func redacted(cfg *config.Config) *config.Config {
	safe := *cfg
	if safe.Security.APIKey != "" {
		safe.Security.APIKey = "[REDACTED]"
	}
	return &safe
}
