// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce collapses the burst of events an editor or an atomic
// rename produces into one reload.
const reloadDebounce = 150 * time.Millisecond

// Watch reloads the config at path whenever it changes on disk and passes
// the result to onChange. A config that fails to load or validate is passed
// as an error and the previous one stays in effect for the caller.
//
// The parent directory is watched rather than the file so that atomic
// replacements are seen. Watch returns once watching has started; it stops
// when ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config, error)) error {
	if path == "" {
		p, err := ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				onChange(Load(absPath))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				onChange(nil, fmt.Errorf("config watcher: %w", err))
			}
		}
	}()
	return nil
}
