// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no catalogue snapshot")

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS models (
	name           TEXT PRIMARY KEY,
	digest         TEXT NOT NULL DEFAULT '',
	size           INTEGER NOT NULL DEFAULT 0,
	modified_at    INTEGER NOT NULL DEFAULT 0,
	family         TEXT NOT NULL DEFAULT '',
	parameter_size TEXT NOT NULL DEFAULT '',
	quantization   TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// Snapshot persists the last known catalogue in a SQLite file so that the
// CLI can list models while the server is unreachable.
type Snapshot struct {
	db *sql.DB
}

// OpenSnapshot opens (creating if needed) the snapshot database at path.
func OpenSnapshot(path string) (*Snapshot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure snapshot: %w", err)
	}
	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	return &Snapshot{db: db}, nil
}

// Save replaces the stored catalogue with models.
func (s *Snapshot) Save(ctx context.Context, models []Model) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM models"); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO models
		(name, digest, size, modified_at, family, parameter_size, quantization)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	for _, m := range models {
		var modified int64
		if !m.ModifiedAt.IsZero() {
			modified = m.ModifiedAt.Unix()
		}
		if _, err := stmt.ExecContext(ctx, m.Name, m.Digest, m.Size, modified,
			m.Family, m.ParameterSize, m.Quantization); err != nil {
			return fmt.Errorf("failed to save model %s: %w", m.Name, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('saved_at', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to stamp snapshot: %w", err)
	}

	return tx.Commit()
}

// Load returns the stored catalogue and the time it was saved.
func (s *Snapshot) Load(ctx context.Context) ([]Model, time.Time, error) {
	var stamp string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'saved_at'").Scan(&stamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, ErrNoSnapshot
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read snapshot stamp: %w", err)
	}
	savedAt, _ := time.Parse(time.RFC3339, stamp)

	rows, err := s.db.QueryContext(ctx, `SELECT name, digest, size, modified_at,
		family, parameter_size, quantization FROM models ORDER BY name`)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to query snapshot: %w", err)
	}
	defer rows.Close()

	var models []Model
	for rows.Next() {
		var m Model
		var modified int64
		if err := rows.Scan(&m.Name, &m.Digest, &m.Size, &modified,
			&m.Family, &m.ParameterSize, &m.Quantization); err != nil {
			return nil, time.Time{}, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		if modified > 0 {
			m.ModifiedAt = time.Unix(modified, 0)
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read snapshot: %w", err)
	}

	return models, savedAt, nil
}

// Close releases the database.
func (s *Snapshot) Close() error {
	return s.db.Close()
}
