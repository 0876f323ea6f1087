// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/session"
	"github.com/jeranaias/storyrun-tui/internal/util"
)

// =============================================================================
// SCHEMA
// =============================================================================

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stories (
	id           TEXT PRIMARY KEY,
	title        TEXT NOT NULL DEFAULT '',
	instructions TEXT NOT NULL DEFAULT '',
	details      TEXT NOT NULL DEFAULT '',
	model        TEXT NOT NULL DEFAULT '',
	version      INTEGER NOT NULL DEFAULT 1,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
	story_id    TEXT NOT NULL REFERENCES stories(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	role        TEXT NOT NULL,
	text        TEXT NOT NULL,
	token_count INTEGER NOT NULL,
	created_at  TEXT NOT NULL,
	PRIMARY KEY (story_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_stories_updated ON stories(updated_at);
`

// timeLayout is fixed width so stored strings sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore keeps every story in one SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Save implements Store. The story and its turns are replaced in one
// transaction.
func (s *SQLiteStore) Save(snap session.Snapshot) error {
	if err := validateID(snap.Meta.ID); err != nil {
		return err
	}
	if snap.Version == 0 {
		snap.Version = session.SnapshotVersion
	}
	m := snap.Meta

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO stories (id, title, instructions, details, model, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			instructions = excluded.instructions,
			details = excluded.details,
			model = excluded.model,
			version = excluded.version,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		m.ID, m.Title, m.Instructions, m.Details, m.Model, snap.Version,
		formatTime(m.CreatedAt), formatTime(m.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM turns WHERE story_id = ?", m.ID); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO turns (story_id, seq, role, text, token_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range snap.Turns {
		if _, err := stmt.Exec(m.ID, i, string(t.Role), t.Text, t.TokenCount, formatTime(t.CreatedAt)); err != nil {
			return fmt.Errorf("failed to save turn %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit story: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLiteStore) Load(id string) (session.Snapshot, error) {
	if err := validateID(id); err != nil {
		return session.Snapshot{}, err
	}

	var (
		snap             session.Snapshot
		created, updated string
	)
	err := s.db.QueryRow(`
		SELECT id, title, instructions, details, model, version, created_at, updated_at
		FROM stories WHERE id = ?`, id).
		Scan(&snap.Meta.ID, &snap.Meta.Title, &snap.Meta.Instructions, &snap.Meta.Details,
			&snap.Meta.Model, &snap.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Snapshot{}, notFound(id)
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to load story: %w", err)
	}
	if snap.Meta.CreatedAt, err = parseTime(created); err != nil {
		return session.Snapshot{}, err
	}
	if snap.Meta.UpdatedAt, err = parseTime(updated); err != nil {
		return session.Snapshot{}, err
	}

	rows, err := s.db.Query(`
		SELECT role, text, token_count, created_at
		FROM turns WHERE story_id = ? ORDER BY seq`, id)
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to load turns: %w", err)
	}
	defer rows.Close()

	snap.Turns = []model.Turn{}
	for rows.Next() {
		var (
			t    model.Turn
			role string
			at   string
		)
		if err := rows.Scan(&role, &t.Text, &t.TokenCount, &at); err != nil {
			return session.Snapshot{}, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = model.Role(role)
		if t.CreatedAt, err = parseTime(at); err != nil {
			return session.Snapshot{}, err
		}
		snap.Turns = append(snap.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to read turns: %w", err)
	}
	return snap, nil
}

// List implements Store.
func (s *SQLiteStore) List() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.title, s.model, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM turns t WHERE t.story_id = s.id),
			COALESCE((SELECT text FROM turns t WHERE t.story_id = s.id ORDER BY seq LIMIT 1), '')
		FROM stories s
		ORDER BY s.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stories: %w", err)
	}
	defer rows.Close()

	stories := []Summary{}
	for rows.Next() {
		var (
			sum              Summary
			created, updated string
			first            string
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Model, &created, &updated, &sum.TurnCount, &first); err != nil {
			return nil, fmt.Errorf("failed to scan story: %w", err)
		}
		sum.CreatedAt, _ = parseTime(created)
		sum.UpdatedAt, _ = parseTime(updated)
		sum.Preview = preview(first)
		stories = append(stories, sum)
	}
	return stories, rows.Err()
}

// Delete implements Store.
func (s *SQLiteStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	res, err := s.db.Exec("DELETE FROM stories WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// formatTime stores times in UTC.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
