// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/session"
	"github.com/jeranaias/storyrun-tui/internal/util"
)

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store persists story snapshots by story ID.
type Store interface {
	// Save writes snap, replacing any earlier version
	Save(snap session.Snapshot) error

	// Load returns the snapshot with id or ErrStoryNotFound
	Load(id string) (session.Snapshot, error)

	// List returns every story, most recently updated first
	List() ([]Summary, error)

	// Delete removes the story with id or returns ErrStoryNotFound
	Delete(id string) error

	Close() error
}

// Summary describes a stored story for listings.
type Summary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TurnCount int       `json:"turn_count"`

	// Preview is the start of the first turn
	Preview string `json:"preview"`
}

// PreviewLength bounds Summary.Preview in runes.
const PreviewLength = 80

func summarize(snap session.Snapshot) Summary {
	s := Summary{
		ID:        snap.Meta.ID,
		Title:     snap.Meta.Title,
		Model:     snap.Meta.Model,
		CreatedAt: snap.Meta.CreatedAt,
		UpdatedAt: snap.Meta.UpdatedAt,
		TurnCount: len(snap.Turns),
	}
	if len(snap.Turns) > 0 {
		s.Preview = preview(snap.Turns[0].Text)
	}
	return s
}

func preview(text string) string {
	return util.TruncateRunes(util.SingleLine(text), PreviewLength)
}

// =============================================================================
// BACKENDS
// =============================================================================

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open creates the store for backend under dataDir.
func Open(backend, dataDir string) (Store, error) {
	switch strings.ToLower(backend) {
	case "", BackendJSON:
		return NewJSONStore(filepath.Join(dataDir, "stories"))
	case BackendSQLite:
		return OpenSQLite(filepath.Join(dataDir, "stories.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q (want %s or %s)", backend, BackendJSON, BackendSQLite)
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrStoryNotFound is returned when a story doesn't exist.
// Use errors.Is(err, ErrStoryNotFound) to check for this error.
var ErrStoryNotFound = &StoryError{Message: "story not found"}

// ErrInvalidID is returned for IDs that are not story IDs.
var ErrInvalidID = &StoryError{Message: "invalid story id"}

// StoryError represents a storage error. It can be compared using errors.Is.
type StoryError struct {
	Message string
	ID      string
}

// Error implements the error interface.
func (e *StoryError) Error() string {
	if e.ID != "" {
		return e.Message + ": " + e.ID
	}
	return e.Message
}

// Is implements errors.Is support for comparing story errors.
func (e *StoryError) Is(target error) bool {
	t, ok := target.(*StoryError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func notFound(id string) error {
	return &StoryError{Message: ErrStoryNotFound.Message, ID: id}
}

// SECURITY: IDs become file names, so only UUIDs are accepted.
func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &StoryError{Message: ErrInvalidID.Message, ID: id}
	}
	return nil
}

// =============================================================================
// LIST FORMATTING
// =============================================================================

// FormatList formats summaries as a plain-text table.
func FormatList(stories []Summary) string {
	if len(stories) == 0 {
		return "No stories found."
	}

	var sb strings.Builder
	sb.WriteString(util.PadRight("ID", 36) + "  " + util.PadRight("Updated", 16) + "  " +
		util.PadRight("Turns", 5) + "  Title\n")
	for _, s := range stories {
		title := model.StoryMeta{Title: s.Title}.DisplayTitle()
		sb.WriteString(util.PadRight(s.ID, 36) + "  " +
			util.PadRight(s.UpdatedAt.Local().Format("2006-01-02 15:04"), 16) + "  " +
			util.PadRight(fmt.Sprintf("%d", s.TurnCount), 5) + "  " +
			util.TruncateWidth(title, 40) + "\n")
	}
	return sb.String()
}
