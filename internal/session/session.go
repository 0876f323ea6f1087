// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/storyrun-tui/internal/model"
)

// =============================================================================
// SESSION
// =============================================================================

// Session is one story in progress.
//
// Readers may call any method concurrently. Writes are serialized by the
// mutex; the orchestrator additionally allows only one generation at a time.
type Session struct {
	mu sync.RWMutex

	meta  model.StoryMeta
	turns []model.Turn

	// redo holds undone turns; the last element is redone first
	redo []model.Turn

	dirty bool
}

// New creates an empty story for the given "provider/name" model ID.
func New(modelID string) *Session {
	now := time.Now().UTC()
	return &Session{
		meta: model.StoryMeta{
			ID:        uuid.NewString(),
			Model:     modelID,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// FromSnapshot creates a session holding snap.
func FromSnapshot(snap Snapshot) (*Session, error) {
	s := &Session{}
	if err := s.Restore(snap); err != nil {
		return nil, err
	}
	return s, nil
}

// =============================================================================
// METADATA
// =============================================================================

// ID returns the story ID.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.ID
}

// Meta returns a copy of the story metadata.
func (s *Session) Meta() model.StoryMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// Title returns the story title.
func (s *Session) Title() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta.Title
}

// SetTitle sets the story title.
func (s *Session) SetTitle(title string) {
	s.update(func(m *model.StoryMeta) { m.Title = title })
}

// SetInstructions sets the writing instructions sent with every request.
func (s *Session) SetInstructions(text string) {
	s.update(func(m *model.StoryMeta) { m.Instructions = text })
}

// SetDetails sets the story details block.
func (s *Session) SetDetails(text string) {
	s.update(func(m *model.StoryMeta) { m.Details = text })
}

// SetModel records the "provider/name" model the story is written with.
func (s *Session) SetModel(modelID string) {
	s.update(func(m *model.StoryMeta) { m.Model = modelID })
}

func (s *Session) update(fn func(*model.StoryMeta)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.meta)
	s.touchLocked()
}

// touchLocked must be called with mu held for writing.
func (s *Session) touchLocked() {
	s.meta.UpdatedAt = time.Now().UTC()
	s.dirty = true
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Append adds a turn and clears the redo stack.
func (s *Session) Append(turn model.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
	s.redo = nil
	s.touchLocked()
}

// Undo removes the last turn and pushes it onto the redo stack.
// It returns false when the transcript is empty.
func (s *Session) Undo() (model.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.turns) == 0 {
		return model.Turn{}, false
	}
	last := s.turns[len(s.turns)-1]
	s.turns = s.turns[:len(s.turns)-1]
	s.redo = append(s.redo, last)
	s.touchLocked()
	return last, true
}

// Redo re-appends the most recently undone turn.
// It returns false when there is nothing to redo.
func (s *Session) Redo() (model.Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.redo) == 0 {
		return model.Turn{}, false
	}
	turn := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.turns = append(s.turns, turn)
	s.touchLocked()
	return turn, true
}

// Turns returns a copy of the transcript, oldest first.
func (s *Session) Turns() []model.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Last returns the newest turn.
func (s *Session) Last() (model.Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.turns) == 0 {
		return model.Turn{}, false
	}
	return s.turns[len(s.turns)-1], true
}

// Len returns the number of turns.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// CanUndo reports whether Undo would succeed.
func (s *Session) CanUndo() bool {
	return s.Len() > 0
}

// CanRedo reports whether Redo would succeed.
func (s *Session) CanRedo() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.redo) > 0
}

// =============================================================================
// DIRTY TRACKING
// =============================================================================

// IsDirty reports whether the session changed since the last MarkClean.
func (s *Session) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// MarkClean records that the current state has been saved.
func (s *Session) MarkClean() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = false
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// SnapshotVersion is the current Snapshot format.
const SnapshotVersion = 1

// Snapshot is a self-contained copy of a story.
// It holds no credentials and no redo history.
type Snapshot struct {
	Version int             `json:"version" yaml:"version"`
	Meta    model.StoryMeta `json:"meta" yaml:"meta"`
	Turns   []model.Turn    `json:"turns" yaml:"turns"`
}

// Snapshot returns a copy of the current story.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]model.Turn, len(s.turns))
	copy(turns, s.turns)
	return Snapshot{
		Version: SnapshotVersion,
		Meta:    s.meta,
		Turns:   turns,
	}
}

// Restore replaces the story with snap and clears the redo stack.
// The session is left unchanged when snap is invalid.
func (s *Session) Restore(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	turns := make([]model.Turn, len(snap.Turns))
	copy(turns, snap.Turns)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = snap.Meta
	s.turns = turns
	s.redo = nil
	s.dirty = false
	return nil
}

// Validate checks that snap can be restored.
func (snap Snapshot) Validate() error {
	if snap.Version > SnapshotVersion {
		return fmt.Errorf("snapshot version %d is newer than supported version %d", snap.Version, SnapshotVersion)
	}
	if snap.Meta.ID == "" {
		return fmt.Errorf("snapshot has no story id")
	}
	for i, t := range snap.Turns {
		if !t.Role.Valid() {
			return fmt.Errorf("turn %d: invalid role %q", i, t.Role)
		}
	}
	return nil
}
