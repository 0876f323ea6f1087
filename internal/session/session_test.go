// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/storyrun-tui/internal/model"
)

func texts(turns []model.Turn) []string {
	out := make([]string, len(turns))
	for i, t := range turns {
		out[i] = t.Text
	}
	return out
}

// =============================================================================
// CONSTRUCTION TESTS
// =============================================================================

func TestNew(t *testing.T) {
	s := New("mock/mock")

	if _, err := uuid.Parse(s.ID()); err != nil {
		t.Errorf("ID() = %q, want a uuid: %v", s.ID(), err)
	}
	meta := s.Meta()
	if meta.Model != "mock/mock" {
		t.Errorf("Model = %q, want %q", meta.Model, "mock/mock")
	}
	if meta.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if s.Len() != 0 || s.CanUndo() || s.CanRedo() {
		t.Error("new session should be empty")
	}
	if s.IsDirty() {
		t.Error("new session should not be dirty")
	}
}

func TestNew_UniqueIDs(t *testing.T) {
	if New("a/b").ID() == New("a/b").ID() {
		t.Error("two sessions share an ID")
	}
}

// =============================================================================
// UNDO / REDO TESTS
// =============================================================================

func TestUndoRedo_RoundTrip(t *testing.T) {
	s := New("mock/mock")
	s.Append(model.NewUserTurn("one"))
	s.Append(model.NewAITurn("two", 2))
	before := s.Turns()

	undone, ok := s.Undo()
	require.True(t, ok)
	assert.Equal(t, "two", undone.Text)
	assert.Equal(t, []string{"one"}, texts(s.Turns()))

	redone, ok := s.Redo()
	require.True(t, ok)
	assert.Equal(t, undone, redone)
	assert.Equal(t, before, s.Turns())
}

func TestUndoRedo_Multiple(t *testing.T) {
	s := New("mock/mock")
	for _, txt := range []string{"a", "b", "c"} {
		s.Append(model.NewUserTurn(txt))
	}

	s.Undo()
	s.Undo()
	assert.Equal(t, []string{"a"}, texts(s.Turns()))

	s.Redo()
	assert.Equal(t, []string{"a", "b"}, texts(s.Turns()))
	s.Redo()
	assert.Equal(t, []string{"a", "b", "c"}, texts(s.Turns()))

	_, ok := s.Redo()
	assert.False(t, ok)
}

func TestUndo_Empty(t *testing.T) {
	s := New("mock/mock")
	if _, ok := s.Undo(); ok {
		t.Error("Undo() on empty session = true, want false")
	}
	if _, ok := s.Redo(); ok {
		t.Error("Redo() on empty session = true, want false")
	}
}

func TestAppend_ClearsRedo(t *testing.T) {
	s := New("mock/mock")
	s.Append(model.NewUserTurn("a"))
	s.Append(model.NewUserTurn("b"))
	s.Undo()
	require.True(t, s.CanRedo())

	s.Append(model.NewUserTurn("c"))

	assert.False(t, s.CanRedo())
	assert.Equal(t, []string{"a", "c"}, texts(s.Turns()))
}

func TestTurns_ReturnsCopy(t *testing.T) {
	s := New("mock/mock")
	s.Append(model.NewUserTurn("a"))

	turns := s.Turns()
	turns[0].Text = "mutated"

	assert.Equal(t, "a", s.Turns()[0].Text)
}

func TestLast(t *testing.T) {
	s := New("mock/mock")
	_, ok := s.Last()
	assert.False(t, ok)

	s.Append(model.NewUserTurn("a"))
	s.Append(model.NewAITurn("b", 1))
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, model.RoleAI, last.Role)
}

// =============================================================================
// SNAPSHOT TESTS
// =============================================================================

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	s := New("openai/gpt-4o-mini")
	s.SetTitle("The Lighthouse")
	s.SetInstructions("Write in second person.")
	s.SetDetails("It is winter.")
	s.Append(model.NewUserTurn("You climb the stairs."))
	s.Append(model.NewAITurn("The lamp is dark.", 5))

	snap := s.Snapshot()

	restored := New("mock/mock")
	require.NoError(t, restored.Restore(snap))

	assert.Equal(t, s.Meta(), restored.Meta())
	assert.Equal(t, s.Turns(), restored.Turns())
	assert.Equal(t, snap, restored.Snapshot())
}

func TestSnapshot_SurvivesJSON(t *testing.T) {
	s := New("mock/mock")
	s.SetTitle("T")
	s.Append(model.NewUserTurn("a"))
	s.Append(model.NewAITurn("b", 7))

	data, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))

	restored, err := FromSnapshot(snap)
	require.NoError(t, err)

	got := restored.Turns()
	require.Len(t, got, 2)
	assert.Equal(t, model.RoleUser, got[0].Role)
	assert.Equal(t, model.TokensUnknown, got[0].TokenCount)
	assert.Equal(t, model.RoleAI, got[1].Role)
	assert.Equal(t, 7, got[1].TokenCount)
	assert.Equal(t, s.ID(), restored.ID())
}

func TestRestore_ClearsRedoAndDirty(t *testing.T) {
	s := New("mock/mock")
	s.Append(model.NewUserTurn("a"))
	snap := s.Snapshot()
	s.Append(model.NewUserTurn("b"))
	s.Undo()
	require.True(t, s.CanRedo())

	require.NoError(t, s.Restore(snap))

	assert.False(t, s.CanRedo())
	assert.False(t, s.IsDirty())
	assert.Equal(t, []string{"a"}, texts(s.Turns()))
}

func TestRestore_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		snap Snapshot
	}{
		{"missing id", Snapshot{Version: 1}},
		{"future version", Snapshot{Version: SnapshotVersion + 1, Meta: model.StoryMeta{ID: "x"}}},
		{"bad role", Snapshot{Version: 1, Meta: model.StoryMeta{ID: "x"}, Turns: []model.Turn{{Role: "narrator"}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := New("mock/mock")
			s.Append(model.NewUserTurn("keep"))

			if err := s.Restore(tc.snap); err == nil {
				t.Fatal("Restore() error = nil, want error")
			}
			assert.Equal(t, []string{"keep"}, texts(s.Turns()))
		})
	}
}

func TestSnapshot_IsIndependent(t *testing.T) {
	s := New("mock/mock")
	s.Append(model.NewUserTurn("a"))
	snap := s.Snapshot()

	s.Append(model.NewUserTurn("b"))

	assert.Len(t, snap.Turns, 1)
}

// =============================================================================
// DIRTY TRACKING TESTS
// =============================================================================

func TestDirtyTracking(t *testing.T) {
	s := New("mock/mock")

	s.Append(model.NewUserTurn("a"))
	assert.True(t, s.IsDirty())

	s.MarkClean()
	assert.False(t, s.IsDirty())

	s.SetTitle("x")
	assert.True(t, s.IsDirty())

	s.MarkClean()
	s.Undo()
	assert.True(t, s.IsDirty())
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestSession_ConcurrentReaders(t *testing.T) {
	s := New("mock/mock")
	for i := 0; i < 10; i++ {
		s.Append(model.NewUserTurn("turn"))
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Turns()
			_ = s.Snapshot()
			_ = s.Len()
			_ = s.CanRedo()
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Undo()
		s.Redo()
	}()
	wg.Wait()

	assert.Equal(t, 10, s.Len())
}
