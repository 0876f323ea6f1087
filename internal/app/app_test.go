// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/storyrun-tui/internal/cloud"
	"github.com/jeranaias/storyrun-tui/internal/config"
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/offline"
	"github.com/jeranaias/storyrun-tui/internal/ollama"
	"github.com/jeranaias/storyrun-tui/internal/orchestrator"
	"github.com/jeranaias/storyrun-tui/internal/prompt"
	"github.com/jeranaias/storyrun-tui/internal/provider"
	"github.com/jeranaias/storyrun-tui/internal/storage"
)

const mockID = "mock/mock"

func newTestApp(t *testing.T, keys map[string]string) (*App, storage.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.General.DefaultModel = mockID

	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)

	reg := NewRegistry(cfg, config.NewSecrets(keys), nil)
	return New(cfg, reg, store, nil), store
}

// =============================================================================
// WIRING
// =============================================================================

func TestNewRegistry_FactoriesPerProvider(t *testing.T) {
	cfg := config.Default()
	reg := NewRegistry(cfg, config.NewSecrets(map[string]string{
		model.ProviderOpenAI:  "sk-test",
		model.ProviderGemini:  "g-test",
		model.ProviderMistral: "m-test",
	}), nil)

	tests := []struct {
		id   string
		want any
	}{
		{"openai/gpt-4o-mini", &cloud.OpenAI{}},
		{"gemini/gemini-1.5-flash", &cloud.Gemini{}},
		{"mistral/open-mistral-nemo", &cloud.Mistral{}},
		{"ollama/llama3.2", &ollama.Adapter{}},
		{"mock/mock", &provider.Mock{}},
	}
	for _, tt := range tests {
		spec, err := reg.ResolveID(tt.id)
		require.NoError(t, err, tt.id)
		a, err := reg.Adapter(spec)
		require.NoError(t, err, tt.id)
		assert.IsType(t, tt.want, a, tt.id)
	}
}

func TestNewRegistry_ConfigModels(t *testing.T) {
	cfg := config.Default()
	cfg.Models = []model.ModelSpec{
		{Provider: "ollama", Name: "llama3.2", ContextWindow: 32768},
		{Provider: "ollama", Name: "qwen2.5:7b", ContextWindow: 16384},
	}
	reg := NewRegistry(cfg, nil, nil)

	spec, err := reg.Resolve("ollama", "llama3.2")
	require.NoError(t, err)
	assert.Equal(t, 32768, spec.ContextWindow)

	spec, err = reg.Resolve("ollama", "qwen2.5:7b")
	require.NoError(t, err)
	assert.Equal(t, 16384, spec.ContextWindow)
}

func TestNewRegistry_MissingKeyIsCredentialMissing(t *testing.T) {
	reg := NewRegistry(config.Default(), config.NewSecrets(nil), nil)
	_, err := reg.ResolveID("openai/gpt-4o-mini")
	assert.ErrorIs(t, err, provider.ErrCredentialMissing)
}

func TestNewRegistry_OfflineMode(t *testing.T) {
	offline.SetOfflineMode(true)
	t.Cleanup(func() { offline.SetOfflineMode(false) })

	cfg := config.Default()
	keys := config.NewSecrets(map[string]string{model.ProviderOpenAI: "sk-test"})
	reg := NewRegistry(cfg, keys, nil)

	spec, err := reg.ResolveID("openai/gpt-4o-mini")
	require.NoError(t, err)
	_, err = reg.Adapter(spec)
	assert.Error(t, err, "hosted adapters are not registered offline")

	for _, s := range reg.ListAvailable(context.Background()) {
		assert.True(t, offline.IsLocalProvider(s.Provider), "%s listed offline", s.ID())
	}

	store, err := storage.NewJSONStore(t.TempDir())
	require.NoError(t, err)
	a := New(cfg, reg, store, nil)
	assert.ErrorIs(t, a.Open("", "openai/gpt-4o-mini"), offline.ErrHostedBlocked)
	require.NoError(t, a.Open("", mockID))
	assert.ErrorIs(t, a.SetModel("openai/gpt-4o-mini"), offline.ErrHostedBlocked)
	assert.Equal(t, mockID, a.Spec().ID())
}

func TestNewRegistry_OfflineRejectsRemoteOllama(t *testing.T) {
	offline.SetOfflineMode(true)
	t.Cleanup(func() { offline.SetOfflineMode(false) })

	cfg := config.Default()
	cfg.Providers.Ollama.BaseURL = "http://gpu-box:11434"
	reg := NewRegistry(cfg, nil, nil)

	spec, err := reg.ResolveID("ollama/llama3.2")
	require.NoError(t, err)
	_, err = reg.Adapter(spec)
	assert.ErrorIs(t, err, offline.ErrNonLocalhost)
}

func TestPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Retry.MaxAttempts = 5
	cfg.Retry.BaseDelay = config.Duration{Duration: 250 * time.Millisecond}

	p := Policy(cfg)
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
	assert.Equal(t, 120*time.Second, p.AttemptTimeout)
}

// =============================================================================
// STORY FLOW
// =============================================================================

func TestApp_NoStory(t *testing.T) {
	a, _ := newTestApp(t, nil)

	_, err := a.Continue(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoStory)
	assert.ErrorIs(t, a.Save(), ErrNoStory)
	assert.False(t, a.Undo())
}

func TestApp_ContinueStripsCommentsAndAppends(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))

	_, err := a.Continue(context.Background(), "I wave.\n# remember the lantern")
	require.NoError(t, err)

	turns := a.Session().Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, model.RoleUser, turns[0].Role)
	assert.Equal(t, "I wave.", turns[0].Text)
	assert.Equal(t, model.RoleAI, turns[1].Role)
}

func TestApp_BlankOnEmptyStoryIntroduces(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))
	a.Session().SetTitle("The Cellar")

	res, err := a.Continue(context.Background(), "  ")
	require.NoError(t, err)

	turns := a.Session().Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, model.RoleAI, turns[0].Role)
	assert.Equal(t, res.Text, turns[0].Text)
}

func TestApp_UndoRedoRegenerate(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))
	ctx := context.Background()

	_, err := a.Continue(ctx, "I knock.")
	require.NoError(t, err)
	first := a.Session().Turns()[1].Text

	_, err = a.Regenerate(ctx)
	require.NoError(t, err)
	turns := a.Session().Turns()
	require.Len(t, turns, 2)
	assert.NotEqual(t, first, turns[1].Text)

	assert.True(t, a.Undo())
	assert.Equal(t, 1, a.Session().Len())
	assert.True(t, a.Redo())
	assert.Equal(t, 2, a.Session().Len())
	assert.False(t, a.Redo())
}

func TestApp_SaveAndReopen(t *testing.T) {
	a, store := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))
	require.NoError(t, a.SetTitle("  \"The Well\"\n"))
	_, err := a.Continue(context.Background(), "I look down.")
	require.NoError(t, err)

	require.NoError(t, a.Save())
	assert.False(t, a.Session().IsDirty())
	id := a.Session().ID()

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "The Well", list[0].Title)

	b, _ := newTestApp(t, nil)
	b.store = store
	require.NoError(t, b.Open(id, ""))
	assert.Equal(t, 2, b.Session().Len())
	assert.Equal(t, mockID, b.Spec().ID())
}

func TestApp_OpenMissingStory(t *testing.T) {
	a, _ := newTestApp(t, nil)
	err := a.Open("1b4e28ba-2fa1-11d2-883f-0016d3cca427", "")
	assert.ErrorIs(t, err, storage.ErrStoryNotFound)
}

func TestApp_SetModel(t *testing.T) {
	a, _ := newTestApp(t, map[string]string{model.ProviderMistral: "m-key"})
	require.NoError(t, a.Open("", mockID))

	require.NoError(t, a.SetModel("mistral/open-mistral-nemo"))
	assert.Equal(t, "mistral/open-mistral-nemo", a.Spec().ID())
	assert.Equal(t, "mistral/open-mistral-nemo", a.Session().Meta().Model)

	err := a.SetModel("mistral/nope")
	assert.ErrorIs(t, err, provider.ErrUnknownModel)
	assert.Equal(t, "mistral/open-mistral-nemo", a.Spec().ID())
}

func TestApp_ObserverSeesTransitions(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))

	var mu sync.Mutex
	var states []orchestrator.State
	a.SetObserver(func(tr orchestrator.Transition) {
		mu.Lock()
		states = append(states, tr.To)
		mu.Unlock()
	})

	_, err := a.Continue(context.Background(), "Go on.")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, orchestrator.StateBuildingPrompt, states[0])
	assert.Equal(t, orchestrator.StateSuccess, states[len(states)-1])
}

func TestApp_SuggestTitle(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))
	_, err := a.Continue(context.Background(), "A storm rises.")
	require.NoError(t, err)

	title, err := a.SuggestTitle(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, title)
	assert.Equal(t, title, a.Session().Title())
}

func TestApp_SuggestConceptSetsDetails(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))

	concept, err := a.SuggestConcept(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, concept)
	assert.Equal(t, concept, a.Session().Meta().Details)
	assert.Zero(t, a.Session().Len())
}

func TestApp_SetInstructions(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))

	tests := []struct {
		in   string
		want string
	}{
		{"  Write like a ballad.  ", "Write like a ballad."},
		{"% only a comment\n%another", ""},
		{"", ""},
	}
	for _, tt := range tests {
		require.NoError(t, a.SetInstructions(tt.in))
		if got := a.Session().Meta().Instructions; got != tt.want {
			t.Errorf("SetInstructions(%q) stored %q, want %q", tt.in, got, tt.want)
		}
	}

}

func TestApp_NewStoryHasDefaultDetails(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))

	sess := a.Session()
	assert.Equal(t, strings.TrimSpace(prompt.DefaultDetails), sess.Meta().Details)
	assert.False(t, sess.IsDirty(), "an untouched new story is not saved")
	assert.Contains(t, prompt.Details(sess.Meta()), "adventurous journey")
}

func TestApp_SetDetails(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))
	defaults := strings.TrimSpace(prompt.DefaultDetails)

	tests := []struct {
		in   string
		want string
	}{
		{" A drowned city. ", "A drowned city."},
		{"% only a comment\n%another", defaults},
		{"# a note to self", defaults},
		{"   ", defaults},
		{"% keep this comment\nThe tide is rising.", "% keep this comment\nThe tide is rising."},
	}
	for _, tt := range tests {
		require.NoError(t, a.SetDetails(tt.in))
		if got := a.Session().Meta().Details; got != tt.want {
			t.Errorf("SetDetails(%q) stored %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestApp_BlankOnEmptyStoryCancelledAddsNothing(t *testing.T) {
	a, _ := newTestApp(t, nil)
	require.NoError(t, a.Open("", mockID))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Continue(ctx, "")

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.Session().Len())
	assert.False(t, a.Orchestrator.Busy())
}
