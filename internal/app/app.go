// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/storyrun-tui/internal/config"
	"github.com/jeranaias/storyrun-tui/internal/logging"
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/offline"
	"github.com/jeranaias/storyrun-tui/internal/orchestrator"
	"github.com/jeranaias/storyrun-tui/internal/prompt"
	"github.com/jeranaias/storyrun-tui/internal/registry"
	"github.com/jeranaias/storyrun-tui/internal/session"
	"github.com/jeranaias/storyrun-tui/internal/storage"
)

// ErrNoStory is returned by operations that need an open story.
var ErrNoStory = errors.New("no story open")

// =============================================================================
// APP
// =============================================================================

// App is one open story plus the services that act on it.
// It is safe for concurrent use; generation is single-flight.
type App struct {
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator

	store  storage.Store
	logger *slog.Logger

	mu       sync.RWMutex
	sess     *session.Session
	spec     model.ModelSpec
	observer orchestrator.Observer
}

// New creates an App. The orchestrator is built from cfg and publishes
// transitions to whatever observer is set with SetObserver.
func New(cfg *config.Config, reg *registry.Registry, store storage.Store, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		Registry: reg,
		store:    store,
		logger:   logger.With("component", "app"),
	}
	a.Orchestrator = orchestrator.New(reg, orchestrator.Config{
		Policy:           Policy(cfg),
		MaxOutputTokens:  cfg.General.MaxOutputTokens,
		ReserveForOutput: cfg.General.ReserveForOutput,
		Temperature:      cfg.Generation.Temperature,
		TopP:             cfg.Generation.TopP,
		Observer:         a.notify,
		Logger:           logger,
	})
	return a
}

// SetObserver sets the receiver of orchestrator transitions.
func (a *App) SetObserver(o orchestrator.Observer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.observer = o
}

func (a *App) notify(tr orchestrator.Transition) {
	a.mu.RLock()
	o := a.observer
	a.mu.RUnlock()
	if o != nil {
		o(tr)
	}
}

// =============================================================================
// STORY LIFECYCLE
// =============================================================================

// Open loads storyID, or starts a new story when storyID is empty.
// modelID picks the model for a new story and overrides a loaded story's
// model when non-empty.
func (a *App) Open(storyID, modelID string) error {
	var sess *session.Session
	if storyID != "" {
		snap, err := a.store.Load(storyID)
		if err != nil {
			return fmt.Errorf("open story: %w", err)
		}
		sess, err = session.FromSnapshot(snap)
		if err != nil {
			return fmt.Errorf("open story: %w", err)
		}
		if modelID == "" {
			modelID = sess.Meta().Model
		}
	} else {
		sess = session.New(modelID)
		sess.SetDetails(prompt.DefaultDetails)
		// An untouched new story is not worth saving.
		sess.MarkClean()
	}

	spec, err := a.Registry.ResolveID(modelID)
	if err != nil {
		return err
	}
	if err := offline.CheckModelAllowed(spec); err != nil {
		return err
	}
	if sess.Meta().Model != spec.ID() {
		sess.SetModel(spec.ID())
	}

	a.mu.Lock()
	a.sess = sess
	a.spec = spec
	a.mu.Unlock()
	a.logger.Info("story opened", "story_id", sess.ID(), "model", spec.ID(), "turns", sess.Len())
	return nil
}

// Session returns the open story.
func (a *App) Session() *session.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sess
}

// Spec returns the model the story is generated with.
func (a *App) Spec() model.ModelSpec {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.spec
}

// SetModel switches the story to another "provider/name" model.
func (a *App) SetModel(id string) error {
	spec, err := a.Registry.ResolveID(id)
	if err != nil {
		return err
	}
	if err := offline.CheckModelAllowed(spec); err != nil {
		return err
	}
	a.mu.Lock()
	a.spec = spec
	sess := a.sess
	a.mu.Unlock()
	if sess != nil {
		sess.SetModel(spec.ID())
	}
	return nil
}

// Models lists the models usable right now.
func (a *App) Models(ctx context.Context) []model.ModelSpec {
	return a.Registry.ListAvailable(ctx)
}

func (a *App) current() (*session.Session, model.ModelSpec, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.sess == nil {
		return nil, model.ModelSpec{}, ErrNoStory
	}
	return a.sess, a.spec, nil
}

func (a *App) withStory(ctx context.Context, sess *session.Session, spec model.ModelSpec) context.Context {
	ctx = logging.WithContext(ctx, logging.StoryIDKey, sess.ID())
	return logging.WithContext(ctx, logging.ModelKey, spec.ID())
}

// =============================================================================
// GENERATION
// =============================================================================

// Continue adds the player's text and generates the next part of the story.
// Lines starting with "#" are dropped from the text first. Blank text on an
// empty story asks for an introduction instead.
func (a *App) Continue(ctx context.Context, text string) (model.GenerationResult, error) {
	sess, spec, err := a.current()
	if err != nil {
		return model.GenerationResult{}, err
	}
	ctx = a.withStory(ctx, sess, spec)

	text = strings.TrimSpace(prompt.StripUserComments(text))
	if text == "" && sess.Len() == 0 {
		return a.Orchestrator.Introduce(ctx, sess, spec)
	}
	return a.Orchestrator.ContinueStory(ctx, sess, spec, model.NewUserTurn(text))
}

// Regenerate replaces the newest AI turn.
func (a *App) Regenerate(ctx context.Context) (model.GenerationResult, error) {
	sess, spec, err := a.current()
	if err != nil {
		return model.GenerationResult{}, err
	}
	return a.Orchestrator.Regenerate(a.withStory(ctx, sess, spec), sess, spec)
}

// SuggestTitle asks the model for a title based on the story so far and
// sets it.
func (a *App) SuggestTitle(ctx context.Context) (string, error) {
	sess, spec, err := a.current()
	if err != nil {
		return "", err
	}
	var concept strings.Builder
	for _, t := range sess.Turns() {
		concept.WriteString(t.Text)
		concept.WriteString("\n")
	}
	if strings.TrimSpace(concept.String()) == "" {
		concept.WriteString(prompt.Details(sess.Meta()))
	}
	title, err := a.Orchestrator.SuggestTitle(a.withStory(ctx, sess, spec), spec, concept.String())
	if err != nil {
		return "", err
	}
	if title != "" {
		sess.SetTitle(title)
	}
	return title, nil
}

// SuggestConcept asks the model for a story idea and keeps it as the story
// details, which every continuation prompt carries.
func (a *App) SuggestConcept(ctx context.Context) (string, error) {
	sess, spec, err := a.current()
	if err != nil {
		return "", err
	}
	concept, err := a.Orchestrator.SuggestConcept(a.withStory(ctx, sess, spec), spec)
	if err != nil {
		return "", err
	}
	if concept != "" {
		sess.SetDetails(concept)
	}
	return concept, nil
}

// =============================================================================
// EDITING
// =============================================================================

// Undo removes the newest turn. It reports false when there is nothing to undo
// or a call is in flight.
func (a *App) Undo() bool {
	sess, _, err := a.current()
	if err != nil || a.Orchestrator.Busy() {
		return false
	}
	_, ok := sess.Undo()
	return ok
}

// Redo restores the most recently undone turn.
func (a *App) Redo() bool {
	sess, _, err := a.current()
	if err != nil || a.Orchestrator.Busy() {
		return false
	}
	_, ok := sess.Redo()
	return ok
}

// SetTitle sets the story title, cleaned like a suggested one.
func (a *App) SetTitle(title string) error {
	sess, _, err := a.current()
	if err != nil {
		return err
	}
	sess.SetTitle(prompt.CleanTitle(title))
	return nil
}

// SetDetails replaces the story details block. Text that is empty once "%"
// and "#" comment lines are removed restores the default details.
func (a *App) SetDetails(text string) error {
	sess, _, err := a.current()
	if err != nil {
		return err
	}
	if prompt.Details(model.StoryMeta{Details: text}) == "" {
		text = prompt.DefaultDetails
	}
	sess.SetDetails(strings.TrimSpace(text))
	return nil
}

// SetInstructions replaces the writing instructions. Text that is empty once
// "%" comment lines are removed restores the default instructions.
func (a *App) SetInstructions(text string) error {
	sess, _, err := a.current()
	if err != nil {
		return err
	}
	if strings.TrimSpace(prompt.StripComments(text)) == "" {
		text = ""
	}
	sess.SetInstructions(strings.TrimSpace(text))
	return nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Save writes the story if it changed since the last save.
func (a *App) Save() error {
	sess, _, err := a.current()
	if err != nil {
		return err
	}
	if !sess.IsDirty() {
		return nil
	}
	if err := a.store.Save(sess.Snapshot()); err != nil {
		return fmt.Errorf("save story: %w", err)
	}
	sess.MarkClean()
	a.logger.Debug("story saved", "story_id", sess.ID(), "turns", sess.Len())
	return nil
}
