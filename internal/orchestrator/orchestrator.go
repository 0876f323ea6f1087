// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"

	"github.com/jeranaias/storyrun-tui/internal/budget"
	"github.com/jeranaias/storyrun-tui/internal/logging"
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/prompt"
	"github.com/jeranaias/storyrun-tui/internal/provider"
	"github.com/jeranaias/storyrun-tui/internal/session"
)

// ErrBusy is returned when a call is already in flight.
var ErrBusy = errors.New("a generation is already in progress")

// =============================================================================
// CONFIGURATION
// =============================================================================

// DefaultMaxOutputTokens is the completion length of one continuation.
const DefaultMaxOutputTokens = 100

// AdapterSource returns the adapter serving a model. *registry.Registry
// implements it.
type AdapterSource interface {
	Adapter(spec model.ModelSpec) (provider.Adapter, error)
}

// Config configures an Orchestrator. Zero values take defaults.
type Config struct {
	Policy Policy

	// MaxOutputTokens is requested from the provider and reserved in the budget
	MaxOutputTokens int

	// ReserveForOutput raises the budget reserve above MaxOutputTokens
	ReserveForOutput int

	// Sampling parameters; zero means provider default
	Temperature float64
	TopP        float64

	// Observer is told about every state change
	Observer Observer

	// Sleep replaces the real-time wait between attempts
	Sleep SleepFunc

	Logger *slog.Logger
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator runs one generation at a time.
type Orchestrator struct {
	adapters AdapterSource
	policy   Policy
	cfg      Config
	sleep    SleepFunc
	logger   *slog.Logger

	busy atomic.Bool
}

// New creates an orchestrator resolving adapters through src.
func New(src AdapterSource, cfg Config) *Orchestrator {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if cfg.ReserveForOutput < cfg.MaxOutputTokens {
		cfg.ReserveForOutput = cfg.MaxOutputTokens
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		adapters: src,
		policy:   cfg.Policy.withDefaults(),
		cfg:      cfg,
		sleep:    sleep,
		logger:   logger.With("component", "orchestrator"),
	}
}

// Policy returns the effective retry policy.
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Busy reports whether a call is in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

func (o *Orchestrator) acquire() bool {
	return o.busy.CompareAndSwap(false, true)
}

func (o *Orchestrator) release() {
	o.busy.Store(false)
}

// =============================================================================
// CONTINUATION
// =============================================================================

// ContinueStory appends userTurn to sess, asks the model for the next part of
// the story and appends it as an AI turn.
//
// A blank user turn is not recorded and means "just continue". On failure
// the user turn stays and no AI turn is added. When ctx is cancelled the
// error is ctx.Err() and any late provider reply is dropped.
func (o *Orchestrator) ContinueStory(ctx context.Context, sess *session.Session, spec model.ModelSpec, userTurn model.Turn) (model.GenerationResult, error) {
	if !o.acquire() {
		return model.GenerationResult{}, ErrBusy
	}
	defer o.release()

	m, err := o.newMachine()
	if err != nil {
		return model.GenerationResult{}, err
	}
	o.fire(m, evBuild, nil)

	history := sess.Turns()
	userTurn.Role = model.RoleUser
	userTurn.Text = strings.TrimSpace(prompt.Clean(userTurn.Text))

	adapter, adapterErr := o.adapters.Adapter(spec)
	if !userTurn.IsEmpty() {
		if adapterErr == nil && !userTurn.HasTokenCount() {
			userTurn = userTurn.WithTokenCount(adapter.CountTokens(userTurn.Text, spec))
		}
		sess.Append(userTurn)
	}
	if adapterErr != nil {
		return model.GenerationResult{}, o.failed(m, adapterErr)
	}

	return o.continueFrom(ctx, m, adapter, sess, spec, history, userTurn.Text)
}

// Regenerate replaces the newest AI turn with a fresh continuation.
// The replaced turn stays on the redo stack if generation fails.
func (o *Orchestrator) Regenerate(ctx context.Context, sess *session.Session, spec model.ModelSpec) (model.GenerationResult, error) {
	if !o.acquire() {
		return model.GenerationResult{}, ErrBusy
	}
	defer o.release()

	m, err := o.newMachine()
	if err != nil {
		return model.GenerationResult{}, err
	}
	o.fire(m, evBuild, nil)

	if last, ok := sess.Last(); ok && last.Role == model.RoleAI {
		sess.Undo()
	}

	adapter, err := o.adapters.Adapter(spec)
	if err != nil {
		return model.GenerationResult{}, o.failed(m, err)
	}
	return o.continueFrom(ctx, m, adapter, sess, spec, sess.Turns(), "")
}

// continueFrom builds the prompt from history plus userText, calls the
// provider and appends the AI turn. m must be in StateBuildingPrompt.
func (o *Orchestrator) continueFrom(ctx context.Context, m *attemptMachine, adapter provider.Adapter, sess *session.Session, spec model.ModelSpec, history []model.Turn, userText string) (model.GenerationResult, error) {
	meta := sess.Meta()
	instructions := prompt.Instructions(meta)

	// Everything but the history counts against the window up front.
	frame := prompt.Continuation(meta, nil, userText)
	reserve := o.cfg.ReserveForOutput +
		adapter.CountTokens(frame, spec) +
		adapter.CountTokens(instructions, spec)

	fit, err := budget.Plan(history, spec, reserve, adapter)
	if err != nil {
		return model.GenerationResult{}, o.failed(m, err)
	}
	if fit.Truncated() {
		logging.Attach(ctx, o.logger).Debug("history trimmed", "dropped", fit.Dropped, "kept", len(fit.Turns), "budget", fit.Budget)
	}

	req := model.GenerationRequest{
		Prompt:          prompt.Continuation(meta, fit.Turns, userText),
		Instructions:    instructions,
		MaxOutputTokens: o.cfg.MaxOutputTokens,
		Model:           spec,
		Temperature:     o.cfg.Temperature,
		TopP:            o.cfg.TopP,
	}

	res, err := o.generate(ctx, m, adapter, req)
	if err != nil {
		return model.GenerationResult{}, err
	}
	return o.appendReply(ctx, m, adapter, sess, spec, res)
}

// appendReply cleans res and appends it to sess as an AI turn. It runs
// while the slot is held. m must be in StateAwaitingProvider.
//
// A reply that is blank once cleaned is a refusal and is never appended.
func (o *Orchestrator) appendReply(ctx context.Context, m *attemptMachine, adapter provider.Adapter, sess *session.Session, spec model.ModelSpec, res model.GenerationResult) (model.GenerationResult, error) {
	log := logging.Attach(ctx, o.logger)
	if err := ctx.Err(); err != nil {
		log.Info("generation cancelled before append")
		o.fire(m, evFail, err)
		return model.GenerationResult{}, err
	}

	res.Text = strings.TrimSpace(prompt.Clean(res.Text))
	if res.Text == "" {
		return model.GenerationResult{}, o.failed(m, provider.NewError(provider.KindContentFiltered, spec.Provider, "model returned no text"))
	}

	tokens := res.CompletionTokens(adapter.CountTokens(res.Text, spec))
	sess.Append(model.NewAITurn(res.Text, tokens))

	if res.Usage != nil {
		log = log.With("usage_total", res.Usage.Total())
	}
	log.Debug("continuation appended", "tokens", tokens, "finish", string(res.FinishReason))

	o.fire(m, evSucceed, nil)
	return res, nil
}

// =============================================================================
// ATTEMPT LOOP
// =============================================================================

// generate calls the adapter until it succeeds, fails for good or runs out
// of attempts. m must be in StateBuildingPrompt. On success m is left in
// StateAwaitingProvider for the caller to finish.
func (o *Orchestrator) generate(ctx context.Context, m *attemptMachine, adapter provider.Adapter, req model.GenerationRequest) (model.GenerationResult, error) {
	log := logging.Attach(ctx, o.logger)
	for attempt := 1; ; attempt++ {
		m.counter.attempt = attempt
		o.fire(m, evCall, nil)

		res, err := o.attempt(ctx, adapter, req)
		if ctxErr := ctx.Err(); ctxErr != nil {
			// A reply that raced with cancellation is dropped.
			log.Info("generation cancelled", "attempt", attempt)
			o.fire(m, evFail, ctxErr)
			return model.GenerationResult{}, ctxErr
		}
		if err == nil {
			return res, nil
		}

		if !provider.IsRetryable(err) {
			return model.GenerationResult{}, o.failed(m, err)
		}
		if attempt >= o.policy.MaxAttempts {
			return model.GenerationResult{}, o.failed(m, &ExhaustedError{Attempts: attempt, Err: err})
		}

		delay := o.policy.Delay(attempt, provider.RetryAfterOf(err))
		log.Warn("provider call failed, retrying",
			"attempt", attempt,
			"kind", provider.KindOf(err).String(),
			"delay", delay)
		o.fireDelay(m, err, delay)

		if err := o.sleep(ctx, delay); err != nil {
			o.fire(m, evFail, err)
			return model.GenerationResult{}, err
		}
	}
}

// attempt makes one provider call bounded by the attempt timeout.
// Errors that are not provider errors become Unavailable.
func (o *Orchestrator) attempt(ctx context.Context, adapter provider.Adapter, req model.GenerationRequest) (model.GenerationResult, error) {
	t := timeout.New[model.GenerationResult](timeout.Config{
		DefaultTimeout: o.policy.AttemptTimeout,
	})
	res, err := t.Execute(ctx, o.policy.AttemptTimeout, func(actx context.Context) (model.GenerationResult, error) {
		return adapter.Generate(actx, req)
	})
	if err == nil || ctx.Err() != nil {
		return res, err
	}

	var perr *provider.Error
	if errors.As(err, &perr) {
		return res, err
	}
	return res, provider.Wrap(provider.KindUnavailable, req.Model.Provider, err, "provider did not answer in time")
}

// =============================================================================
// STATE HELPERS
// =============================================================================

func (o *Orchestrator) newMachine() (*attemptMachine, error) {
	return newAttemptMachine(o.policy.MaxAttempts)
}

// failed moves m to StateFailed and returns err.
func (o *Orchestrator) failed(m *attemptMachine, err error) error {
	o.logger.Info("generation failed", "kind", provider.KindOf(err).String(), "error", err)
	o.fire(m, evFail, err)
	return err
}

func (o *Orchestrator) fire(m *attemptMachine, event string, cause error) {
	tr, err := m.send(event)
	if err != nil {
		o.logger.Error("state transition rejected", "error", err)
		return
	}
	tr.Err = cause
	o.publish(tr)
}

func (o *Orchestrator) fireDelay(m *attemptMachine, cause error, delay time.Duration) {
	tr, err := m.send(evRetry)
	if err != nil {
		o.logger.Error("state transition rejected", "error", err)
		return
	}
	tr.Err = cause
	tr.Delay = delay
	o.publish(tr)
}

func (o *Orchestrator) publish(tr Transition) {
	if o.cfg.Observer != nil {
		o.cfg.Observer(tr)
	}
}
