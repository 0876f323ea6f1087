// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"
)

// =============================================================================
// STATES
// =============================================================================

// State is a step of one continuation call.
type State string

const (
	StateIdle             State = "idle"
	StateBuildingPrompt   State = "building_prompt"
	StateAwaitingProvider State = "awaiting_provider"
	StateRetrying         State = "retrying"
	StateSuccess          State = "success"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transitions follow s within a call.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

const (
	evBuild   = "build"
	evCall    = "call"
	evSucceed = "succeed"
	evRetry   = "retry"
	evFail    = "fail"
)

// =============================================================================
// TRANSITIONS
// =============================================================================

// Transition is published to the Observer after every state change.
type Transition struct {
	From State
	To   State

	// Attempt is the current provider call, starting at 1; zero before the first
	Attempt     int
	MaxAttempts int

	// Delay is the wait before the next attempt, set when To is StateRetrying
	Delay time.Duration

	// Err is the error that caused Retrying or Failed
	Err error
}

// String renders the transition for status lines, e.g. "retrying 2/3 in 4s".
func (t Transition) String() string {
	switch t.To {
	case StateRetrying:
		return fmt.Sprintf("retrying %d/%d in %s", t.Attempt+1, t.MaxAttempts, t.Delay.Round(time.Second))
	case StateAwaitingProvider:
		if t.Attempt > 1 {
			return fmt.Sprintf("waiting for provider (attempt %d/%d)", t.Attempt, t.MaxAttempts)
		}
		return "waiting for provider"
	case StateBuildingPrompt:
		return "building prompt"
	case StateFailed:
		return "failed"
	case StateSuccess:
		return "done"
	default:
		return string(t.To)
	}
}

// Observer receives transitions synchronously on the calling goroutine.
type Observer func(Transition)

// =============================================================================
// ATTEMPT MACHINE
// =============================================================================

// attemptCounter is shared with the retry guard.
type attemptCounter struct {
	attempt int
	max     int
}

type machineContext struct {
	counter *attemptCounter
}

// attemptMachine tracks one call through the states above.
type attemptMachine struct {
	interpreter *statekit.Interpreter[machineContext]
	counter     *attemptCounter
}

func newAttemptMachine(maxAttempts int) (*attemptMachine, error) {
	counter := &attemptCounter{max: maxAttempts}

	builder := statekit.NewMachine[machineContext]("continuation").
		WithInitial(statekit.StateID(StateIdle)).
		WithContext(machineContext{counter: counter}).
		WithGuard("attemptsLeft", func(c machineContext, _ statekit.Event) bool {
			return c.counter.attempt < c.counter.max
		})

	builder.State(statekit.StateID(StateIdle)).
		On(evBuild).Target(statekit.StateID(StateBuildingPrompt)).
		Done()

	builder.State(statekit.StateID(StateBuildingPrompt)).
		On(evCall).Target(statekit.StateID(StateAwaitingProvider)).
		On(evFail).Target(statekit.StateID(StateFailed)).
		Done()

	builder.State(statekit.StateID(StateAwaitingProvider)).
		On(evSucceed).Target(statekit.StateID(StateSuccess)).
		On(evRetry).Target(statekit.StateID(StateRetrying)).Guard("attemptsLeft").
		On(evFail).Target(statekit.StateID(StateFailed)).
		Done()

	builder.State(statekit.StateID(StateRetrying)).
		On(evCall).Target(statekit.StateID(StateAwaitingProvider)).
		On(evFail).Target(statekit.StateID(StateFailed)).
		Done()

	builder.State(statekit.StateID(StateSuccess)).Done()
	builder.State(statekit.StateID(StateFailed)).Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build continuation state machine: %w", err)
	}

	interpreter := statekit.NewInterpreter(machine)
	interpreter.Start()

	return &attemptMachine{interpreter: interpreter, counter: counter}, nil
}

// Current returns the current state.
func (m *attemptMachine) Current() State {
	return State(m.interpreter.State().Value)
}

// send fires event and returns the transition, or an error when the event is
// not allowed in the current state.
func (m *attemptMachine) send(event string) (Transition, error) {
	before := m.Current()
	m.interpreter.Send(statekit.Event{Type: statekit.EventType(event)})
	after := m.Current()

	tr := Transition{
		From:        before,
		To:          after,
		Attempt:     m.counter.attempt,
		MaxAttempts: m.counter.max,
	}
	if before == after {
		return tr, fmt.Errorf("event %q not allowed in state %q", event, before)
	}
	return tr, nil
}
