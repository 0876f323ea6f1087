// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package budget fits story history into a model's context window.
//
// History is trimmed from the oldest end, whole turns at a time. The newest
// turns are always the ones kept.
package budget

import (
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/provider"
)

// =============================================================================
// HEADROOM
// =============================================================================

// HeadroomPercent of the context window is held back when the token counter
// is an estimate.
const HeadroomPercent = 10

// Headroom returns the safety margin for spec under counter.
// Exact counters get no margin.
func Headroom(spec model.ModelSpec, counter provider.Counter) int {
	if provider.IsExact(counter) || spec.ContextWindow <= 0 {
		return 0
	}
	return (spec.ContextWindow*HeadroomPercent + 99) / 100
}

// =============================================================================
// FIT RESULT
// =============================================================================

// Fit describes one trimming decision.
type Fit struct {
	// Turns is the kept suffix of the input, oldest first
	Turns []model.Turn

	// Dropped is the number of leading turns left out
	Dropped int

	// Used is the token total of Turns
	Used int

	// Budget is the token allowance Turns had to fit into
	Budget int
}

// Truncated reports whether any turn was dropped.
func (f Fit) Truncated() bool {
	return f.Dropped > 0
}

// =============================================================================
// FITTING
// =============================================================================

// FitHistory returns the longest suffix of turns whose token total plus
// reserve fits in spec.ContextWindow. See Plan for details.
func FitHistory(turns []model.Turn, spec model.ModelSpec, reserve int, counter provider.Counter) ([]model.Turn, error) {
	f, err := Plan(turns, spec, reserve, counter)
	if err != nil {
		return nil, err
	}
	return f.Turns, nil
}

// Plan walks turns newest to oldest and keeps each whole turn while it fits.
// It stops at the first turn that does not fit, so the kept turns are always
// contiguous with the end of the story.
//
// When reserve plus headroom leaves no room at all, Plan returns an empty fit
// and an ErrInsufficientBudget error.
func Plan(turns []model.Turn, spec model.ModelSpec, reserve int, counter provider.Counter) (Fit, error) {
	if counter == nil {
		counter = provider.Estimator{}
	}
	if reserve < 0 {
		reserve = 0
	}

	if reserve >= spec.ContextWindow {
		return Fit{Turns: []model.Turn{}, Dropped: len(turns)}, provider.NewError(provider.KindInsufficientBudget, spec.Provider,
			"reserve of %d tokens does not fit the %d token context of %s", reserve, spec.ContextWindow, spec.ID())
	}

	budget := spec.ContextWindow - reserve - Headroom(spec, counter)
	if budget <= 0 {
		return Fit{Turns: []model.Turn{}, Dropped: len(turns)}, provider.NewError(provider.KindInsufficientBudget, spec.Provider,
			"no room left for history in the %d token context of %s", spec.ContextWindow, spec.ID())
	}

	used := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		n := counter.CountTokens(turns[i].Text, spec)
		if used+n > budget {
			break
		}
		used += n
		start = i
	}

	kept := make([]model.Turn, len(turns)-start)
	copy(kept, turns[start:])

	return Fit{
		Turns:   kept,
		Dropped: start,
		Used:    used,
		Budget:  budget,
	}, nil
}
