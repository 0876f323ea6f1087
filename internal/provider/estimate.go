// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"unicode/utf8"

	"github.com/jeranaias/storyrun-tui/internal/model"
)

// =============================================================================
// FALLBACK TOKEN ESTIMATION
// =============================================================================

const (
	// CharsPerToken is the fallback ratio. English prose averages closer to
	// four characters per token, so three over-counts on purpose.
	CharsPerToken = 3

	// TurnOverhead covers role markers and separators added around each turn.
	TurnOverhead = 4
)

// EstimateTokens returns a deterministic, high-side token estimate for text.
// Empty text costs nothing.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n+CharsPerToken-1)/CharsPerToken + TurnOverhead
}

// Estimator is a Counter backed by EstimateTokens.
// Adapters without a native tokenizer embed it.
type Estimator struct{}

// CountTokens implements Counter.
func (Estimator) CountTokens(text string, _ model.ModelSpec) int {
	return EstimateTokens(text)
}

// Exact implements ExactCounter.
func (Estimator) Exact() bool {
	return false
}
