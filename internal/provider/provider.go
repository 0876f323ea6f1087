// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider defines the polymorphic generation interface every
// backend implements, the shared error taxonomy, and the fallback token
// estimator.
//
// Concrete adapters live in internal/cloud (hosted APIs) and internal/ollama
// (local runner). The orchestrator depends only on this package.
package provider

import (
	"context"

	"github.com/jeranaias/storyrun-tui/internal/model"
)

// =============================================================================
// INTERFACES
// =============================================================================

// Counter counts tokens for a model. CountTokens must never fail.
type Counter interface {
	CountTokens(text string, spec model.ModelSpec) int
}

// ExactCounter is implemented by counters that can say whether their counts
// come from a provider-native tokenizer. Counters that do not implement it
// are treated as approximate.
type ExactCounter interface {
	Exact() bool
}

// Adapter is one generation backend.
//
// Generate returns a *Error for every provider failure so callers can decide
// on retries with IsRetryable. Implementations hold no state beyond a live
// connection handle and must be safe for sequential reuse after a cancelled
// call.
type Adapter interface {
	Counter
	Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error)
}

// IsExact reports whether c produces exact token counts.
func IsExact(c Counter) bool {
	if ec, ok := c.(ExactCounter); ok {
		return ec.Exact()
	}
	return false
}
