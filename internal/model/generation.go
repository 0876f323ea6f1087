// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// GENERATION REQUEST
// =============================================================================

// GenerationRequest is a provider-neutral generation call.
// It is built fresh for every call and never retained.
type GenerationRequest struct {
	// Prompt is the full story prompt sent as the user message
	Prompt string

	// Instructions is the system-level guidance, empty for none
	Instructions string

	// MaxOutputTokens caps the completion length
	MaxOutputTokens int

	// Model is the resolved target model
	Model ModelSpec

	// Sampling parameters; zero means provider default
	Temperature float64
	TopP        float64
}

// =============================================================================
// GENERATION RESULT
// =============================================================================

// FinishReason explains why the provider stopped generating.
type FinishReason string

const (
	FinishComplete  FinishReason = "complete"
	FinishTruncated FinishReason = "truncated"
	FinishFiltered  FinishReason = "filtered"
)

// Usage reports provider-counted tokens for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Total returns prompt plus completion tokens.
func (u Usage) Total() int {
	return u.PromptTokens + u.CompletionTokens
}

// GenerationResult is the normalized outcome of a successful call.
type GenerationResult struct {
	Text         string
	FinishReason FinishReason

	// Usage is nil when the provider did not report token counts
	Usage *Usage
}

// CompletionTokens returns the completion token count, or fallback when unknown.
func (r GenerationResult) CompletionTokens(fallback int) int {
	if r.Usage == nil || r.Usage.CompletionTokens <= 0 {
		return fallback
	}
	return r.Usage.CompletionTokens
}
