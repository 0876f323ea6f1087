// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/provider"
)

// DefaultMistralURL is the base URL for the Mistral API.
const DefaultMistralURL = "https://api.mistral.ai/v1"

// Mistral is the adapter for Mistral chat completions.
type Mistral struct {
	provider.Estimator
	c *client
}

// NewMistral creates a Mistral adapter.
func NewMistral(cfg Config) *Mistral {
	return &Mistral{c: newClient(model.ProviderMistral, DefaultMistralURL, cfg)}
}

// KeyFingerprint returns a loggable fingerprint of the configured key.
func (m *Mistral) KeyFingerprint() string {
	return m.c.keyFingerprint()
}

// Generate implements provider.Adapter.
// safe_prompt is always sent as false.
func (m *Mistral) Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error) {
	safe := false
	return chatCompletion(ctx, m.c, ChatRequest{
		Model:       req.Model.Name,
		Messages:    buildChatMessages(req),
		MaxTokens:   req.MaxOutputTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		SafePrompt:  &safe,
	})
}
