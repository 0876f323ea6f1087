// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/provider"
)

// DefaultOpenAIURL is the base URL for the OpenAI API.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAI is the adapter for OpenAI chat completions.
type OpenAI struct {
	provider.Estimator
	c *client
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(cfg Config) *OpenAI {
	return &OpenAI{c: newClient(model.ProviderOpenAI, DefaultOpenAIURL, cfg)}
}

// KeyFingerprint returns a loggable fingerprint of the configured key.
func (o *OpenAI) KeyFingerprint() string {
	return o.c.keyFingerprint()
}

// Generate implements provider.Adapter.
func (o *OpenAI) Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error) {
	return chatCompletion(ctx, o.c, ChatRequest{
		Model:       req.Model.Name,
		Messages:    buildChatMessages(req),
		MaxTokens:   req.MaxOutputTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
	})
}
