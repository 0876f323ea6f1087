// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"errors"
	"strings"

	"github.com/jeranaias/storyrun-tui/internal/logging"
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/provider"
)

// =============================================================================
// PROVIDER ADAPTER
// =============================================================================

// Adapter puts a local Ollama server behind provider.Adapter.
type Adapter struct {
	provider.Estimator
	client *Client
}

// NewAdapter creates an adapter with its own client.
func NewAdapter(config *ClientConfig) *Adapter {
	return &Adapter{client: NewClientWithConfig(config)}
}

// Client returns the underlying API client.
func (a *Adapter) Client() *Client {
	return a.client
}

// Available reports whether the server answers. The registry uses it to hide
// local models when Ollama is not installed or not started.
func (a *Adapter) Available(ctx context.Context) error {
	if err := a.client.CheckRunning(ctx); err != nil {
		return toProviderError(err)
	}
	return nil
}

// HasModel reports whether name is pulled on the server. The registry uses
// it to list only installed local models.
func (a *Adapter) HasModel(ctx context.Context, name string) (bool, error) {
	has, err := a.client.HasModel(ctx, name)
	if err != nil {
		return false, toProviderError(err)
	}
	return has, nil
}

// Generate implements provider.Adapter.
func (a *Adapter) Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error) {
	messages := make([]Message, 0, 2)
	if strings.TrimSpace(req.Instructions) != "" {
		messages = append(messages, Message{Role: "system", Content: req.Instructions})
	}
	messages = append(messages, Message{Role: "user", Content: req.Prompt})

	opts := &Options{
		Temperature: req.Temperature,
		TopP:        req.TopP,
		NumCtx:      req.Model.ContextWindow,
		NumPredict:  req.MaxOutputTokens,
	}

	resp, err := a.client.Chat(ctx, req.Model.Name, messages, opts)
	if err != nil {
		return model.GenerationResult{}, toProviderError(err)
	}

	logging.Attach(ctx, logging.Component("ollama")).Debug("chat finished",
		"done_reason", resp.DoneReason,
		"tokens_per_sec", resp.TokensPerSecond(),
		"total", resp.TotalTime())

	text := resp.Message.Content
	if strings.TrimSpace(text) == "" {
		return model.GenerationResult{}, provider.NewError(provider.KindContentFiltered, model.ProviderOllama,
			"no text returned (%s)", resp.DoneReason)
	}

	finish := model.FinishComplete
	if resp.DoneReason == "length" {
		finish = model.FinishTruncated
	}

	result := model.GenerationResult{Text: text, FinishReason: finish}
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		result.Usage = &model.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
		}
	}
	return result, nil
}

// toProviderError maps client failures onto the shared taxonomy.
func toProviderError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	switch {
	case IsModelNotFound(err):
		return provider.Wrap(provider.KindModel, model.ProviderOllama, err, "model not installed, run `ollama pull`")
	case IsNotRunning(err), IsTimeout(err):
		return provider.Wrap(provider.KindUnavailable, model.ProviderOllama, err, "local runner unavailable")
	}

	var ce *ClientError
	if !errors.As(err, &ce) {
		return provider.Wrap(provider.KindUnavailable, model.ProviderOllama, err, "request failed")
	}
	switch ce.Type {
	case ErrTypeServer, ErrTypeInvalidResponse:
		return provider.Wrap(provider.KindUnavailable, model.ProviderOllama, ce, "local runner unavailable")
	default:
		return provider.Wrap(provider.KindModel, model.ProviderOllama, ce, "request rejected")
	}
}
