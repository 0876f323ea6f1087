// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/provider"
)

// =============================================================================
// CHAT COMPLETIONS WIRE FORMAT
// =============================================================================

// OpenAI and Mistral share the chat completions request/response shape.

// ChatMessage is a single message in a chat completions request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// Refusal is set by OpenAI instead of Content when the model declines
	Refusal string `json:"refusal,omitempty"`
}

// ChatRequest is the chat completions request body.
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`

	// SafePrompt is Mistral-only and left nil for OpenAI
	SafePrompt *bool `json:"safe_prompt,omitempty"`
}

// ChatResponse is the chat completions response body.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// buildChatMessages puts the instructions in a system message ahead of the prompt.
func buildChatMessages(req model.GenerationRequest) []ChatMessage {
	msgs := make([]ChatMessage, 0, 2)
	if strings.TrimSpace(req.Instructions) != "" {
		msgs = append(msgs, ChatMessage{Role: "system", Content: req.Instructions})
	}
	msgs = append(msgs, ChatMessage{Role: "user", Content: req.Prompt})
	return msgs
}

// chatFinishReason normalizes finish_reason values from both providers.
func chatFinishReason(reason string) model.FinishReason {
	switch reason {
	case "length", "model_length":
		return model.FinishTruncated
	case "content_filter":
		return model.FinishFiltered
	default:
		return model.FinishComplete
	}
}

// chatCompletion runs one chat completions call and normalizes the result.
func chatCompletion(ctx context.Context, c *client, body ChatRequest) (model.GenerationResult, error) {
	if err := c.requireKey(); err != nil {
		return model.GenerationResult{}, err
	}

	raw, err := c.postJSON(ctx, "/chat/completions", body, map[string]string{
		"Authorization": "Bearer " + c.apiKey,
	})
	if err != nil {
		return model.GenerationResult{}, err
	}

	var resp ChatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return model.GenerationResult{}, provider.Wrap(provider.KindUnavailable, c.id, err, "failed to parse response")
	}
	if len(resp.Choices) == 0 {
		return model.GenerationResult{}, emptyResult(c.id, "no choices")
	}

	choice := resp.Choices[0]
	finish := chatFinishReason(choice.FinishReason)
	text := choice.Message.Content
	if strings.TrimSpace(text) == "" {
		// A refusal arrives with finish_reason "stop" and no content.
		reason := strings.TrimSpace(choice.Message.Refusal)
		if reason == "" {
			reason = choice.FinishReason
		}
		return model.GenerationResult{}, emptyResult(c.id, reason)
	}

	result := model.GenerationResult{Text: text, FinishReason: finish}
	if resp.Usage != nil {
		result.Usage = &model.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		}
	}
	return result, nil
}
