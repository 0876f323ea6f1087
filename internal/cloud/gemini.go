// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/provider"
)

// DefaultGeminiURL is the base URL for the Gemini API.
const DefaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"

// =============================================================================
// GEMINI WIRE FORMAT
// =============================================================================

// GeminiRequest is the generateContent request body.
type GeminiRequest struct {
	Contents          []GeminiContent         `json:"contents"`
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings    []GeminiSafetySetting   `json:"safetySettings,omitempty"`
}

// GeminiContent is a role plus text parts.
type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart is a single text part.
type GeminiPart struct {
	Text string `json:"text,omitempty"`
}

// GeminiGenerationConfig holds sampling parameters.
type GeminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
}

// GeminiSafetySetting sets the block threshold for one harm category.
type GeminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

// GeminiResponse is the generateContent response body.
type GeminiResponse struct {
	Candidates []struct {
		Content      GeminiContent `json:"content"`
		FinishReason string        `json:"finishReason,omitempty"`
	} `json:"candidates,omitempty"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
}

// geminiSafetySettings turns off provider-side blocking for fiction.
var geminiSafetySettings = []GeminiSafetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_NONE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_NONE"},
}

// =============================================================================
// ADAPTER
// =============================================================================

// Gemini is the adapter for Google Gemini generateContent.
type Gemini struct {
	provider.Estimator
	c *client
}

// NewGemini creates a Gemini adapter.
func NewGemini(cfg Config) *Gemini {
	return &Gemini{c: newClient(model.ProviderGemini, DefaultGeminiURL, cfg)}
}

// KeyFingerprint returns a loggable fingerprint of the configured key.
func (g *Gemini) KeyFingerprint() string {
	return g.c.keyFingerprint()
}

// Generate implements provider.Adapter.
// SECURITY: The key travels in the x-goog-api-key header, not the query string.
func (g *Gemini) Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error) {
	if err := g.c.requireKey(); err != nil {
		return model.GenerationResult{}, err
	}

	body := GeminiRequest{
		Contents: []GeminiContent{{Role: "user", Parts: []GeminiPart{{Text: req.Prompt}}}},
		GenerationConfig: &GeminiGenerationConfig{
			MaxOutputTokens: req.MaxOutputTokens,
			Temperature:     req.Temperature,
			TopP:            req.TopP,
		},
		SafetySettings: geminiSafetySettings,
	}
	if strings.TrimSpace(req.Instructions) != "" {
		body.SystemInstruction = &GeminiContent{Parts: []GeminiPart{{Text: req.Instructions}}}
	}

	path := "/models/" + url.PathEscape(req.Model.Name) + ":generateContent"
	raw, err := g.c.postJSON(ctx, path, body, map[string]string{
		"x-goog-api-key": g.c.apiKey,
	})
	if err != nil {
		return model.GenerationResult{}, err
	}

	var resp GeminiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return model.GenerationResult{}, provider.Wrap(provider.KindUnavailable, g.c.id, err, "failed to parse response")
	}
	return g.normalize(resp)
}

// normalize maps a decoded response onto a result or a content-filter error.
func (g *Gemini) normalize(resp GeminiResponse) (model.GenerationResult, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return model.GenerationResult{}, provider.NewError(provider.KindContentFiltered, g.c.id,
			"prompt blocked (%s)", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return model.GenerationResult{}, emptyResult(g.c.id, "no candidates")
	}

	cand := resp.Candidates[0]
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}
	text := sb.String()
	finish := geminiFinishReason(cand.FinishReason)

	if strings.TrimSpace(text) == "" {
		return model.GenerationResult{}, emptyResult(g.c.id, cand.FinishReason)
	}

	result := model.GenerationResult{Text: text, FinishReason: finish}
	if resp.UsageMetadata != nil {
		result.Usage = &model.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return result, nil
}

// geminiFinishReason normalizes Gemini finishReason values.
func geminiFinishReason(reason string) model.FinishReason {
	switch reason {
	case "MAX_TOKENS":
		return model.FinishTruncated
	case "SAFETY", "RECITATION", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
		return model.FinishFiltered
	default:
		return model.FinishComplete
	}
}
