// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"context"
	"sync"
	"time"

	"github.com/jeranaias/storyrun-tui/internal/model"
)

// =============================================================================
// MOCK ADAPTER
// =============================================================================

// DefaultMockReplies are the canned continuations of the offline mock model.
var DefaultMockReplies = []string{
	"The guy asked around.",
	"The girl looked at you.",
	`"What?!" she asked, looking at you.`,
	`"Well well well," he said.`,
}

// Step is one scripted outcome for the Mock adapter.
type Step struct {
	Result model.GenerationResult
	Err    error
}

// Mock is an offline adapter. It replays Script first, then cycles through
// Replies. It is used for the "mock/mock" catalog model and in tests.
//
// Mock is safe for concurrent use.
type Mock struct {
	Estimator

	// Replies are returned in order once Script is exhausted
	Replies []string

	// Script holds outcomes consumed one per call
	Script []Step

	// Delay simulates provider latency; it honors context cancellation
	Delay time.Duration

	mu       sync.Mutex
	calls    int
	requests []model.GenerationRequest
}

// NewMock creates a mock adapter with the default replies.
func NewMock() *Mock {
	return &Mock{Replies: DefaultMockReplies}
}

// Generate implements Adapter.
func (m *Mock) Generate(ctx context.Context, req model.GenerationRequest) (model.GenerationResult, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	var step *Step
	if len(m.Script) > 0 {
		s := m.Script[0]
		m.Script = m.Script[1:]
		step = &s
	}
	n := m.calls
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return model.GenerationResult{}, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return model.GenerationResult{}, err
	}

	if step != nil {
		return step.Result, step.Err
	}

	replies := m.Replies
	if len(replies) == 0 {
		replies = DefaultMockReplies
	}
	text := replies[(n-1)%len(replies)]
	return model.GenerationResult{
		Text:         text,
		FinishReason: model.FinishComplete,
		Usage: &model.Usage{
			PromptTokens:     EstimateTokens(req.Prompt),
			CompletionTokens: EstimateTokens(text),
		},
	}, nil
}

// Calls returns how many times Generate was invoked.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of every request received.
func (m *Mock) Requests() []model.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.GenerationRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
