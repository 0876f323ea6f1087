// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"context"
	"strings"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/prompt"
	"github.com/jeranaias/storyrun-tui/internal/session"
)

// =============================================================================
// HELPER PROMPTS
// =============================================================================

// SuggestConcept asks the model for a story idea.
func (o *Orchestrator) SuggestConcept(ctx context.Context, spec model.ModelSpec) (string, error) {
	text, err := o.ask(ctx, spec, prompt.Concept(), prompt.Instructions(model.StoryMeta{}), prompt.ConceptMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// SuggestTitle asks the model for a title matching concept.
// The reply is flattened to one line of at most prompt.TitleMaxRunes runes.
func (o *Orchestrator) SuggestTitle(ctx context.Context, spec model.ModelSpec, concept string) (string, error) {
	text, err := o.ask(ctx, spec, prompt.Title(concept), prompt.Instructions(model.StoryMeta{}), prompt.TitleMaxTokens)
	if err != nil {
		return "", err
	}
	return prompt.CleanTitle(text), nil
}

// SuggestIntroduction asks the model for the opening sentences of a story.
// The transcript is not touched; Introduce is the variant that appends.
func (o *Orchestrator) SuggestIntroduction(ctx context.Context, spec model.ModelSpec, meta model.StoryMeta) (string, error) {
	text, err := o.ask(ctx, spec, prompt.Introduction(meta), prompt.Instructions(meta), prompt.IntroductionMaxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Introduce asks for the opening of an empty story and appends it as the
// first AI turn. The append happens before the slot is released, so no other
// call can write to sess in between. A story that gained turns before the
// slot was taken is continued instead.
func (o *Orchestrator) Introduce(ctx context.Context, sess *session.Session, spec model.ModelSpec) (model.GenerationResult, error) {
	if !o.acquire() {
		return model.GenerationResult{}, ErrBusy
	}
	defer o.release()

	m, err := o.newMachine()
	if err != nil {
		return model.GenerationResult{}, err
	}
	o.fire(m, evBuild, nil)

	adapter, err := o.adapters.Adapter(spec)
	if err != nil {
		return model.GenerationResult{}, o.failed(m, err)
	}
	if sess.Len() > 0 {
		return o.continueFrom(ctx, m, adapter, sess, spec, sess.Turns(), "")
	}

	meta := sess.Meta()
	res, err := o.generate(ctx, m, adapter, model.GenerationRequest{
		Prompt:          prompt.Introduction(meta),
		Instructions:    prompt.Instructions(meta),
		MaxOutputTokens: prompt.IntroductionMaxTokens,
		Model:           spec,
		Temperature:     o.cfg.Temperature,
		TopP:            o.cfg.TopP,
	})
	if err != nil {
		return model.GenerationResult{}, err
	}
	return o.appendReply(ctx, m, adapter, sess, spec, res)
}

// ask runs a one-off prompt under the same slot and retry policy as a
// continuation.
func (o *Orchestrator) ask(ctx context.Context, spec model.ModelSpec, text, instructions string, maxTokens int) (string, error) {
	if !o.acquire() {
		return "", ErrBusy
	}
	defer o.release()

	m, err := o.newMachine()
	if err != nil {
		return "", err
	}
	o.fire(m, evBuild, nil)

	adapter, err := o.adapters.Adapter(spec)
	if err != nil {
		return "", o.failed(m, err)
	}

	res, err := o.generate(ctx, m, adapter, model.GenerationRequest{
		Prompt:          text,
		Instructions:    instructions,
		MaxOutputTokens: maxTokens,
		Model:           spec,
		Temperature:     o.cfg.Temperature,
		TopP:            o.cfg.TopP,
	})
	if err != nil {
		return "", err
	}
	o.fire(m, evSucceed, nil)
	return prompt.Clean(res.Text), nil
}
