// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator runs story continuations against a provider adapter.
//
// One call walks a small state machine:
//
//	Idle -> BuildingPrompt -> AwaitingProvider -> Success
//	                               |    ^
//	                               v    |
//	                             Retrying
//	                               |
//	                               v
//	                             Failed
//
// Rate limits and unavailable providers are retried with exponential backoff.
// Every other failure ends the call at once. The user's turn is appended
// before the provider is called and is never removed; an AI turn is appended
// only on success.
//
// # Usage
//
//	orch := orchestrator.New(reg, orchestrator.Config{MaxOutputTokens: 100})
//	res, err := orch.ContinueStory(ctx, sess, spec, model.NewUserTurn(text))
//	if errors.Is(err, provider.ErrAuth) {
//	    // show "auth" in the status line
//	}
package orchestrator
