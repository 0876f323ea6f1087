// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by every layer of storyrun.
//
// This package defines the core domain types for a story transcript and for a
// single generation call against a language model provider.
//
// # Key Types
//
//   - Turn: One immutable contribution (user or AI) to the story
//   - StoryMeta: Title, instructions and details of a saved story
//   - ModelSpec: Static description of a (provider, model) pair
//   - Credential: Provider secret, redacted whenever it is printed
//   - GenerationRequest / GenerationResult: Normalized provider call
//
// # Usage
//
// Create a user turn and look up a catalog model:
//
//	turn := model.NewUserTurn("You open the door.")
//	spec, ok := model.Lookup("openai", "gpt-4o-mini")
package model
