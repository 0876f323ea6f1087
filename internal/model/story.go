// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// STORY METADATA
// =============================================================================

// StoryMeta is the descriptive part of a story, without its transcript.
type StoryMeta struct {
	ID           string    `json:"id" yaml:"id"`
	Title        string    `json:"title" yaml:"title"`
	Instructions string    `json:"instructions,omitempty" yaml:"instructions,omitempty"`
	Details      string    `json:"details,omitempty" yaml:"details,omitempty"`
	Model        string    `json:"model" yaml:"model"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"updated_at"`
}

// DisplayTitle returns the title or a placeholder for untitled stories.
func (m StoryMeta) DisplayTitle() string {
	if m.Title == "" {
		return "Untitled story"
	}
	return m.Title
}
