// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies who wrote a turn.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAI:
		return "Narrator"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAI
}

// =============================================================================
// TURN TYPE
// =============================================================================

// TokensUnknown marks a turn whose token count was never measured.
const TokensUnknown = -1

// Turn is one atomic contribution to the story transcript.
// Turns are values: once created they are never modified in place.
type Turn struct {
	Role       Role      `json:"role" yaml:"role"`
	Text       string    `json:"text" yaml:"text"`
	TokenCount int       `json:"token_count" yaml:"token_count"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
}

// NewTurn creates a turn with an unknown token count.
func NewTurn(role Role, text string) Turn {
	return Turn{
		Role:       role,
		Text:       text,
		TokenCount: TokensUnknown,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewUserTurn creates a turn written by the user.
func NewUserTurn(text string) Turn {
	return NewTurn(RoleUser, text)
}

// NewAITurn creates a turn produced by a model, with a known token count.
func NewAITurn(text string, tokens int) Turn {
	t := NewTurn(RoleAI, text)
	t.TokenCount = tokens
	return t
}

// WithTokenCount returns a copy of t with the token count set.
func (t Turn) WithTokenCount(n int) Turn {
	t.TokenCount = n
	return t
}

// HasTokenCount reports whether the token count is known.
func (t Turn) HasTokenCount() bool {
	return t.TokenCount >= 0
}

// IsEmpty returns true if the turn has no visible text.
func (t Turn) IsEmpty() bool {
	return strings.TrimSpace(t.Text) == ""
}
