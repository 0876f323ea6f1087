// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
	"testing"
)

// =============================================================================
// TURN TESTS
// =============================================================================

func TestNewUserTurn(t *testing.T) {
	turn := NewUserTurn("You open the door.")

	if turn.Role != RoleUser {
		t.Errorf("Role = %v, want %v", turn.Role, RoleUser)
	}
	if turn.HasTokenCount() {
		t.Errorf("HasTokenCount() = true, want false for a fresh user turn")
	}
	if turn.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestNewAITurn(t *testing.T) {
	turn := NewAITurn("The hinges creak.", 5)

	if turn.Role != RoleAI {
		t.Errorf("Role = %v, want %v", turn.Role, RoleAI)
	}
	if turn.TokenCount != 5 {
		t.Errorf("TokenCount = %d, want 5", turn.TokenCount)
	}
}

func TestTurn_WithTokenCountCopies(t *testing.T) {
	orig := NewUserTurn("hello")
	counted := orig.WithTokenCount(3)

	if orig.TokenCount != TokensUnknown {
		t.Errorf("original TokenCount = %d, want %d", orig.TokenCount, TokensUnknown)
	}
	if counted.TokenCount != 3 {
		t.Errorf("copy TokenCount = %d, want 3", counted.TokenCount)
	}
}

func TestRole_Valid(t *testing.T) {
	if !RoleUser.Valid() || !RoleAI.Valid() {
		t.Error("known roles should be valid")
	}
	if Role("system").Valid() {
		t.Error("system should not be a valid turn role")
	}
}

// =============================================================================
// CATALOG TESTS
// =============================================================================

func TestCatalog_HasEveryProvider(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range Catalog() {
		seen[s.Provider] = true
		if s.ContextWindow <= 0 {
			t.Errorf("%s: ContextWindow = %d, want > 0", s.ID(), s.ContextWindow)
		}
	}
	for _, p := range []string{ProviderOpenAI, ProviderGemini, ProviderMistral, ProviderOllama, ProviderMock} {
		if !seen[p] {
			t.Errorf("catalog missing provider %q", p)
		}
	}
}

func TestCatalog_ReturnsCopy(t *testing.T) {
	a := Catalog()
	a[0].ContextWindow = -1
	b := Catalog()
	if b[0].ContextWindow == -1 {
		t.Error("Catalog() should return an independent copy")
	}
}

func TestLookup(t *testing.T) {
	spec, ok := Lookup(ProviderGemini, "gemini-1.5-flash")
	if !ok {
		t.Fatal("Lookup(gemini-1.5-flash) not found")
	}
	if !spec.RequiresCredential {
		t.Error("hosted model should require a credential")
	}

	if _, ok := Lookup("nope", "nope"); ok {
		t.Error("Lookup of unknown model should fail")
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		in       string
		provider string
		name     string
		wantErr  bool
	}{
		{"openai/gpt-4o-mini", "openai", "gpt-4o-mini", false},
		{"ollama/llama3.2:3b", "ollama", "llama3.2:3b", false},
		{"ollama/library/llama3", "ollama", "library/llama3", false},
		{"gpt-4o", "", "", true},
		{"/x", "", "", true},
		{"x/", "", "", true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			p, n, err := ParseID(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseID(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
			if p != tc.provider || n != tc.name {
				t.Errorf("ParseID(%q) = %q, %q; want %q, %q", tc.in, p, n, tc.provider, tc.name)
			}
		})
	}
}

// =============================================================================
// CREDENTIAL TESTS
// =============================================================================

func TestCredential_NeverPrintsSecret(t *testing.T) {
	c := Credential{Provider: "openai", Secret: "sk-very-secret"}

	for _, out := range []string{
		c.String(),
		fmt.Sprintf("%v", c),
		fmt.Sprintf("%+v", c),
		fmt.Sprintf("%#v", c),
		c.LogValue().String(),
	} {
		if strings.Contains(out, "sk-very-secret") {
			t.Errorf("formatted credential leaks secret: %q", out)
		}
	}
}

// =============================================================================
// RESULT TESTS
// =============================================================================

func TestGenerationResult_CompletionTokens(t *testing.T) {
	r := GenerationResult{Text: "x"}
	if got := r.CompletionTokens(7); got != 7 {
		t.Errorf("CompletionTokens(nil usage) = %d, want 7", got)
	}

	r.Usage = &Usage{PromptTokens: 10, CompletionTokens: 3}
	if got := r.CompletionTokens(7); got != 3 {
		t.Errorf("CompletionTokens = %d, want 3", got)
	}
	if got := r.Usage.Total(); got != 13 {
		t.Errorf("Total() = %d, want 13", got)
	}
}

// =============================================================================
// STORY META TESTS
// =============================================================================

func TestStoryMeta_DisplayTitle(t *testing.T) {
	if got := (StoryMeta{}).DisplayTitle(); got != "Untitled story" {
		t.Errorf("DisplayTitle() = %q, want %q", got, "Untitled story")
	}
	if got := (StoryMeta{Title: "The Heist"}).DisplayTitle(); got != "The Heist" {
		t.Errorf("DisplayTitle() = %q, want %q", got, "The Heist")
	}
}
