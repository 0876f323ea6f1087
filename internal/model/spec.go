// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Provider identifiers used across the catalog, registry and config.
const (
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
	ProviderMistral = "mistral"
	ProviderOllama  = "ollama"
	ProviderMock    = "mock"
)

// =============================================================================
// MODEL SPEC TYPE
// =============================================================================

// ModelSpec describes one (provider, model) pair.
// Specs are loaded once and shared read-only for the process lifetime.
type ModelSpec struct {
	// Provider is the adapter family, e.g. "openai" or "ollama"
	Provider string `json:"provider" toml:"provider"`

	// Name is the model identifier sent to the provider
	Name string `json:"name" toml:"name"`

	// ContextWindow is the prompt + completion token limit
	ContextWindow int `json:"context_window" toml:"context_window"`

	// RequiresCredential is true for hosted providers that need an API key
	RequiresCredential bool `json:"requires_credential" toml:"requires_credential"`

	// DisplayName is a human-readable label for menus
	DisplayName string `json:"display_name,omitempty" toml:"display_name"`
}

// ID returns the canonical "provider/name" form of the spec.
func (s ModelSpec) ID() string {
	return s.Provider + "/" + s.Name
}

// Label returns the display name, falling back to the ID.
func (s ModelSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.ID()
}

// String implements fmt.Stringer.
func (s ModelSpec) String() string {
	return fmt.Sprintf("%s (%d tokens)", s.ID(), s.ContextWindow)
}

// ParseID splits a "provider/name" string.
// Model names may themselves contain slashes or colons ("ollama/llama3.2:3b").
func ParseID(id string) (provider, name string, err error) {
	provider, name, ok := strings.Cut(strings.TrimSpace(id), "/")
	if !ok || provider == "" || name == "" {
		return "", "", fmt.Errorf("invalid model id %q: want provider/name", id)
	}
	return provider, name, nil
}

// =============================================================================
// BUILT-IN CATALOG
// =============================================================================

// catalog is the set of models storyrun knows about out of the box.
// Context windows can be overridden from config.
var catalog = []ModelSpec{
	{
		Provider:           ProviderOpenAI,
		Name:               "gpt-4o-mini",
		ContextWindow:      128000,
		RequiresCredential: true,
		DisplayName:        "GPT-4o Mini",
	},
	{
		Provider:           ProviderOpenAI,
		Name:               "gpt-4o",
		ContextWindow:      128000,
		RequiresCredential: true,
		DisplayName:        "GPT-4o",
	},
	{
		Provider:           ProviderGemini,
		Name:               "gemini-1.5-flash",
		ContextWindow:      1048576,
		RequiresCredential: true,
		DisplayName:        "Gemini 1.5 Flash",
	},
	{
		Provider:           ProviderMistral,
		Name:               "open-mistral-nemo",
		ContextWindow:      128000,
		RequiresCredential: true,
		DisplayName:        "Mistral NeMo",
	},
	{
		Provider:      ProviderOllama,
		Name:          "llama3.2",
		ContextWindow: 8192,
		DisplayName:   "Llama 3.2 (local)",
	},
	{
		Provider:      ProviderMock,
		Name:          "mock",
		ContextWindow: 4096,
		DisplayName:   "Offline mock",
	},
}

// Catalog returns a copy of the built-in model specs, sorted by ID.
func Catalog() []ModelSpec {
	out := make([]ModelSpec, len(catalog))
	copy(out, catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Lookup returns the built-in spec for a provider and model name.
func Lookup(provider, name string) (ModelSpec, bool) {
	for _, s := range catalog {
		if s.Provider == provider && s.Name == name {
			return s, true
		}
	}
	return ModelSpec{}, false
}

// DefaultModelID is used when config does not name a model.
const DefaultModelID = ProviderOpenAI + "/gpt-4o-mini"

// =============================================================================
// CREDENTIAL TYPE
// =============================================================================

// Credential is a provider secret.
// SECURITY: Every printable form is redacted; only adapters read Secret.
type Credential struct {
	Provider string
	Secret   string
}

// String implements fmt.Stringer without exposing the secret.
func (c Credential) String() string {
	if c.Secret == "" {
		return c.Provider + ":[empty]"
	}
	return c.Provider + ":[REDACTED]"
}

// GoString keeps %#v from printing the secret.
func (c Credential) GoString() string {
	return "model.Credential{" + c.String() + "}"
}

// LogValue implements slog.LogValuer.
func (c Credential) LogValue() slog.Value {
	return slog.StringValue(c.String())
}
