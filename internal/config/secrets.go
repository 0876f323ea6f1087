// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/registry"
	"github.com/jeranaias/storyrun-tui/internal/util"
)

// =============================================================================
// SECRETS
// =============================================================================

// Placeholder marks a key that was never filled in. It counts as absent.
const Placeholder = "CHANGEME"

// envKeys maps provider ids to the environment variables that override the file.
var envKeys = map[string]string{
	model.ProviderOpenAI:  "OPENAI_API_KEY",
	model.ProviderGemini:  "GEMINI_API_KEY",
	model.ProviderMistral: "MISTRAL_API_KEY",
}

// secretsFile is the on-disk shape of secrets.toml.
type secretsFile struct {
	Keys map[string]string `toml:"keys"`
}

// Secrets holds provider API keys.
// SECURITY: Secrets has no exported fields and never prints its values.
type Secrets struct {
	mu   sync.RWMutex
	keys map[string]string
}

var _ registry.Credentials = (*Secrets)(nil)

// NewSecrets builds a Secrets from a provider-to-key map.
func NewSecrets(keys map[string]string) *Secrets {
	s := &Secrets{keys: make(map[string]string, len(keys))}
	for k, v := range keys {
		s.keys[k] = v
	}
	return s
}

// LoadSecretsFrom reads secrets from path and applies environment overrides.
// A missing file is not an error.
func LoadSecretsFrom(path string) (*Secrets, error) {
	var f secretsFile
	if _, err := toml.DecodeFile(path, &f); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to decode secrets file: %w", err)
	}
	if err := ensureSecurePermissions(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	s := NewSecrets(f.Keys)
	s.ApplyEnvOverrides()
	return s, nil
}

// ApplyEnvOverrides replaces file keys with OPENAI_API_KEY, GEMINI_API_KEY
// and MISTRAL_API_KEY when they are set.
func (s *Secrets) ApplyEnvOverrides() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, env := range envKeys {
		if v, ok := os.LookupEnv(env); ok {
			s.keys[id] = v
		}
	}
}

// Lookup implements registry.Credentials.
// A missing entry or the placeholder is absent; an empty string is present.
func (s *Secrets) Lookup(providerID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.keys[providerID]
	if !ok || strings.TrimSpace(v) == Placeholder {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Set stores a key in memory.
func (s *Secrets) Set(providerID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[providerID] = key
}

// Configured lists the providers with a usable key entry, sorted.
func (s *Secrets) Configured() []string {
	var out []string
	for _, id := range []string{model.ProviderGemini, model.ProviderMistral, model.ProviderOpenAI} {
		if _, ok := s.Lookup(id); ok {
			out = append(out, id)
		}
	}
	return out
}

// String implements fmt.Stringer.
// SECURITY: Only provider names are printed.
func (s *Secrets) String() string {
	return "secrets[" + strings.Join(s.Configured(), ",") + "]"
}

// GoString keeps %#v from printing keys.
func (s *Secrets) GoString() string {
	return s.String()
}

// WriteSecretsTemplate creates path with placeholder keys if it does not
// already exist. It reports whether a file was written.
// SECURITY: The file is created 0600 inside a 0700 directory.
func WriteSecretsTemplate(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}

	var sb strings.Builder
	sb.WriteString("# storyrun API keys. Replace CHANGEME with a key, or delete the line.\n")
	sb.WriteString("# OPENAI_API_KEY, GEMINI_API_KEY and MISTRAL_API_KEY override these.\n\n")
	f := secretsFile{Keys: map[string]string{
		model.ProviderOpenAI:  Placeholder,
		model.ProviderGemini:  Placeholder,
		model.ProviderMistral: Placeholder,
	}}
	if err := toml.NewEncoder(&sb).Encode(f); err != nil {
		return false, fmt.Errorf("failed to encode secrets template: %w", err)
	}

	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return false, fmt.Errorf("failed to write secrets file: %w", err)
	}
	return true, nil
}

// ensureSecurePermissions checks and fixes permissions on the secrets file.
// SECURITY: Secrets should be 0600 (owner read/write only).
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}
