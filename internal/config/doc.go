// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for storyrun.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation. Provider API keys are kept
// apart from the main file in secrets.toml.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - RetryConfig: Attempt count, backoff and per-attempt timeout
//   - ProviderConfig: Endpoint, timeout and pacing for one provider
//   - Secrets: API keys; implements registry.Credentials
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence). WriteDefault leaves
// an editable config.toml on first run.
//   - Environment variables (STORYRUN_*, and OPENAI_API_KEY etc. for keys)
//   - ~/.storyrun/config.toml
//   - ~/.storyrun/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	path, _ := config.SecretsPath()
//	secrets, err := config.LoadSecretsFrom(path)
package config
