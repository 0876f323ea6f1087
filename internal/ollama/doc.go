// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the local-runner generation adapter.
//
// This package talks to a local Ollama server over HTTP. The Client wraps the
// raw API (health check, model list, non-streaming chat). The Adapter puts the
// Client behind provider.Adapter so the orchestrator treats a local model the
// same way as a hosted one.
//
// # Key Types
//
//   - Client: HTTP client for the Ollama API
//   - Adapter: provider.Adapter backed by a Client
//   - ClientError: Typed client failure (not running, timeout, model not found)
//
// # Usage
//
//	adapter := ollama.NewAdapter(ollama.DefaultConfig())
//	if err := adapter.Available(ctx); err != nil {
//	    // leave local models out of the menu
//	}
//	res, err := adapter.Generate(ctx, req)
package ollama
