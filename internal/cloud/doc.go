// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud provides the hosted-API generation adapters.
//
// Three providers are supported, each behind provider.Adapter:
//
//   - OpenAI chat completions (OpenAI)
//   - Google Gemini generateContent (Gemini)
//   - Mistral chat completions (Mistral)
//
// Every adapter makes exactly one HTTP attempt per Generate call and maps the
// outcome onto the provider error taxonomy. Retries belong to the
// orchestrator, which sees RateLimit and Unavailable errors and decides.
//
// # Security
//
// API keys are sent only in headers, never in URLs. Request and response
// bodies are never logged. Log lines carry a SHA-256 key fingerprint instead
// of any key material.
//
// # Usage
//
//	adapter := cloud.NewOpenAI(cloud.Config{APIKey: key})
//	res, err := adapter.Generate(ctx, req)
//	if provider.IsRetryable(err) {
//	    // back off and try again
//	}
package cloud
