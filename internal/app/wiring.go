// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"log/slog"

	"github.com/jeranaias/storyrun-tui/internal/cloud"
	"github.com/jeranaias/storyrun-tui/internal/config"
	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/offline"
	"github.com/jeranaias/storyrun-tui/internal/ollama"
	"github.com/jeranaias/storyrun-tui/internal/orchestrator"
	"github.com/jeranaias/storyrun-tui/internal/provider"
	"github.com/jeranaias/storyrun-tui/internal/registry"
)

// =============================================================================
// REGISTRY WIRING
// =============================================================================

// NewRegistry builds the model registry with one adapter factory per
// provider, configured from cfg.
// SECURITY: Credentials flow from creds to the adapter constructors only.
func NewRegistry(cfg *config.Config, creds registry.Credentials, logger *slog.Logger) *registry.Registry {
	if logger == nil {
		logger = slog.Default()
	}
	windows, extra := cfg.ModelOverrides()

	hosted := func(id string, build func(cloud.Config) provider.Adapter) registry.Factory {
		p := cfg.Providers.Provider(id)
		return func(cred model.Credential) (provider.Adapter, error) {
			return build(cloud.Config{
				BaseURL:           p.BaseURL,
				APIKey:            cred.Secret,
				Timeout:           p.Timeout.Duration,
				RequestsPerMinute: p.RequestsPerMinute,
				Logger:            logger,
			}), nil
		}
	}

	local := cfg.Providers.Ollama
	opts := []registry.Option{
		registry.WithExtraSpecs(extra),
		registry.WithContextOverrides(windows),
		registry.WithLogger(logger),
		registry.WithFactory(model.ProviderOllama, func(model.Credential) (provider.Adapter, error) {
			// SECURITY: offline mode keeps the story on a loopback Ollama
			if err := offline.ValidateURL(local.BaseURL); err != nil {
				return nil, err
			}
			return ollama.NewAdapter(&ollama.ClientConfig{
				BaseURL: local.BaseURL,
				Timeout: local.Timeout.Duration,
			}), nil
		}),
		registry.WithFactory(model.ProviderMock, func(model.Credential) (provider.Adapter, error) {
			return provider.NewMock(), nil
		}),
	}

	if offline.IsOfflineMode() {
		logger.Info("offline mode: hosted providers disabled")
	} else {
		opts = append(opts,
			registry.WithFactory(model.ProviderOpenAI, hosted(model.ProviderOpenAI,
				func(c cloud.Config) provider.Adapter { return cloud.NewOpenAI(c) })),
			registry.WithFactory(model.ProviderGemini, hosted(model.ProviderGemini,
				func(c cloud.Config) provider.Adapter { return cloud.NewGemini(c) })),
			registry.WithFactory(model.ProviderMistral, hosted(model.ProviderMistral,
				func(c cloud.Config) provider.Adapter { return cloud.NewMistral(c) })),
		)
	}
	return registry.New(creds, opts...)
}

// Policy converts the [retry] section into an orchestrator policy.
func Policy(cfg *config.Config) orchestrator.Policy {
	return orchestrator.Policy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		BaseDelay:      cfg.Retry.BaseDelay.Duration,
		MaxDelay:       cfg.Retry.MaxDelay.Duration,
		AttemptTimeout: cfg.Retry.AttemptTimeout.Duration,
	}
}
