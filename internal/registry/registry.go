// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry enumerates usable models and builds their adapters.
//
// The registry is the only place that knows which concrete adapter serves a
// provider id. Everything above it works with model.ModelSpec and
// provider.Adapter.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jeranaias/storyrun-tui/internal/model"
	"github.com/jeranaias/storyrun-tui/internal/provider"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Credentials supplies provider secrets.
// ok is false when no secret is configured at all; an empty secret with
// ok == true is present but invalid, and the adapter will report ErrAuth.
type Credentials interface {
	Lookup(providerID string) (secret string, ok bool)
}

// Factory builds an adapter for one provider.
type Factory func(cred model.Credential) (provider.Adapter, error)

// Prober is implemented by adapters that can cheaply check reachability,
// such as the local runner.
type Prober interface {
	Available(ctx context.Context) error
}

// Installer is implemented by adapters that serve only the models installed
// on the machine, such as the local runner.
type Installer interface {
	HasModel(ctx context.Context, name string) (bool, error)
}

// NoCredentials is a Credentials with nothing configured.
type NoCredentials struct{}

// Lookup implements Credentials.
func (NoCredentials) Lookup(string) (string, bool) { return "", false }

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds the model catalog, the credential source and one factory per
// provider. It is safe for concurrent use.
type Registry struct {
	creds  Credentials
	logger *slog.Logger

	mu        sync.RWMutex
	specs     []model.ModelSpec
	factories map[string]Factory
	adapters  map[string]provider.Adapter
}

// Option configures a Registry.
type Option func(*Registry)

// WithSpecs replaces the built-in catalog.
func WithSpecs(specs []model.ModelSpec) Option {
	return func(r *Registry) {
		r.specs = append([]model.ModelSpec(nil), specs...)
	}
}

// WithExtraSpecs adds specs, replacing catalog entries with the same ID.
func WithExtraSpecs(specs []model.ModelSpec) Option {
	return func(r *Registry) {
		for _, s := range specs {
			replaced := false
			for i := range r.specs {
				if r.specs[i].ID() == s.ID() {
					r.specs[i] = s
					replaced = true
					break
				}
			}
			if !replaced {
				r.specs = append(r.specs, s)
			}
		}
	}
}

// WithContextOverrides sets context windows by "provider/name" ID.
func WithContextOverrides(overrides map[string]int) Option {
	return func(r *Registry) {
		for i := range r.specs {
			if n, ok := overrides[r.specs[i].ID()]; ok && n > 0 {
				r.specs[i].ContextWindow = n
			}
		}
	}
}

// WithFactory registers the adapter factory for a provider.
func WithFactory(providerID string, f Factory) Option {
	return func(r *Registry) {
		r.factories[providerID] = f
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates a registry over the built-in catalog. Options apply in order.
func New(creds Credentials, opts ...Option) *Registry {
	if creds == nil {
		creds = NoCredentials{}
	}
	r := &Registry{
		creds:     creds,
		logger:    slog.Default(),
		specs:     model.Catalog(),
		factories: make(map[string]Factory),
		adapters:  make(map[string]provider.Adapter),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "registry")
	return r
}

// Register adds or replaces a provider factory and drops any cached adapter.
func (r *Registry) Register(providerID string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[providerID] = f
	delete(r.adapters, providerID)
}

// Specs returns every known spec regardless of credentials.
func (r *Registry) Specs() []model.ModelSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedCopy(r.specs)
}

// ListAvailable returns the specs that can be used right now: the provider
// has a factory, any required credential is present, a probing adapter
// answers, and a local model is installed. Probe failures are logged, not
// returned.
func (r *Registry) ListAvailable(ctx context.Context) []model.ModelSpec {
	specs := r.Specs()
	probed := make(map[string]bool)

	out := make([]model.ModelSpec, 0, len(specs))
	for _, s := range specs {
		if !r.hasFactory(s.Provider) {
			continue
		}
		if s.RequiresCredential {
			if _, ok := r.creds.Lookup(s.Provider); !ok {
				continue
			}
		}

		up, seen := probed[s.Provider]
		if !seen {
			up = r.probe(ctx, s)
			probed[s.Provider] = up
		}
		if up && r.installed(ctx, s) {
			out = append(out, s)
		}
	}
	return out
}

// probe reports whether the provider's adapter is reachable.
// Adapters that do not implement Prober are assumed reachable.
func (r *Registry) probe(ctx context.Context, s model.ModelSpec) bool {
	a, err := r.Adapter(s)
	if err != nil {
		r.logger.Debug("adapter unavailable", "provider", s.Provider, "error", err)
		return false
	}
	p, ok := a.(Prober)
	if !ok {
		return true
	}
	if err := p.Available(ctx); err != nil {
		r.logger.Info("provider not reachable", "provider", s.Provider, "error", err)
		return false
	}
	return true
}

// installed reports whether s can be served. Adapters that do not implement
// Installer serve every model in their catalog.
func (r *Registry) installed(ctx context.Context, s model.ModelSpec) bool {
	a, err := r.Adapter(s)
	if err != nil {
		return false
	}
	in, ok := a.(Installer)
	if !ok {
		return true
	}
	has, err := in.HasModel(ctx, s.Name)
	if err != nil {
		r.logger.Debug("model lookup failed", "model", s.ID(), "error", err)
		return false
	}
	if !has {
		r.logger.Info("model not installed", "model", s.ID())
	}
	return has
}

// Resolve finds a spec and checks its credential.
func (r *Registry) Resolve(providerID, name string) (model.ModelSpec, error) {
	r.mu.RLock()
	var (
		spec  model.ModelSpec
		found bool
	)
	for _, s := range r.specs {
		if s.Provider == providerID && s.Name == name {
			spec, found = s, true
			break
		}
	}
	r.mu.RUnlock()

	if !found {
		return model.ModelSpec{}, provider.NewError(provider.KindUnknownModel, providerID, "unknown model %q", name)
	}
	if spec.RequiresCredential {
		if _, ok := r.creds.Lookup(providerID); !ok {
			return model.ModelSpec{}, provider.NewError(provider.KindCredentialMissing, providerID,
				"no API key configured for %s", providerID)
		}
	}
	return spec, nil
}

// ResolveID resolves a "provider/name" string.
func (r *Registry) ResolveID(id string) (model.ModelSpec, error) {
	p, n, err := model.ParseID(id)
	if err != nil {
		return model.ModelSpec{}, provider.NewError(provider.KindUnknownModel, "", "%s", err.Error())
	}
	return r.Resolve(p, n)
}

// Adapter returns the adapter serving spec's provider, building it on first use.
func (r *Registry) Adapter(spec model.ModelSpec) (provider.Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[spec.Provider]
	f, hasFactory := r.factories[spec.Provider]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}
	if !hasFactory {
		return nil, provider.NewError(provider.KindUnknownModel, spec.Provider, "no adapter for provider %q", spec.Provider)
	}

	secret, present := r.creds.Lookup(spec.Provider)
	if spec.RequiresCredential && !present {
		return nil, provider.NewError(provider.KindCredentialMissing, spec.Provider,
			"no API key configured for %s", spec.Provider)
	}

	a, err := f(model.Credential{Provider: spec.Provider, Secret: secret})
	if err != nil {
		return nil, fmt.Errorf("build %s adapter: %w", spec.Provider, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.adapters[spec.Provider]; ok {
		return existing, nil
	}
	r.adapters[spec.Provider] = a
	return a, nil
}

func (r *Registry) hasFactory(providerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[providerID]
	return ok
}

func sortedCopy(specs []model.ModelSpec) []model.ModelSpec {
	out := append([]model.ModelSpec(nil), specs...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}
