package provider

import (
	"context"

	"github.com/minhng/evictsync/logging"
)

// Factory holds providers in preference order and selects the best available
// one per broadcast. Selection is re-evaluated on every call, so a preferred
// backend that recovers is picked up again without any restart.
type Factory struct {
	providers []CacheProvider
	logger    logging.Logger
}

// NewFactory creates a factory over the given providers, most preferred
// first. The last provider should be a terminal fallback that is always
// available (see LocalProvider); the factory enforces nothing but selection
// degrades to the last entry when everything else is down.
func NewFactory(logger logging.Logger, providers ...CacheProvider) *Factory {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Factory{providers: providers, logger: logger}
}

// SelectBestAvailable returns the first available provider in preference
// order. When none reports available it returns the last provider rather
// than nil, so callers always get a usable broadcast path.
func (f *Factory) SelectBestAvailable(ctx context.Context) CacheProvider {
	if len(f.providers) == 0 {
		return nil
	}
	for _, p := range f.providers {
		if p.IsAvailable(ctx) {
			return p
		}
	}
	last := f.providers[len(f.providers)-1]
	f.logger.Warn("no provider available, using terminal fallback", "provider", last.Name())
	return last
}

// Providers returns the configured providers in preference order.
func (f *Factory) Providers() []CacheProvider {
	out := make([]CacheProvider, len(f.providers))
	copy(out, f.providers)
	return out
}

// InitializeAll initializes every provider, continuing past failures: a dead
// backend at startup must not take down the nodes that only degrade to local
// eviction. The first error is returned for logging by the caller.
func (f *Factory) InitializeAll(ctx context.Context) error {
	var first error
	for _, p := range f.providers {
		if err := p.Initialize(ctx); err != nil {
			f.logger.Warn("provider initialization failed", "provider", p.Name(), "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// ShutdownAll shuts down every provider, continuing past failures.
func (f *Factory) ShutdownAll() error {
	var first error
	for _, p := range f.providers {
		if err := p.Shutdown(); err != nil {
			f.logger.Warn("provider shutdown failed", "provider", p.Name(), "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}
