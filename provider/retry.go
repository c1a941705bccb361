package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/types"
)

// Retry defaults.
const (
	DefaultMaxRetries      = 3
	DefaultInitialInterval = 100 * time.Millisecond
	DefaultMaxInterval     = 2 * time.Second
)

// RetryOptions tunes the retry wrapper. Zero values fall back to defaults.
type RetryOptions struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Logger          logging.Logger
}

// RetryProvider decorates a provider with exponential-backoff retries on
// broadcast. Everything else passes through unchanged. Eviction events are
// idempotent on the receive side (dedup by event id), so a retry after an
// ambiguous failure is always safe.
type RetryProvider struct {
	CacheProvider
	opts RetryOptions
}

// NewRetryProvider wraps the given provider.
func NewRetryProvider(inner CacheProvider, opts RetryOptions) *RetryProvider {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = DefaultInitialInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = DefaultMaxInterval
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	return &RetryProvider{CacheProvider: inner, opts: opts}
}

// BroadcastEviction retries the inner broadcast with exponential backoff.
// The last error is wrapped and returned once attempts are exhausted or the
// context is cancelled.
func (p *RetryProvider) BroadcastEviction(ctx context.Context, event types.CacheEvictionEvent) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.opts.InitialInterval
	bo.MaxInterval = p.opts.MaxInterval

	attempt := 0
	operation := func() error {
		attempt++
		err := p.CacheProvider.BroadcastEviction(ctx, event)
		if err != nil {
			p.opts.Logger.Warn("broadcast attempt failed",
				"provider", p.CacheProvider.Name(), "attempt", attempt, "eventId", event.EventID, "error", err)
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, p.opts.MaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return fmt.Errorf("broadcast eviction after %d attempts: %w", attempt, err)
	}
	return nil
}
