// Package dispatch turns committed-transaction events into cache evictions.
// It runs strictly after the database commit: a dispatch failure can no
// longer affect the transaction outcome, so every entry is isolated and the
// worst case is bounded staleness, never a lost write.
package dispatch

import (
	"context"

	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/registry"
	"github.com/minhng/evictsync/types"
)

// Strategy applies one pending eviction locally and propagates it to peers.
type Strategy interface {
	Evict(ctx context.Context, pending types.PendingEviction) error
}

// Counts summarizes one dispatch run.
type Counts struct {
	Processed int
	Skipped   int
	Failed    int
}

// Dispatcher fans a committed transaction's evictions out to the strategy,
// one at a time and in collection order.
type Dispatcher struct {
	reg      *registry.Registry
	strategy Strategy
	logger   logging.Logger
}

// New creates a dispatcher.
func New(reg *registry.Registry, strategy Strategy, logger logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Dispatcher{reg: reg, strategy: strategy, logger: logger}
}

// Dispatch processes every eviction in the event. Entries naming an entity
// the registry does not know and carrying no region override are skipped
// with a warning; a failing or panicking entry never prevents the remaining
// entries from being processed.
func (d *Dispatcher) Dispatch(ctx context.Context, event types.CompletedEvent) Counts {
	var counts Counts
	for _, pending := range event.Evictions() {
		if _, known := d.reg.Lookup(pending.EntityName); !known && pending.Region == "" {
			counts.Skipped++
			d.logger.Warn("eviction for unregistered entity skipped",
				"entity", pending.EntityName, "operation", pending.Operation)
			continue
		}
		if d.dispatchOne(ctx, pending) {
			counts.Processed++
		} else {
			counts.Failed++
		}
	}
	return counts
}

// Hook adapts the dispatcher to the collector's commit-hook signature.
func (d *Dispatcher) Hook() func(ctx context.Context, event types.CompletedEvent) {
	return func(ctx context.Context, event types.CompletedEvent) {
		d.Dispatch(ctx, event)
	}
}

// dispatchOne applies a single eviction, absorbing panics and errors.
func (d *Dispatcher) dispatchOne(ctx context.Context, pending types.PendingEviction) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			d.logger.Error("eviction dispatch panicked",
				"entity", pending.EntityName, "operation", pending.Operation, "panic", r)
		}
	}()

	if err := d.strategy.Evict(ctx, pending); err != nil {
		d.logger.Error("eviction dispatch failed",
			"entity", pending.EntityName, "operation", pending.Operation, "error", err)
		return false
	}
	return true
}
