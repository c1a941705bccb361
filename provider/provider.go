package provider

import (
	"context"
	"errors"

	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/types"
)

// Listener consumes eviction events received from peer nodes. Listeners run
// on provider-managed goroutines, fully concurrent with request goroutines.
type Listener func(event types.CacheEvictionEvent)

// CacheProvider is the common contract every distributed backend adapter
// implements. Initialize and Shutdown are idempotent, symmetric and
// synchronized against each other on the same per-instance monitor.
type CacheProvider interface {
	// Name identifies the backend ("redis", "channel", "local").
	Name() string

	// Initialize connects to the backend and starts receiving events.
	// Repeat calls are no-ops.
	Initialize(ctx context.Context) error

	// Shutdown deregisters the listener, stops background goroutines and
	// releases resources. Calling it without a prior Initialize is a no-op.
	Shutdown() error

	// BroadcastEviction pushes the event to every cluster member. It must
	// return an error when the backend is unreachable rather than silently
	// dropping, so the caller can retry or fail over.
	BroadcastEviction(ctx context.Context, event types.CacheEvictionEvent) error

	// SubscribeToEvictions registers exactly one listener per provider
	// instance; duplicate registrations are ignored.
	SubscribeToEvictions(listener Listener)

	// IsAvailable queries backend liveness freshly, never from a cached
	// answer, since backends may recover without a restart.
	IsAvailable(ctx context.Context) bool

	// Stats returns a read-only snapshot recomputed on demand.
	Stats(ctx context.Context) Stats
}

// Stats is a read-only snapshot of one provider's state.
type Stats struct {
	Provider       string
	NodeID         string
	Cluster        string
	Connected      bool
	EventsSent     int64
	EventsReceived int64
}

// Errors returned by providers.
var (
	ErrNotInitialized = errors.New("provider is not initialized")
	ErrBackendDown    = errors.New("distributed backend is unreachable")
)

// deliver applies the receive-side protocol to one incoming event:
// self-suppression by node id, idempotent dedup by event id, then the
// registered listener. Safe under concurrent delivery because the dedup
// check-and-insert is atomic.
func deliver(event types.CacheEvictionEvent, nodeID string, dedup *DedupTable, listener Listener, metrics *Metrics, logger logging.Logger) {
	metrics.recordReceived()

	if event.NodeID == nodeID {
		// The local change was already applied before broadcasting.
		metrics.recordSuppressed()
		return
	}
	if !dedup.MarkProcessed(event.EventID) {
		metrics.recordDuplicate()
		logger.Debug("duplicate eviction event ignored", "eventId", event.EventID, "origin", event.NodeID)
		return
	}
	if listener == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.recordFailure()
			logger.Error("eviction listener panicked", "eventId", event.EventID, "panic", r)
		}
	}()
	listener(event)
	metrics.recordApplied()
}
