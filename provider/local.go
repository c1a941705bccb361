package provider

import (
	"context"
	"sync"

	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/types"
)

// LocalProvider is the guaranteed terminal fallback. It accepts broadcasts
// and succeeds without sending anything anywhere: when every distributed
// backend is down, the originating node's own cache is still evicted and
// only peers may observe bounded staleness until a backend recovers. This
// provider offers no cross-node guarantee by definition.
type LocalProvider struct {
	nodeID  string
	logger  logging.Logger
	metrics *Metrics

	mu          sync.Mutex
	initialized bool
	listener    Listener
}

// NewLocalProvider creates the terminal fallback provider.
func NewLocalProvider(nodeID string, logger logging.Logger, metrics *Metrics) *LocalProvider {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &LocalProvider{nodeID: nodeID, logger: logger, metrics: metrics}
}

// Name returns "local".
func (p *LocalProvider) Name() string { return "local" }

// Initialize is an idempotent no-op.
func (p *LocalProvider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = true
	return nil
}

// Shutdown deregisters the listener. Safe without a prior Initialize.
func (p *LocalProvider) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized = false
	p.listener = nil
	return nil
}

// BroadcastEviction succeeds without reaching any peer.
func (p *LocalProvider) BroadcastEviction(ctx context.Context, event types.CacheEvictionEvent) error {
	p.metrics.recordSent()
	p.logger.Debug("local-only broadcast, peers will not see this eviction", "eventId", event.EventID)
	return nil
}

// SubscribeToEvictions registers the listener. Duplicates are ignored. No
// remote events ever arrive, so the listener is never invoked.
func (p *LocalProvider) SubscribeToEvictions(listener Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener != nil {
		p.logger.Warn("duplicate listener registration ignored", "provider", p.Name())
		return
	}
	p.listener = listener
}

// IsAvailable is always true; local is the terminal fallback.
func (p *LocalProvider) IsAvailable(ctx context.Context) bool { return true }

// Stats returns a snapshot of this provider's state.
func (p *LocalProvider) Stats(ctx context.Context) Stats {
	return Stats{
		Provider:       p.Name(),
		NodeID:         p.nodeID,
		Cluster:        "local",
		Connected:      true,
		EventsSent:     p.metrics.sentCount(),
		EventsReceived: p.metrics.receivedCount(),
	}
}
