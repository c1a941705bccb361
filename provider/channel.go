package provider

import (
	"context"
	"sync"
	"time"

	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/types"
)

// Bus is an in-process broadcast fabric shared by ChannelProviders. It
// stands in for a real distributed backend when several nodes run inside one
// binary, and is the protocol test vehicle.
type Bus struct {
	mu      sync.RWMutex
	members map[string]chan types.CacheEvictionEvent
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{members: make(map[string]chan types.CacheEvictionEvent)}
}

// join registers a member inbox under a node id.
func (b *Bus) join(nodeID string, inbox chan types.CacheEvictionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.members[nodeID] = inbox
}

// leave removes a member.
func (b *Bus) leave(nodeID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.members, nodeID)
}

// publish fans the event out to every member, the sender included; receivers
// suppress their own events by node id, mirroring real pub/sub semantics.
func (b *Bus) publish(event types.CacheEvictionEvent) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, inbox := range b.members {
		select {
		case inbox <- event:
			delivered++
		default:
			// Member inbox full; the event is dropped for that member and
			// absorbed by the staleness window like any missed broadcast.
		}
	}
	return delivered
}

// size returns the current member count.
func (b *Bus) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.members)
}

const channelInboxSize = 256

// ChannelOptions configures a ChannelProvider.
type ChannelOptions struct {
	Bus           *Bus
	NodeID        string
	DedupCapacity int
	DedupWindow   time.Duration
	SweepInterval time.Duration
	Logger        logging.Logger
	Metrics       *Metrics
}

// ChannelProvider broadcasts evictions over an in-process Bus. It implements
// the full receive-side protocol (self-suppression, dedup, single listener)
// so multi-node behavior can run inside one process.
type ChannelProvider struct {
	bus           *Bus
	nodeID        string
	dedup         *DedupTable
	sweepInterval time.Duration
	logger        logging.Logger
	metrics       *Metrics

	mu          sync.Mutex
	initialized bool
	listener    Listener
	listenerMu  sync.RWMutex
	inbox       chan types.CacheEvictionEvent
	done        chan struct{}
	wg          sync.WaitGroup
}

// NewChannelProvider creates a provider attached to the given bus.
func NewChannelProvider(opts ChannelOptions) *ChannelProvider {
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	return &ChannelProvider{
		bus:           opts.Bus,
		nodeID:        opts.NodeID,
		dedup:         NewDedupTable(opts.DedupCapacity, opts.DedupWindow),
		sweepInterval: opts.SweepInterval,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
	}
}

// Name returns "channel".
func (p *ChannelProvider) Name() string { return "channel" }

// Initialize joins the bus and starts the receive goroutine. Repeat calls
// are no-ops.
func (p *ChannelProvider) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}

	p.inbox = make(chan types.CacheEvictionEvent, channelInboxSize)
	p.done = make(chan struct{})
	p.bus.join(p.nodeID, p.inbox)
	p.dedup.StartSweeper(p.sweepInterval)

	p.wg.Add(1)
	go p.listen(p.inbox, p.done)

	p.initialized = true
	return nil
}

// Shutdown leaves the bus, joins the receive goroutine and deregisters the
// listener. Safe without a prior Initialize.
func (p *ChannelProvider) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return nil
	}

	p.bus.leave(p.nodeID)
	close(p.done)
	p.wg.Wait()
	p.dedup.StopSweeper()

	p.listenerMu.Lock()
	p.listener = nil
	p.listenerMu.Unlock()

	p.initialized = false
	return nil
}

// BroadcastEviction publishes the event to every bus member.
func (p *ChannelProvider) BroadcastEviction(ctx context.Context, event types.CacheEvictionEvent) error {
	p.mu.Lock()
	initialized := p.initialized
	p.mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}

	p.bus.publish(event)
	p.metrics.recordSent()
	return nil
}

// SubscribeToEvictions registers the listener. Duplicates are ignored.
func (p *ChannelProvider) SubscribeToEvictions(listener Listener) {
	p.listenerMu.Lock()
	defer p.listenerMu.Unlock()
	if p.listener != nil {
		p.logger.Warn("duplicate listener registration ignored", "provider", p.Name())
		return
	}
	p.listener = listener
}

// IsAvailable reports whether the provider has joined the bus.
func (p *ChannelProvider) IsAvailable(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initialized
}

// Stats returns a snapshot of this provider's state.
func (p *ChannelProvider) Stats(ctx context.Context) Stats {
	return Stats{
		Provider:       p.Name(),
		NodeID:         p.nodeID,
		Cluster:        "in-process",
		Connected:      p.IsAvailable(ctx),
		EventsSent:     p.metrics.sentCount(),
		EventsReceived: p.metrics.receivedCount(),
	}
}

// listen consumes the inbox until shutdown.
func (p *ChannelProvider) listen(inbox chan types.CacheEvictionEvent, done chan struct{}) {
	defer p.wg.Done()
	for {
		select {
		case <-done:
			return
		case event := <-inbox:
			p.listenerMu.RLock()
			listener := p.listener
			p.listenerMu.RUnlock()
			deliver(event, p.nodeID, p.dedup, listener, p.metrics, p.logger)
		}
	}
}
