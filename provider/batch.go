package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/types"
)

// Batching defaults.
const (
	DefaultBatchMaxSize     = 64
	DefaultFlushInterval    = 50 * time.Millisecond
	defaultFlushConcurrency = 8
)

// BatchOptions tunes the batching wrapper. Zero values fall back to defaults.
type BatchOptions struct {
	// MaxSize triggers an immediate flush when that many distinct evictions
	// are pending.
	MaxSize int

	// FlushInterval bounds how long an eviction may sit in the buffer.
	FlushInterval time.Duration

	// FlushConcurrency caps concurrent broadcasts per flush.
	FlushConcurrency int

	Logger logging.Logger
}

// BatchingProvider decorates a provider with write coalescing: bursts of
// evictions for the same entity/id/operation collapse to one broadcast, the
// last event winning. Pending evictions are flushed when the buffer reaches
// MaxSize or the flush interval elapses, whichever comes first. Coalescing
// trades a bounded delivery delay (at most FlushInterval) for far fewer
// messages under bulk-write bursts.
type BatchingProvider struct {
	CacheProvider
	opts BatchOptions

	mu      sync.Mutex
	pending map[string]types.CacheEvictionEvent
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewBatchingProvider wraps the given provider.
func NewBatchingProvider(inner CacheProvider, opts BatchOptions) *BatchingProvider {
	if opts.MaxSize <= 0 {
		opts.MaxSize = DefaultBatchMaxSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.FlushConcurrency <= 0 {
		opts.FlushConcurrency = defaultFlushConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	return &BatchingProvider{
		CacheProvider: inner,
		opts:          opts,
		pending:       make(map[string]types.CacheEvictionEvent),
	}
}

// Initialize initializes the inner provider and starts the flush ticker.
func (p *BatchingProvider) Initialize(ctx context.Context) error {
	if err := p.CacheProvider.Initialize(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.done = make(chan struct{})
	p.started = true

	p.wg.Add(1)
	go p.flushLoop(p.done)
	return nil
}

// Shutdown flushes whatever is still buffered, stops the ticker and shuts
// down the inner provider. Safe without a prior Initialize.
func (p *BatchingProvider) Shutdown() error {
	p.mu.Lock()
	if p.started {
		p.started = false
		close(p.done)
	}
	p.mu.Unlock()
	p.wg.Wait()

	p.flush(context.Background())
	return p.CacheProvider.Shutdown()
}

// BroadcastEviction buffers the event. A full buffer flushes synchronously so
// the caller observes backend errors for its own batch.
func (p *BatchingProvider) BroadcastEviction(ctx context.Context, event types.CacheEvictionEvent) error {
	p.mu.Lock()
	p.pending[coalesceKey(event)] = event
	full := len(p.pending) >= p.opts.MaxSize
	p.mu.Unlock()

	if full {
		return p.flush(ctx)
	}
	return nil
}

// Flush broadcasts all buffered evictions immediately.
func (p *BatchingProvider) Flush(ctx context.Context) error {
	return p.flush(ctx)
}

// PendingLen returns the number of buffered, not yet broadcast evictions.
func (p *BatchingProvider) PendingLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *BatchingProvider) flushLoop(done chan struct{}) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := p.flush(context.Background()); err != nil {
				p.opts.Logger.Warn("batch flush failed", "provider", p.CacheProvider.Name(), "error", err)
			}
		}
	}
}

// flush drains the buffer and fans the events out concurrently.
func (p *BatchingProvider) flush(ctx context.Context) error {
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return nil
	}
	batch := p.pending
	p.pending = make(map[string]types.CacheEvictionEvent)
	p.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.FlushConcurrency)
	for _, event := range batch {
		event := event
		g.Go(func() error {
			return p.CacheProvider.BroadcastEviction(ctx, event)
		})
	}
	return g.Wait()
}

// coalesceKey identifies evictions that supersede each other: a later write
// to the same entity id with the same operation makes the earlier broadcast
// redundant.
func coalesceKey(event types.CacheEvictionEvent) string {
	id := ""
	if event.EntityID != nil {
		id = *event.EntityID
	}
	return event.EntityName + "|" + id + "|" + string(event.Operation)
}
