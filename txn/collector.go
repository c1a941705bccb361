package txn

import (
	"context"
	"sync"

	"github.com/uptrace/bun"

	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/types"
)

type ctxKeyType struct{}

var ctxKey ctxKeyType

// buffer accumulates pending evictions for one transaction.
type buffer struct {
	mu      sync.Mutex
	pending []types.PendingEviction
	closed  bool
}

// CommitHook consumes the completed event published after a successful
// commit. Hooks run synchronously on the committing goroutine so no read can
// race ahead of its own write's local eviction.
type CommitHook func(ctx context.Context, event types.CompletedEvent)

// Collector buffers pending evictions for the transaction bound to the
// calling context. On commit it publishes exactly one CompletedEvent; on
// rollback it discards everything. An invalidation never becomes visible
// before the write it represents is durable, and never fires for a write
// that never happened.
type Collector struct {
	mu     sync.RWMutex
	hooks  []CommitHook
	logger logging.Logger
}

// NewCollector creates a collector. A nil logger defaults to no-op.
func NewCollector(logger logging.Logger) *Collector {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Collector{logger: logger}
}

// OnCommit registers a consumer for completed events.
func (c *Collector) OnCommit(hook CommitHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hooks = append(c.hooks, hook)
}

// Begin binds a fresh eviction buffer to the context. If the context already
// carries an open buffer the outer transaction owns the lifecycle and the
// context is returned unchanged.
func (c *Collector) Begin(ctx context.Context) context.Context {
	if c.Active(ctx) {
		return ctx
	}
	return context.WithValue(ctx, ctxKey, &buffer{})
}

// Active reports whether the context carries an open eviction buffer.
func (c *Collector) Active(ctx context.Context) bool {
	buf, ok := ctx.Value(ctxKey).(*buffer)
	if !ok {
		return false
	}
	buf.mu.Lock()
	defer buf.mu.Unlock()
	return !buf.closed
}

// Add schedules a pending eviction. Inside a transaction it is buffered
// until commit; outside one the write is effectively its own committed
// transaction, so the eviction is published immediately.
func (c *Collector) Add(ctx context.Context, eviction types.PendingEviction) {
	buf, ok := ctx.Value(ctxKey).(*buffer)
	if ok {
		buf.mu.Lock()
		if !buf.closed {
			buf.pending = append(buf.pending, eviction)
			buf.mu.Unlock()
			return
		}
		buf.mu.Unlock()
	}

	c.logger.Debug("no active transaction, publishing eviction immediately",
		"entity", eviction.EntityName, "operation", eviction.Operation)
	c.publish(ctx, types.NewCompletedEvent([]types.PendingEviction{eviction}))
}

// Commit closes the context's buffer and publishes one CompletedEvent when
// at least one eviction was collected. Transactions that touched only
// non-cacheable types publish nothing.
func (c *Collector) Commit(ctx context.Context) {
	snapshot := c.drain(ctx)
	if len(snapshot) == 0 {
		return
	}
	c.publish(ctx, types.NewCompletedEvent(snapshot))
}

// Rollback closes the context's buffer and discards everything collected.
func (c *Collector) Rollback(ctx context.Context) {
	if dropped := c.drain(ctx); len(dropped) > 0 {
		c.logger.Debug("transaction rolled back, discarding pending evictions", "count", len(dropped))
	}
}

// RunInTx runs fn inside a bun transaction with the eviction buffer fused to
// it: the completed event is published strictly after the SQL COMMIT
// returns, and a rollback discards the buffer. When the context already
// carries an open buffer the call joins the outer transaction and leaves the
// buffer lifecycle to it.
func (c *Collector) RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	if c.Active(ctx) {
		return db.RunInTx(ctx, nil, fn)
	}

	ctx = c.Begin(ctx)
	if err := db.RunInTx(ctx, nil, fn); err != nil {
		c.Rollback(ctx)
		return err
	}
	c.Commit(ctx)
	return nil
}

// drain atomically closes the buffer and returns its contents. A second
// drain of the same buffer yields nothing, so commit-then-rollback misuse
// cannot double-publish.
func (c *Collector) drain(ctx context.Context) []types.PendingEviction {
	buf, ok := ctx.Value(ctxKey).(*buffer)
	if !ok {
		return nil
	}
	buf.mu.Lock()
	defer buf.mu.Unlock()
	if buf.closed {
		return nil
	}
	buf.closed = true
	snapshot := buf.pending
	buf.pending = nil
	return snapshot
}

// publish delivers the event to every registered hook on this goroutine.
func (c *Collector) publish(ctx context.Context, event types.CompletedEvent) {
	c.mu.RLock()
	hooks := c.hooks
	c.mu.RUnlock()

	for _, hook := range hooks {
		hook(ctx, event)
	}
}
