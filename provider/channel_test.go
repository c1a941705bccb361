package provider

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/minhng/evictsync/types"
)

// recorder captures delivered events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []types.CacheEvictionEvent
}

func (r *recorder) listen(event types.CacheEvictionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *recorder) last() types.CacheEvictionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newChannelNode(t *testing.T, bus *Bus, nodeID string) (*ChannelProvider, *recorder) {
	t.Helper()
	p := NewChannelProvider(ChannelOptions{Bus: bus, NodeID: nodeID, Metrics: NewMetrics()})
	rec := &recorder{}
	p.SubscribeToEvictions(rec.listen)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize %s: %v", nodeID, err)
	}
	t.Cleanup(func() { _ = p.Shutdown() })
	return p, rec
}

func TestChannelCrossNodeDelivery(t *testing.T) {
	bus := NewBus()
	a, _ := newChannelNode(t, bus, "node-a")
	_, recB := newChannelNode(t, bus, "node-b")

	event := types.NewCacheEvictionEvent("app.Order", "42", "orders", types.OpUpdate).WithNodeID("node-a")
	if err := a.BroadcastEviction(context.Background(), event); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	waitFor(t, time.Second, func() bool { return recB.count() == 1 })
	got := recB.last()
	if got.EventID != event.EventID {
		t.Fatalf("eventId = %q, want %q", got.EventID, event.EventID)
	}
	if got.EntityName != "app.Order" || got.EntityID == nil || *got.EntityID != "42" {
		t.Fatalf("unexpected event payload: %+v", got)
	}
}

func TestChannelSelfSuppression(t *testing.T) {
	bus := NewBus()
	a, recA := newChannelNode(t, bus, "node-a")
	_, recB := newChannelNode(t, bus, "node-b")

	event := types.NewCacheEvictionEvent("app.Order", "1", "orders", types.OpDelete).WithNodeID("node-a")
	if err := a.BroadcastEviction(context.Background(), event); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	waitFor(t, time.Second, func() bool { return recB.count() == 1 })
	// Give the sender's own inbox time to drain before asserting nothing
	// was applied locally.
	time.Sleep(20 * time.Millisecond)
	if recA.count() != 0 {
		t.Fatalf("sender applied %d of its own events, want 0", recA.count())
	}
}

func TestChannelDuplicateDeliveryIsIdempotent(t *testing.T) {
	bus := NewBus()
	a, _ := newChannelNode(t, bus, "node-a")
	_, recB := newChannelNode(t, bus, "node-b")

	event := types.NewCacheEvictionEvent("app.Order", "7", "orders", types.OpUpdate).WithNodeID("node-a")
	for i := 0; i < 5; i++ {
		if err := a.BroadcastEviction(context.Background(), event); err != nil {
			t.Fatalf("broadcast %d: %v", i, err)
		}
	}

	waitFor(t, time.Second, func() bool { return recB.count() >= 1 })
	time.Sleep(20 * time.Millisecond)
	if recB.count() != 1 {
		t.Fatalf("duplicate event applied %d times, want 1", recB.count())
	}
}

func TestChannelBroadcastBeforeInitialize(t *testing.T) {
	p := NewChannelProvider(ChannelOptions{Bus: NewBus(), NodeID: "node-a"})
	event := types.NewCacheEvictionEvent("app.Order", "1", "orders", types.OpInsert)
	if err := p.BroadcastEviction(context.Background(), event); err != ErrNotInitialized {
		t.Fatalf("err = %v, want ErrNotInitialized", err)
	}
}

func TestChannelShutdownLeavesBus(t *testing.T) {
	bus := NewBus()
	a, _ := newChannelNode(t, bus, "node-a")
	newChannelNode(t, bus, "node-b")

	if bus.size() != 2 {
		t.Fatalf("bus size = %d, want 2", bus.size())
	}
	if err := a.Shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if bus.size() != 1 {
		t.Fatalf("bus size after shutdown = %d, want 1", bus.size())
	}
	// Second shutdown is a no-op.
	if err := a.Shutdown(); err != nil {
		t.Fatalf("repeat shutdown: %v", err)
	}
}
