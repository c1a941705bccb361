package txn

import (
	"context"
	"testing"

	"github.com/minhng/evictsync/types"
)

func collectEvents(c *Collector) *[]types.CompletedEvent {
	events := &[]types.CompletedEvent{}
	c.OnCommit(func(ctx context.Context, event types.CompletedEvent) {
		*events = append(*events, event)
	})
	return events
}

func TestCommitPublishesExactlyOnce(t *testing.T) {
	c := NewCollector(nil)
	events := collectEvents(c)

	ctx := c.Begin(context.Background())
	c.Add(ctx, types.PendingEviction{EntityName: "app.Order", EntityID: 1, Operation: types.OpUpdate})
	c.Add(ctx, types.PendingEviction{EntityName: "app.Order", EntityID: 2, Operation: types.OpDelete})
	c.Commit(ctx)

	if len(*events) != 1 {
		t.Fatalf("expected exactly one completed event, got %d", len(*events))
	}
	if got := (*events)[0].Len(); got != 2 {
		t.Fatalf("expected 2 evictions, got %d", got)
	}

	// A second commit of the same context must not publish again.
	c.Commit(ctx)
	if len(*events) != 1 {
		t.Fatalf("double commit published %d events", len(*events))
	}
}

func TestRollbackPublishesNothing(t *testing.T) {
	c := NewCollector(nil)
	events := collectEvents(c)

	ctx := c.Begin(context.Background())
	c.Add(ctx, types.PendingEviction{EntityName: "app.Order", EntityID: 1, Operation: types.OpUpdate})
	c.Rollback(ctx)

	if len(*events) != 0 {
		t.Fatalf("rollback must publish nothing, got %d events", len(*events))
	}

	// Commit after rollback must not resurrect the buffer.
	c.Commit(ctx)
	if len(*events) != 0 {
		t.Fatalf("commit after rollback published %d events", len(*events))
	}
}

func TestEmptyCommitPublishesNothing(t *testing.T) {
	c := NewCollector(nil)
	events := collectEvents(c)

	ctx := c.Begin(context.Background())
	c.Commit(ctx)

	if len(*events) != 0 {
		t.Fatalf("transaction without cacheable writes must publish nothing, got %d", len(*events))
	}
}

func TestAddWithoutTransactionPublishesImmediately(t *testing.T) {
	c := NewCollector(nil)
	events := collectEvents(c)

	c.Add(context.Background(), types.PendingEviction{EntityName: "app.Order", EntityID: 1, Operation: types.OpInsert})

	if len(*events) != 1 {
		t.Fatalf("expected immediate publication, got %d events", len(*events))
	}
	if got := (*events)[0].Len(); got != 1 {
		t.Fatalf("expected 1 eviction, got %d", got)
	}
}

func TestBeginJoinsOuterTransaction(t *testing.T) {
	c := NewCollector(nil)
	events := collectEvents(c)

	outer := c.Begin(context.Background())
	inner := c.Begin(outer)
	if inner != outer {
		t.Fatal("Begin inside an open transaction must return the same context")
	}

	c.Add(inner, types.PendingEviction{EntityName: "app.Order", EntityID: 1, Operation: types.OpUpdate})
	c.Commit(outer)

	if len(*events) != 1 {
		t.Fatalf("expected one event from the outer commit, got %d", len(*events))
	}
}

func TestActive(t *testing.T) {
	c := NewCollector(nil)

	ctx := context.Background()
	if c.Active(ctx) {
		t.Fatal("plain context should not be active")
	}

	ctx = c.Begin(ctx)
	if !c.Active(ctx) {
		t.Fatal("begun context should be active")
	}

	c.Commit(ctx)
	if c.Active(ctx) {
		t.Fatal("committed context should no longer be active")
	}
}

func TestCompletedEventIsSnapshot(t *testing.T) {
	c := NewCollector(nil)

	var captured types.CompletedEvent
	c.OnCommit(func(ctx context.Context, event types.CompletedEvent) {
		captured = event
	})

	ctx := c.Begin(context.Background())
	pe := types.PendingEviction{EntityName: "app.Order", EntityID: 1, Operation: types.OpUpdate}
	c.Add(ctx, pe)
	c.Commit(ctx)

	got := captured.Evictions()
	got[0].EntityName = "mutated"
	if captured.Evictions()[0].EntityName != "app.Order" {
		t.Fatal("completed event must be immutable to consumers")
	}
}
