package types

import (
	"testing"
)

func TestNewCacheEvictionEventMintsID(t *testing.T) {
	ev1 := NewCacheEvictionEvent("app.Order", 42, "", OpUpdate)
	ev2 := NewCacheEvictionEvent("app.Order", 42, "", OpUpdate)

	if ev1.EventID == "" {
		t.Fatal("EventID should be minted at creation")
	}
	if ev1.EventID == ev2.EventID {
		t.Fatal("distinct events must never share an EventID")
	}
	if ev1.EntityID == nil || *ev1.EntityID != "42" {
		t.Fatalf("expected entity id '42', got %v", ev1.EntityID)
	}
	if ev1.Region != nil {
		t.Fatalf("empty region should map to nil, got %v", *ev1.Region)
	}
}

func TestNewCacheEvictionEventBulk(t *testing.T) {
	ev := NewCacheEvictionEvent("app.Order", nil, "orders", OpBulkDelete)
	if ev.EntityID != nil {
		t.Fatalf("bulk event should carry nil entity id, got %v", *ev.EntityID)
	}
	if ev.Region == nil || *ev.Region != "orders" {
		t.Fatalf("expected region 'orders', got %v", ev.Region)
	}
}

func TestWithNodeIDPreservesEventID(t *testing.T) {
	ev := NewCacheEvictionEvent("app.Order", 1, "", OpDelete)
	copied := ev.WithNodeID("node-2")

	if copied.EventID != ev.EventID {
		t.Fatalf("WithNodeID must not change EventID: %s != %s", copied.EventID, ev.EventID)
	}
	if copied.NodeID != "node-2" {
		t.Fatalf("expected node id 'node-2', got %s", copied.NodeID)
	}
	if ev.NodeID != "" {
		t.Fatal("WithNodeID must not mutate the original event")
	}
	if copied.EntityName != ev.EntityName || copied.Operation != ev.Operation || copied.Timestamp != ev.Timestamp {
		t.Fatal("WithNodeID must preserve all other fields")
	}
}

func TestOperationIsBulk(t *testing.T) {
	bulk := []Operation{OpBulkUpdate, OpBulkDelete}
	for _, op := range bulk {
		if !op.IsBulk() {
			t.Fatalf("%s should be bulk", op)
		}
	}
	single := []Operation{OpInsert, OpUpdate, OpDelete}
	for _, op := range single {
		if op.IsBulk() {
			t.Fatalf("%s should not be bulk", op)
		}
	}
}

func TestPendingEvictionIsBulk(t *testing.T) {
	pe := PendingEviction{EntityName: "app.Order", Operation: OpDelete, EntityID: int64(7)}
	if pe.IsBulk() {
		t.Fatal("eviction with an id should not be bulk")
	}

	pe.EntityID = nil
	if !pe.IsBulk() {
		t.Fatal("nil entity id must be treated as whole-class eviction")
	}
}

func TestCompletedEventDefensiveCopy(t *testing.T) {
	src := []PendingEviction{
		{EntityName: "app.Order", EntityID: 1, Operation: OpUpdate},
	}
	ev := NewCompletedEvent(src)

	// Mutating the source slice must not affect the event.
	src[0].EntityName = "app.Customer"
	if got := ev.Evictions()[0].EntityName; got != "app.Order" {
		t.Fatalf("constructor must copy the slice, got %s", got)
	}

	// Mutating the accessor's result must not affect the event either.
	out := ev.Evictions()
	out[0].EntityName = "app.Invoice"
	if got := ev.Evictions()[0].EntityName; got != "app.Order" {
		t.Fatalf("accessor must return a copy, got %s", got)
	}
}

func TestCompletedEventEmpty(t *testing.T) {
	ev := NewCompletedEvent(nil)
	if ev.Len() != 0 {
		t.Fatalf("expected empty event, got %d entries", ev.Len())
	}
	if got := ev.Evictions(); len(got) != 0 {
		t.Fatalf("expected no evictions, got %v", got)
	}
}

func TestKeyString(t *testing.T) {
	if got := KeyString(42); got != "42" {
		t.Fatalf("expected '42', got %s", got)
	}
	if got := KeyString("abc"); got != "abc" {
		t.Fatalf("expected 'abc', got %s", got)
	}
}
