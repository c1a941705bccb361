package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Operation identifies the kind of data mutation that produced an eviction.
type Operation string

// Operation constants for eviction events.
const (
	OpInsert     Operation = "INSERT"
	OpUpdate     Operation = "UPDATE"
	OpDelete     Operation = "DELETE"
	OpBulkUpdate Operation = "BULK_UPDATE"
	OpBulkDelete Operation = "BULK_DELETE"
)

// IsBulk reports whether the operation targets an unbounded set of rows
// identified by a predicate rather than by primary key.
func (o Operation) IsBulk() bool {
	return o == OpBulkUpdate || o == OpBulkDelete
}

// String returns the wire form of the operation.
func (o Operation) String() string {
	return string(o)
}

// PendingEviction describes one cache invalidation deferred until the
// surrounding transaction commits. A nil EntityID means the whole class
// cache is evicted instead of a single key.
type PendingEviction struct {
	// EntityName is the registered name of the entity, carried as a string
	// rather than a live type reference so the record survives publication
	// across package boundaries.
	EntityName string

	// EntityID is the identity of the mutated row. Nil means bulk.
	EntityID any

	// Region optionally overrides the registry's cache region.
	Region string

	// Operation records what kind of write produced this eviction.
	Operation Operation

	// EvictQueryCache requests eviction of the named query-cache regions
	// associated with the entity.
	EvictQueryCache bool
}

// IsBulk reports whether the eviction targets the whole class cache.
func (p PendingEviction) IsBulk() bool {
	return p.EntityID == nil
}

// CompletedEvent carries the evictions collected by one committed
// transaction. The slice is copied on construction and on access so
// consumers can never mutate the collector's buffer.
type CompletedEvent struct {
	evictions []PendingEviction
}

// NewCompletedEvent builds a CompletedEvent from a snapshot of the given
// evictions. An empty list is valid and treated as a no-op by consumers.
func NewCompletedEvent(evictions []PendingEviction) CompletedEvent {
	snapshot := make([]PendingEviction, len(evictions))
	copy(snapshot, evictions)
	return CompletedEvent{evictions: snapshot}
}

// Evictions returns a copy of the collected evictions.
func (e CompletedEvent) Evictions() []PendingEviction {
	out := make([]PendingEviction, len(e.evictions))
	copy(out, e.evictions)
	return out
}

// Len returns the number of collected evictions.
func (e CompletedEvent) Len() int {
	return len(e.evictions)
}

// CacheEvictionEvent is the wire-level record broadcast to peer nodes.
// EventID is minted exactly once and is the sole basis for deduplication.
// WithNodeID is the only permitted transform and never changes EventID.
type CacheEvictionEvent struct {
	EventID    string    `json:"eventId" msgpack:"eventId"`
	EntityName string    `json:"entityClass" msgpack:"entityClass"`
	EntityID   *string   `json:"entityId" msgpack:"entityId"`
	Region     *string   `json:"region" msgpack:"region"`
	Operation  Operation `json:"operation" msgpack:"operation"`
	Timestamp  int64     `json:"timestamp" msgpack:"timestamp"`
	NodeID     string    `json:"nodeId" msgpack:"nodeId"`
}

// NewCacheEvictionEvent mints a new event with a fresh EventID. A nil
// entityID marks a whole-class eviction; an empty region means the receiver
// resolves the region from its own registry.
func NewCacheEvictionEvent(entityName string, entityID any, region string, op Operation) CacheEvictionEvent {
	ev := CacheEvictionEvent{
		EventID:    uuid.NewString(),
		EntityName: entityName,
		Operation:  op,
		Timestamp:  time.Now().UnixMilli(),
	}
	if entityID != nil {
		id := KeyString(entityID)
		ev.EntityID = &id
	}
	if region != "" {
		r := region
		ev.Region = &r
	}
	return ev
}

// WithNodeID returns a copy of the event carrying the given origin node id.
// All other fields, EventID included, are preserved unchanged.
func (e CacheEvictionEvent) WithNodeID(nodeID string) CacheEvictionEvent {
	e.NodeID = nodeID
	return e
}

// RegionOrDefault returns the event's region override, or fallback when the
// event carries none.
func (e CacheEvictionEvent) RegionOrDefault(fallback string) string {
	if e.Region != nil && *e.Region != "" {
		return *e.Region
	}
	return fallback
}

// EvictionHint declares, per intercepted write operation, a target entity to
// evict. Hints always take precedence over automatic statement parsing and
// are mandatory for statements the parser cannot understand (joins,
// subqueries, native SQL, stored procedures).
type EvictionHint struct {
	// Entity is the registered entity name; simple names are resolved
	// case-insensitively against the registry.
	Entity string

	// Region optionally overrides the entity's cache region.
	Region string

	// EvictQueryCache requests eviction of associated named query caches.
	EvictQueryCache bool
}

// KeyString renders an entity identity as a cache key segment.
func KeyString(id any) string {
	if s, ok := id.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", id)
}
