package repository

import (
	"context"
	"regexp"
	"strings"

	"github.com/minhng/evictsync/identity"
	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/registry"
	"github.com/minhng/evictsync/txn"
	"github.com/minhng/evictsync/types"
)

type hintsKeyType struct{}

var hintsKey hintsKeyType

// ContextWithHints attaches explicit eviction hints to the next intercepted
// write operation. Hints take precedence over automatic statement parsing
// and are mandatory for statements the parser cannot understand (joins,
// subqueries, native SQL, stored procedures).
func ContextWithHints(ctx context.Context, hints ...types.EvictionHint) context.Context {
	return context.WithValue(ctx, hintsKey, hints)
}

// HintsFrom returns the hints attached to the context, if any.
func HintsFrom(ctx context.Context) []types.EvictionHint {
	hints, _ := ctx.Value(hintsKey).([]types.EvictionHint)
	return hints
}

// Bulk statements are matched case-insensitively; the captured group is the
// target entity's (possibly qualified) name.
var (
	bulkUpdatePattern = regexp.MustCompile(`(?i)^\s*update\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	bulkDeletePattern = regexp.MustCompile(`(?i)^\s*delete\s+from\s+([A-Za-z_][A-Za-z0-9_.]*)`)
)

// Intercepted decorates a Repository so every successful data-mutating
// operation schedules the matching pending evictions with the transaction
// collector. Interception never fails the underlying write: every error on
// the eviction path is caught, logged and recovered locally.
type Intercepted[T any] struct {
	base      Repository[T]
	reg       *registry.Registry
	extractor identity.Extractor
	collector *txn.Collector
	logger    logging.Logger

	entry      registry.Entry
	registered bool
}

// NewIntercepted wraps a repository with write interception. If T is not
// registered as cacheable the decorator is a pure pass-through.
func NewIntercepted[T any](base Repository[T], reg *registry.Registry, extractor identity.Extractor, collector *txn.Collector, logger logging.Logger) *Intercepted[T] {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	var sample T
	entry, registered := reg.LookupType(&sample)
	return &Intercepted[T]{
		base:       base,
		reg:        reg,
		extractor:  extractor,
		collector:  collector,
		logger:     logger,
		entry:      entry,
		registered: registered,
	}
}

// Insert persists the entity and schedules an id-scoped eviction.
func (r *Intercepted[T]) Insert(ctx context.Context, entity *T) error {
	if err := r.base.Insert(ctx, entity); err != nil {
		return err
	}
	r.scheduleSingle(ctx, entity, types.OpInsert)
	return nil
}

// InsertMany persists the batch and schedules one whole-class eviction.
// Correctness over precision: per-id extraction for N items is not worth it.
func (r *Intercepted[T]) InsertMany(ctx context.Context, entities []*T) error {
	if err := r.base.InsertMany(ctx, entities); err != nil {
		return err
	}
	if len(entities) > 0 {
		r.scheduleWholeClass(ctx, types.OpInsert, false)
	}
	return nil
}

// Update updates the entity and schedules an id-scoped eviction.
func (r *Intercepted[T]) Update(ctx context.Context, entity *T) error {
	if err := r.base.Update(ctx, entity); err != nil {
		return err
	}
	r.scheduleSingle(ctx, entity, types.OpUpdate)
	return nil
}

// Delete deletes the entity and schedules an id-scoped eviction.
func (r *Intercepted[T]) Delete(ctx context.Context, entity *T) error {
	if err := r.base.Delete(ctx, entity); err != nil {
		return err
	}
	r.scheduleSingle(ctx, entity, types.OpDelete)
	return nil
}

// DeleteMany deletes the batch and schedules one whole-class eviction.
func (r *Intercepted[T]) DeleteMany(ctx context.Context, entities []*T) error {
	if err := r.base.DeleteMany(ctx, entities); err != nil {
		return err
	}
	if len(entities) > 0 {
		r.scheduleWholeClass(ctx, types.OpDelete, false)
	}
	return nil
}

// UpdateQuery runs the bulk statement and schedules a BULK_UPDATE for the
// parsed target entity.
func (r *Intercepted[T]) UpdateQuery(ctx context.Context, query string, args ...any) (int64, error) {
	affected, err := r.base.UpdateQuery(ctx, query, args...)
	if err != nil {
		return affected, err
	}
	r.scheduleStatement(ctx, "UpdateQuery", query)
	return affected, nil
}

// DeleteQuery runs the bulk statement and schedules a BULK_DELETE for the
// parsed target entity.
func (r *Intercepted[T]) DeleteQuery(ctx context.Context, query string, args ...any) (int64, error) {
	affected, err := r.base.DeleteQuery(ctx, query, args...)
	if err != nil {
		return affected, err
	}
	r.scheduleStatement(ctx, "DeleteQuery", query)
	return affected, nil
}

// Exec runs a native statement. The statement text is never parsed; without
// hints nothing is scheduled.
func (r *Intercepted[T]) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	affected, err := r.base.Exec(ctx, query, args...)
	if err != nil {
		return affected, err
	}
	if hints := HintsFrom(ctx); len(hints) > 0 {
		r.scheduleHints(ctx, hints, types.OpBulkUpdate)
	} else {
		r.logger.Debug("native statement without eviction hints, nothing scheduled")
	}
	return affected, nil
}

// scheduleSingle schedules an id-scoped eviction for one entity. Identity
// extraction failure widens to a whole-class eviction; the eviction is never
// dropped and the write never fails.
func (r *Intercepted[T]) scheduleSingle(ctx context.Context, entity *T, op types.Operation) {
	defer r.recoverScheduling()

	if hints := HintsFrom(ctx); len(hints) > 0 {
		r.scheduleHints(ctx, hints, op)
		return
	}
	if !r.registered {
		return
	}

	id, err := r.extractor.ExtractID(entity)
	if err != nil {
		r.logger.Warn("identity extraction failed, widening to whole-class eviction",
			"entity", r.entry.Name, "error", err)
		id = nil
	}
	r.collector.Add(ctx, types.PendingEviction{
		EntityName: r.entry.Name,
		EntityID:   id,
		Operation:  op,
	})
}

// scheduleWholeClass schedules a whole-class eviction for T.
func (r *Intercepted[T]) scheduleWholeClass(ctx context.Context, op types.Operation, evictQueries bool) {
	defer r.recoverScheduling()

	if hints := HintsFrom(ctx); len(hints) > 0 {
		r.scheduleHints(ctx, hints, op)
		return
	}
	if !r.registered {
		return
	}
	r.collector.Add(ctx, types.PendingEviction{
		EntityName:      r.entry.Name,
		Operation:       op,
		EvictQueryCache: evictQueries,
	})
}

// scheduleStatement parses a JPQL-style bulk statement, resolves the target
// entity against the registry and schedules a bulk eviction. Unregistered or
// unparseable targets are skipped entirely.
func (r *Intercepted[T]) scheduleStatement(ctx context.Context, method, query string) {
	defer r.recoverScheduling()

	op := classifyBulk(method)

	if hints := HintsFrom(ctx); len(hints) > 0 {
		r.scheduleHints(ctx, hints, op)
		return
	}

	simple, ok := parseBulkTarget(query)
	if !ok {
		r.logger.Warn("could not parse bulk statement target, use eviction hints", "query", query)
		return
	}
	entry, ok := r.reg.LookupSimple(simple)
	if !ok {
		r.logger.Debug("bulk statement targets a non-cacheable entity, nothing to evict", "entity", simple)
		return
	}

	r.collector.Add(ctx, types.PendingEviction{
		EntityName:      entry.Name,
		Operation:       op,
		EvictQueryCache: true,
	})
}

// scheduleHints schedules one eviction per explicit hint, resolving entity
// names against the registry.
func (r *Intercepted[T]) scheduleHints(ctx context.Context, hints []types.EvictionHint, op types.Operation) {
	for _, hint := range hints {
		entry, ok := r.reg.Lookup(hint.Entity)
		if !ok {
			entry, ok = r.reg.LookupSimple(hint.Entity)
		}
		if !ok {
			r.logger.Warn("eviction hint names an unregistered entity, skipping", "entity", hint.Entity)
			continue
		}
		r.collector.Add(ctx, types.PendingEviction{
			EntityName:      entry.Name,
			Region:          hint.Region,
			Operation:       op,
			EvictQueryCache: hint.EvictQueryCache,
		})
	}
}

// recoverScheduling keeps any panic on the eviction path away from the
// caller of the underlying write.
func (r *Intercepted[T]) recoverScheduling() {
	if rec := recover(); rec != nil {
		r.logger.Error("eviction scheduling panicked, write unaffected", "panic", rec)
	}
}

// parseBulkTarget extracts the target entity's simple name from an
// "UPDATE Entity ..." or "DELETE FROM Entity ..." statement.
func parseBulkTarget(query string) (string, bool) {
	var target string
	if m := bulkUpdatePattern.FindStringSubmatch(query); m != nil {
		target = m[1]
	} else if m := bulkDeletePattern.FindStringSubmatch(query); m != nil {
		target = m[1]
	} else {
		return "", false
	}
	// Qualified names keep only the simple segment.
	if i := strings.LastIndex(target, "."); i >= 0 {
		target = target[i+1:]
	}
	return target, target != ""
}

// classifyBulk maps the invoked method's name to a bulk operation: methods
// whose names mention delete or remove are BULK_DELETE, everything else is
// BULK_UPDATE.
func classifyBulk(method string) types.Operation {
	lower := strings.ToLower(method)
	if strings.Contains(lower, "delete") || strings.Contains(lower, "remove") {
		return types.OpBulkDelete
	}
	return types.OpBulkUpdate
}
