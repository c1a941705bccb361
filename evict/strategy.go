// Package evict applies pending evictions to the local second-level cache
// and propagates them to peer nodes, and applies remote events received from
// peers. Local eviction always happens first: even when every distributed
// backend is down, the originating node never serves its own stale entry.
package evict

import (
	"context"

	"github.com/minhng/evictsync/l2cache"
	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/provider"
	"github.com/minhng/evictsync/querycache"
	"github.com/minhng/evictsync/registry"
	"github.com/minhng/evictsync/types"
)

// Strategy turns pending evictions into local cache operations plus one
// broadcast per eviction, and handles the receive side symmetrically.
type Strategy struct {
	nodeID  string
	reg     *registry.Registry
	l2      l2cache.RegionCache
	queries *querycache.QueryCache
	factory *provider.Factory
	logger  logging.Logger
}

// NewStrategy wires the strategy. The query cache may be nil when query
// caching is disabled.
func NewStrategy(nodeID string, reg *registry.Registry, l2 l2cache.RegionCache, queries *querycache.QueryCache, factory *provider.Factory, logger logging.Logger) *Strategy {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Strategy{
		nodeID:  nodeID,
		reg:     reg,
		l2:      l2,
		queries: queries,
		factory: factory,
		logger:  logger,
	}
}

// Evict applies one pending eviction: local entity cache first, then query
// regions when the write invalidates derived results, then a broadcast to
// peers. Broadcast failures degrade to local-only eviction and are logged,
// never propagated; peers absorb the miss within the staleness window.
func (s *Strategy) Evict(ctx context.Context, pending types.PendingEviction) error {
	region := pending.Region
	if region == "" {
		region = s.reg.RegionFor(pending.EntityName)
	}

	if pending.EntityID != nil {
		s.l2.Evict(region, types.KeyString(pending.EntityID))
	} else {
		s.l2.EvictRegion(region)
	}
	s.evictQueryRegions(pending.EntityName, region, pending.EvictQueryCache || pending.IsBulk())

	event := types.NewCacheEvictionEvent(pending.EntityName, pending.EntityID, region, pending.Operation).WithNodeID(s.nodeID)
	prov := s.factory.SelectBestAvailable(ctx)
	if prov == nil {
		s.logger.Error("no eviction provider configured", "eventId", event.EventID)
		return nil
	}
	if err := prov.BroadcastEviction(ctx, event); err != nil {
		s.logger.Error("eviction broadcast failed, peers may serve stale entries",
			"provider", prov.Name(), "eventId", event.EventID, "entity", pending.EntityName, "error", err)
	}
	return nil
}

// HandleRemote applies an event received from a peer. It never re-broadcasts;
// self-suppression and dedup already ran in the provider layer.
func (s *Strategy) HandleRemote(event types.CacheEvictionEvent) {
	region := event.RegionOrDefault(s.reg.RegionFor(event.EntityName))

	if event.EntityID != nil {
		s.l2.Evict(region, *event.EntityID)
	} else {
		s.l2.EvictRegion(region)
	}
	s.evictQueryRegions(event.EntityName, region, event.Operation.IsBulk())

	s.logger.Debug("remote eviction applied",
		"eventId", event.EventID, "entity", event.EntityName, "region", region, "origin", event.NodeID)
}

// ManualEvictRegion clears a region locally and broadcasts a region-wide
// eviction so every node follows. Used by the administrative surface.
func (s *Strategy) ManualEvictRegion(ctx context.Context, region string) error {
	s.l2.EvictRegion(region)
	if s.queries != nil {
		s.queries.EvictRegion(region)
	}

	event := types.NewCacheEvictionEvent("", nil, region, types.OpBulkDelete).WithNodeID(s.nodeID)
	prov := s.factory.SelectBestAvailable(ctx)
	if prov == nil {
		return nil
	}
	return prov.BroadcastEviction(ctx, event)
}

// evictQueryRegions drops cached query results that the write may have
// invalidated. Registered entities name their query regions explicitly; when
// none are declared the entity's own region is used.
func (s *Strategy) evictQueryRegions(entityName, region string, invalidated bool) {
	if !invalidated || s.queries == nil {
		return
	}
	regions := s.reg.QueryRegionsFor(entityName)
	if len(regions) == 0 {
		regions = []string{region}
	}
	for _, qr := range regions {
		if n := s.queries.EvictRegion(qr); n > 0 {
			s.logger.Debug("query results invalidated", "region", qr, "count", n)
		}
	}
}
