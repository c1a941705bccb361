// Package admin exposes the operational surface: a health/statistics report
// and manual region eviction across the cluster.
package admin

import (
	"context"

	"github.com/minhng/evictsync/l2cache"
	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/provider"
	"github.com/minhng/evictsync/querycache"
)

// RegionEvictor clears a cache region locally and on every peer node.
type RegionEvictor interface {
	ManualEvictRegion(ctx context.Context, region string) error
}

// Report is a point-in-time operational summary for one node.
type Report struct {
	NodeID     string
	Providers  []provider.Stats
	Health     provider.HealthSnapshot
	Events     provider.MetricsSnapshot
	CacheStats l2cache.Metrics
	QuerySize  int
	Entities   int
}

// Admin aggregates operational state and performs manual interventions.
type Admin struct {
	nodeID   string
	factory  *provider.Factory
	monitor  *provider.ClusterMonitor
	metrics  *provider.Metrics
	l2       l2cache.RegionCache
	queries  *querycache.QueryCache
	evictor  RegionEvictor
	entities func() int
	logger   logging.Logger
}

// Options wires an Admin. Monitor, Metrics and Queries are optional.
type Options struct {
	NodeID   string
	Factory  *provider.Factory
	Monitor  *provider.ClusterMonitor
	Metrics  *provider.Metrics
	L2       l2cache.RegionCache
	Queries  *querycache.QueryCache
	Evictor  RegionEvictor
	Entities func() int
	Logger   logging.Logger
}

// New creates the admin surface.
func New(opts Options) *Admin {
	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	return &Admin{
		nodeID:   opts.NodeID,
		factory:  opts.Factory,
		monitor:  opts.Monitor,
		metrics:  opts.Metrics,
		l2:       opts.L2,
		queries:  opts.Queries,
		evictor:  opts.Evictor,
		entities: opts.Entities,
		logger:   opts.Logger,
	}
}

// Report assembles the current operational summary. Provider stats are
// recomputed on demand; the health snapshot comes from the monitor's last
// probe and never blocks on the network.
func (a *Admin) Report(ctx context.Context) Report {
	report := Report{
		NodeID: a.nodeID,
		Events: a.metrics.Snapshot(),
	}
	if a.factory != nil {
		for _, p := range a.factory.Providers() {
			report.Providers = append(report.Providers, p.Stats(ctx))
		}
	}
	if a.monitor != nil {
		report.Health = a.monitor.Snapshot()
	}
	if a.l2 != nil {
		report.CacheStats = a.l2.Metrics()
	}
	if a.queries != nil {
		report.QuerySize = a.queries.Size()
	}
	if a.entities != nil {
		report.Entities = a.entities()
	}
	return report
}

// EvictRegion clears the region on this node and broadcasts the eviction to
// the cluster.
func (a *Admin) EvictRegion(ctx context.Context, region string) error {
	a.logger.Info("manual region eviction requested", "region", region)
	return a.evictor.ManualEvictRegion(ctx, region)
}
