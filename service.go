// Package evictsync keeps the second-level caches of a cluster of stateless
// nodes consistent with one shared relational database. Writes are
// intercepted, their evictions collected per transaction, and one event per
// committed transaction is dispatched: the local cache is evicted first,
// then peers are told over the best available provider.
package evictsync

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/minhng/evictsync/admin"
	"github.com/minhng/evictsync/dispatch"
	"github.com/minhng/evictsync/evict"
	"github.com/minhng/evictsync/identity"
	"github.com/minhng/evictsync/l2cache"
	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/provider"
	"github.com/minhng/evictsync/querycache"
	"github.com/minhng/evictsync/registry"
	"github.com/minhng/evictsync/repository"
	"github.com/minhng/evictsync/txn"
	"github.com/minhng/evictsync/types"
)

// Service owns one node's invalidation pipeline: registry, local caches,
// transaction collector, dispatcher and the provider chain.
type Service struct {
	cfg       Config
	logger    logging.Logger
	reg       *registry.Registry
	extractor identity.Extractor
	l2        l2cache.RegionCache
	queries   *querycache.QueryCache
	metrics   *provider.Metrics
	factory   *provider.Factory
	monitor   *provider.ClusterMonitor
	strategy  *evict.Strategy
	collector *txn.Collector
	admin     *admin.Admin
}

// New assembles a service from the configuration. Providers are constructed
// but not connected; call Start before writing through the repositories.
func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}

	codec, err := types.CodecFor(cfg.SerializationFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cacheFactory := cfg.LocalCacheFactory
	if cacheFactory == nil {
		cacheFactory = l2cache.NewLFUFactory(cfg.LocalCacheConfig)
	}
	l2, err := cacheFactory.Create()
	if err != nil {
		return nil, fmt.Errorf("create local cache: %w", err)
	}

	var queries *querycache.QueryCache
	if cfg.EnableQueryCache {
		queries = querycache.New(cfg.QueryCacheConfig)
	}

	metrics := provider.NewMetrics()
	providers := buildProviders(cfg, codec, logger, metrics)
	factory := provider.NewFactory(logger, providers...)

	reg := registry.New()
	strategy := evict.NewStrategy(cfg.NodeID, reg, l2, queries, factory, logger)
	for _, p := range providers {
		p.SubscribeToEvictions(strategy.HandleRemote)
	}

	dispatcher := dispatch.New(reg, strategy, logger)
	collector := txn.NewCollector(logger)
	collector.OnCommit(dispatcher.Hook())

	monitor := provider.NewClusterMonitor(factory, cfg.ProbeInterval, logger)

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		reg:       reg,
		extractor: identity.NewReflectExtractor(),
		l2:        l2,
		queries:   queries,
		metrics:   metrics,
		factory:   factory,
		monitor:   monitor,
		strategy:  strategy,
		collector: collector,
	}
	s.admin = admin.New(admin.Options{
		NodeID:   cfg.NodeID,
		Factory:  factory,
		Monitor:  monitor,
		Metrics:  metrics,
		L2:       l2,
		Queries:  queries,
		Evictor:  strategy,
		Entities: reg.Len,
		Logger:   logger,
	})
	return s, nil
}

// buildProviders assembles the provider chain in preference order: Redis
// when configured, then the in-process bus when attached, then the local
// terminal fallback. The remote providers get retry and optional batching
// wrappers; the fallback stays bare since it cannot fail.
func buildProviders(cfg Config, codec types.Codec, logger logging.Logger, metrics *provider.Metrics) []provider.CacheProvider {
	var providers []provider.CacheProvider

	wrap := func(p provider.CacheProvider) provider.CacheProvider {
		wrapped := provider.CacheProvider(provider.NewRetryProvider(p, provider.RetryOptions{
			MaxRetries: cfg.MaxRetries,
			Logger:     logger,
		}))
		if cfg.EnableBatching {
			wrapped = provider.NewBatchingProvider(wrapped, provider.BatchOptions{
				MaxSize:       cfg.BatchMaxSize,
				FlushInterval: cfg.FlushInterval,
				Logger:        logger,
			})
		}
		return wrapped
	}

	if cfg.RedisAddr != "" {
		providers = append(providers, wrap(provider.NewRedisProvider(provider.RedisOptions{
			Addr:          cfg.RedisAddr,
			Password:      cfg.RedisPassword,
			DB:            cfg.RedisDB,
			Channel:       cfg.EvictionChannel,
			NodeID:        cfg.NodeID,
			Codec:         codec,
			DedupCapacity: cfg.DedupCapacity,
			DedupWindow:   cfg.DedupWindow,
			SweepInterval: cfg.SweepInterval,
			Logger:        logger,
			Metrics:       metrics,
		})))
	}
	if cfg.Bus != nil {
		providers = append(providers, wrap(provider.NewChannelProvider(provider.ChannelOptions{
			Bus:           cfg.Bus,
			NodeID:        cfg.NodeID,
			DedupCapacity: cfg.DedupCapacity,
			DedupWindow:   cfg.DedupWindow,
			SweepInterval: cfg.SweepInterval,
			Logger:        logger,
			Metrics:       metrics,
		})))
	}
	providers = append(providers, provider.NewLocalProvider(cfg.NodeID, logger, metrics))
	return providers
}

// Start connects the providers and begins health probing. A provider that
// fails to initialize is logged and skipped; selection degrades to the next
// one in preference order.
func (s *Service) Start(ctx context.Context) error {
	if err := s.factory.InitializeAll(ctx); err != nil {
		s.logger.Warn("some providers failed to initialize", "error", err)
	}
	s.monitor.Start(ctx)
	return nil
}

// Close stops health probing, disconnects the providers and releases the
// local caches.
func (s *Service) Close() error {
	s.monitor.Stop()
	err := s.factory.ShutdownAll()
	s.l2.Close()
	return err
}

// Register records an entity type as cacheable. Registration happens at
// startup, before Freeze.
func (s *Service) Register(sample any, opts ...registry.Option) (registry.Entry, error) {
	return s.reg.Register(sample, opts...)
}

// Freeze marks the registry as fully built; later registrations fail.
func (s *Service) Freeze() {
	s.reg.Freeze()
}

// RunInTx runs fn inside a database transaction with eviction collection
// attached: evictions scheduled during fn are buffered and dispatched as one
// event strictly after the commit succeeds. A rollback discards them.
func (s *Service) RunInTx(ctx context.Context, db *bun.DB, fn func(ctx context.Context, tx bun.Tx) error) error {
	return s.collector.RunInTx(ctx, db, fn)
}

// EvictRegion clears the region on this node and broadcasts the eviction.
func (s *Service) EvictRegion(ctx context.Context, region string) error {
	return s.admin.EvictRegion(ctx, region)
}

// Report returns the node's operational summary.
func (s *Service) Report(ctx context.Context) admin.Report {
	return s.admin.Report(ctx)
}

// Registry exposes the entity registry.
func (s *Service) Registry() *registry.Registry { return s.reg }

// Cache exposes the local second-level cache.
func (s *Service) Cache() l2cache.RegionCache { return s.l2 }

// QueryCache exposes the query-result cache; nil when disabled.
func (s *Service) QueryCache() *querycache.QueryCache { return s.queries }

// Collector exposes the transaction-scoped eviction collector.
func (s *Service) Collector() *txn.Collector { return s.collector }

// NewRepository wraps a bun-backed repository for T with write interception:
// every successful write schedules the matching cache eviction on the
// service's collector.
func NewRepository[T any](s *Service, db bun.IDB) *repository.Intercepted[T] {
	base := repository.NewBunRepository[T](db)
	return repository.NewIntercepted[T](base, s.reg, s.extractor, s.collector, s.logger)
}
