package evictsync

import (
	"time"

	"github.com/minhng/evictsync/l2cache"
	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/provider"
	"github.com/minhng/evictsync/querycache"
)

// Config configures one evictsync node.
type Config struct {
	// NodeID is the unique identifier for this node/instance.
	// Used to suppress self-invalidation on broadcast.
	NodeID string

	// LocalCacheConfig configures the local second-level cache.
	LocalCacheConfig l2cache.Config

	// LocalCacheFactory creates the local cache instance.
	// If nil, defaults to the ristretto (LFU) factory.
	LocalCacheFactory l2cache.Factory

	// RedisAddr is the Redis server address (e.g., "localhost:6379").
	// Empty disables the Redis provider entirely.
	RedisAddr string

	// RedisPassword is the optional Redis password.
	RedisPassword string

	// RedisDB is the Redis database number.
	RedisDB int

	// EvictionChannel is the pub/sub channel for eviction events.
	EvictionChannel string

	// Bus optionally attaches an in-process broadcast fabric, useful when
	// several nodes run inside one binary and in tests.
	Bus *provider.Bus

	// SerializationFormat specifies how events are encoded on the wire
	// ("json" or "msgpack").
	SerializationFormat string

	// EnableQueryCache turns the query-result cache on.
	EnableQueryCache bool

	// QueryCacheConfig configures the query-result cache.
	QueryCacheConfig querycache.Config

	// DedupCapacity bounds the processed-event table per provider.
	DedupCapacity int

	// DedupWindow is how long a processed event id is remembered.
	DedupWindow time.Duration

	// SweepInterval is how often expired dedup entries are purged.
	SweepInterval time.Duration

	// MaxRetries bounds broadcast retry attempts per event.
	MaxRetries uint64

	// EnableBatching coalesces broadcast bursts per entity/id/operation.
	EnableBatching bool

	// BatchMaxSize triggers an immediate flush of coalesced evictions.
	BatchMaxSize int

	// FlushInterval bounds how long a coalesced eviction may wait.
	FlushInterval time.Duration

	// ProbeInterval is how often provider health is re-checked.
	ProbeInterval time.Duration

	// Logger receives structured diagnostics. If nil, defaults to no-op.
	Logger logging.Logger
}

// DefaultConfig returns the default node configuration.
func DefaultConfig() Config {
	return Config{
		NodeID:              "node-1",
		LocalCacheConfig:    l2cache.DefaultConfig(),
		LocalCacheFactory:   nil, // Will default to ristretto in New()
		RedisAddr:           "",
		EvictionChannel:     "cache:evict",
		SerializationFormat: "json",
		EnableQueryCache:    true,
		QueryCacheConfig:    querycache.DefaultConfig(),
		DedupCapacity:       provider.DefaultDedupCapacity,
		DedupWindow:         provider.DefaultDedupWindow,
		SweepInterval:       provider.DefaultSweepInterval,
		MaxRetries:          provider.DefaultMaxRetries,
		EnableBatching:      false,
		BatchMaxSize:        provider.DefaultBatchMaxSize,
		FlushInterval:       provider.DefaultFlushInterval,
		ProbeInterval:       provider.DefaultProbeInterval,
		Logger:              nil, // Will default to no-op in New()
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return ErrInvalidConfig
	}
	if c.SerializationFormat != "json" && c.SerializationFormat != "msgpack" {
		return ErrInvalidConfig
	}
	if c.RedisAddr != "" && c.EvictionChannel == "" {
		return ErrInvalidConfig
	}
	if c.LocalCacheConfig.NumCounters <= 0 {
		return ErrInvalidConfig
	}
	if c.LocalCacheConfig.MaxCost <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
