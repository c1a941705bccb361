package evictsync

import (
	"github.com/minhng/evictsync/l2cache"
	"github.com/minhng/evictsync/logging"
	"github.com/minhng/evictsync/provider"
	"github.com/minhng/evictsync/types"
)

// Logger is an alias for logging.Logger.
type Logger = logging.Logger

// RegionCache is an alias for l2cache.RegionCache.
type RegionCache = l2cache.RegionCache

// CacheProvider is an alias for provider.CacheProvider.
type CacheProvider = provider.CacheProvider

// CacheEvictionEvent is an alias for types.CacheEvictionEvent.
type CacheEvictionEvent = types.CacheEvictionEvent

// EvictionHint is an alias for types.EvictionHint.
type EvictionHint = types.EvictionHint

// Operation is an alias for types.Operation.
type Operation = types.Operation

// DefaultLocalCacheConfig returns the default local cache configuration.
func DefaultLocalCacheConfig() l2cache.Config {
	return l2cache.DefaultConfig()
}
