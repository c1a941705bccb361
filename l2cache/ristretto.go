package l2cache

import (
	"sync/atomic"

	lfu "github.com/dgraph-io/ristretto"
)

// LFUFactory creates Ristretto-backed region caches.
type LFUFactory struct {
	config Config
}

// NewLFUFactory creates a new Ristretto cache factory.
func NewLFUFactory(config Config) Factory {
	return &LFUFactory{config: config}
}

// Create creates a new Ristretto-backed region cache.
func (f *LFUFactory) Create() (RegionCache, error) {
	return NewLFUCache(f.config)
}

// LFUCache is a region cache backed by Ristretto.
type LFUCache struct {
	cache     *lfu.Cache
	index     *regionIndex
	hits      int64
	misses    int64
	evictions int64
}

// NewLFUCache creates a new Ristretto-backed region cache.
func NewLFUCache(config Config) (*LFUCache, error) {
	rc := &LFUCache{index: newRegionIndex()}

	cache, err := lfu.NewCache(&lfu.Config{
		NumCounters:        config.NumCounters,
		MaxCost:            config.MaxCost,
		BufferItems:        config.BufferItems,
		IgnoreInternalCost: config.IgnoreInternalCost,
		OnEvict: func(item *lfu.Item) {
			atomic.AddInt64(&rc.evictions, 1)
		},
	})
	if err != nil {
		return nil, err
	}

	rc.cache = cache
	return rc, nil
}

// Get retrieves a cached entity.
func (rc *LFUCache) Get(region, key string) (any, bool) {
	value, found := rc.cache.Get(compositeKey(region, key))
	if found {
		atomic.AddInt64(&rc.hits, 1)
	} else {
		atomic.AddInt64(&rc.misses, 1)
	}
	return value, found
}

// Put stores a cached entity.
func (rc *LFUCache) Put(region, key string, value any, cost int64) bool {
	composite := compositeKey(region, key)
	if !rc.cache.Set(composite, value, cost) {
		return false
	}
	rc.index.add(region, composite)
	return true
}

// Evict removes one entity from a region.
func (rc *LFUCache) Evict(region, key string) {
	composite := compositeKey(region, key)
	rc.cache.Del(composite)
	rc.index.remove(region, composite)
}

// EvictRegion removes every entity in a region.
func (rc *LFUCache) EvictRegion(region string) {
	for _, composite := range rc.index.drain(region) {
		rc.cache.Del(composite)
	}
}

// Clear removes all entries from every region.
func (rc *LFUCache) Clear() {
	rc.cache.Clear()
	rc.index.clear()
}

// Close closes the cache.
func (rc *LFUCache) Close() {
	rc.cache.Close()
}

// Metrics returns cache metrics.
func (rc *LFUCache) Metrics() Metrics {
	return Metrics{
		Hits:      atomic.LoadInt64(&rc.hits),
		Misses:    atomic.LoadInt64(&rc.misses),
		Evictions: atomic.LoadInt64(&rc.evictions),
		Size:      int64(rc.cache.MaxCost()),
	}
}
