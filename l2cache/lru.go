package l2cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRUFactory creates golang-lru backed region caches.
type LRUFactory struct {
	maxSize int
}

// NewLRUFactory creates a new LRU cache factory.
func NewLRUFactory(maxSize int) Factory {
	return &LRUFactory{maxSize: maxSize}
}

// Create creates a new LRU-backed region cache.
func (f *LRUFactory) Create() (RegionCache, error) {
	return NewLRUCache(f.maxSize)
}

// LRUCache is a region cache backed by golang-lru.
type LRUCache struct {
	cache     *lru.Cache[string, any]
	index     *regionIndex
	hits      int64
	misses    int64
	evictions int64
	maxSize   int64
}

// NewLRUCache creates a new LRU-backed region cache.
func NewLRUCache(maxSize int) (*LRUCache, error) {
	rc := &LRUCache{
		index:   newRegionIndex(),
		maxSize: int64(maxSize),
	}

	cache, err := lru.NewWithEvict[string, any](maxSize, func(key string, value any) {
		atomic.AddInt64(&rc.evictions, 1)
	})
	if err != nil {
		return nil, err
	}

	rc.cache = cache
	return rc, nil
}

// Get retrieves a cached entity.
func (rc *LRUCache) Get(region, key string) (any, bool) {
	value, found := rc.cache.Get(compositeKey(region, key))
	if found {
		atomic.AddInt64(&rc.hits, 1)
	} else {
		atomic.AddInt64(&rc.misses, 1)
	}
	return value, found
}

// Put stores a cached entity.
func (rc *LRUCache) Put(region, key string, value any, cost int64) bool {
	composite := compositeKey(region, key)
	rc.cache.Add(composite, value)
	rc.index.add(region, composite)
	return true
}

// Evict removes one entity from a region.
func (rc *LRUCache) Evict(region, key string) {
	composite := compositeKey(region, key)
	rc.cache.Remove(composite)
	rc.index.remove(region, composite)
}

// EvictRegion removes every entity in a region.
func (rc *LRUCache) EvictRegion(region string) {
	for _, composite := range rc.index.drain(region) {
		rc.cache.Remove(composite)
	}
}

// Clear removes all entries from every region.
func (rc *LRUCache) Clear() {
	rc.cache.Purge()
	rc.index.clear()
}

// Close closes the cache.
func (rc *LRUCache) Close() {
	rc.cache.Purge()
}

// Metrics returns cache metrics.
func (rc *LRUCache) Metrics() Metrics {
	return Metrics{
		Hits:      atomic.LoadInt64(&rc.hits),
		Misses:    atomic.LoadInt64(&rc.misses),
		Evictions: atomic.LoadInt64(&rc.evictions),
		Size:      rc.maxSize,
	}
}
