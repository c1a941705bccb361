package l2cache

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// RegionCache is the process-local second-level cache. Entries are keyed by
// cache region plus entity key; whole regions can be evicted at once, which
// is how bulk operations invalidate without enumerating ids.
type RegionCache interface {
	// Get retrieves a cached entity.
	Get(region, key string) (any, bool)

	// Put stores a cached entity.
	Put(region, key string, value any, cost int64) bool

	// Evict removes one entity from a region.
	Evict(region, key string)

	// EvictRegion removes every entity in a region.
	EvictRegion(region string)

	// Clear removes all entries from every region.
	Clear()

	// Close releases the cache's resources.
	Close()

	// Metrics returns cache metrics.
	Metrics() Metrics
}

// Metrics represents local cache metrics.
type Metrics struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int64
}

// Factory creates RegionCache instances.
type Factory interface {
	// Create creates a new region cache instance.
	Create() (RegionCache, error)
}

// Config configures the local cache backends.
type Config struct {
	// NumCounters is the number of counters for the cache (Ristretto only).
	// Recommended: 10 * expected items.
	NumCounters int64

	// MaxCost is the maximum cost of items in the cache (Ristretto only).
	MaxCost int64

	// BufferItems is the number of items to buffer before eviction
	// (Ristretto only). Recommended: 64.
	BufferItems int64

	// IgnoreInternalCost ignores the internal cost of items (Ristretto only).
	IgnoreInternalCost bool

	// MaxSize is the maximum number of items in the cache (LRU only).
	MaxSize int
}

// DefaultConfig returns default local cache configuration.
func DefaultConfig() Config {
	return Config{
		NumCounters:        1e7,
		MaxCost:            1 << 30,
		BufferItems:        64,
		IgnoreInternalCost: false,
		MaxSize:            10000,
	}
}

const keySeparator = "::"

// compositeKey builds the backend key for a region/key pair.
func compositeKey(region, key string) string {
	return region + keySeparator + key
}

// regionIndex tracks which composite keys belong to each region, so
// EvictRegion can enumerate entries the backing store cannot. The index may
// briefly over-approximate when the backend evicts internally; deleting an
// absent key is harmless.
type regionIndex struct {
	regions *xsync.MapOf[string, *xsync.MapOf[string, struct{}]]
}

func newRegionIndex() *regionIndex {
	return &regionIndex{regions: xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]]()}
}

func (ri *regionIndex) add(region, composite string) {
	keys, _ := ri.regions.LoadOrCompute(region, func() *xsync.MapOf[string, struct{}] {
		return xsync.NewMapOf[string, struct{}]()
	})
	keys.Store(composite, struct{}{})
}

func (ri *regionIndex) remove(region, composite string) {
	if keys, ok := ri.regions.Load(region); ok {
		keys.Delete(composite)
	}
}

// drain removes and returns every composite key tracked for a region.
func (ri *regionIndex) drain(region string) []string {
	keys, ok := ri.regions.LoadAndDelete(region)
	if !ok {
		return nil
	}
	var out []string
	keys.Range(func(composite string, _ struct{}) bool {
		out = append(out, composite)
		return true
	})
	return out
}

func (ri *regionIndex) clear() {
	ri.regions.Clear()
}
