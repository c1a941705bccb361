package querycache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/viccon/sturdyc"
)

// Config configures the query-cache regions.
type Config struct {
	// Capacity is the maximum number of cached query results.
	Capacity int

	// NumShards is the number of shards for concurrent access.
	NumShards int

	// TTL is the time-to-live for cached query results.
	TTL time.Duration

	// EvictionPercentage is the share of entries evicted at capacity (1-100).
	EvictionPercentage int
}

// DefaultConfig returns defaults suitable for most deployments.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                5 * time.Minute,
		EvictionPercentage: 10,
	}
}

const keySeparator = "::"

// QueryCache holds named query-cache regions: cached query results grouped
// under region names so an entity write can drop every dependent result
// without knowing individual statements.
type QueryCache struct {
	client *sturdyc.Client[any]
}

// New creates a query cache from the given configuration.
func New(cfg Config) *QueryCache {
	if cfg.Capacity <= 0 {
		cfg = DefaultConfig()
	}
	return &QueryCache{
		client: sturdyc.New[any](cfg.Capacity, cfg.NumShards, cfg.TTL, cfg.EvictionPercentage),
	}
}

// KeyFor builds a deterministic cache key for a statement and its arguments
// within a region.
func KeyFor(region, statement string, args ...any) string {
	var sb strings.Builder
	sb.WriteString(statement)
	for _, arg := range args {
		sb.WriteString("|")
		fmt.Fprintf(&sb, "%v", arg)
	}
	return fmt.Sprintf("%s%s%016x", region, keySeparator, xxhash.Sum64String(sb.String()))
}

// GetOrFetch returns the cached result for a statement, fetching and caching
// it on miss.
func (q *QueryCache) GetOrFetch(ctx context.Context, region, statement string, args []any, fetch func(ctx context.Context) (any, error)) (any, error) {
	return q.client.GetOrFetch(ctx, KeyFor(region, statement, args...), fetch)
}

// EvictRegion drops every cached result in a region and reports how many
// entries were removed.
func (q *QueryCache) EvictRegion(region string) int {
	prefix := region + keySeparator
	removed := 0
	for _, key := range q.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			q.client.Delete(key)
			removed++
		}
	}
	return removed
}

// EvictAll drops every cached query result.
func (q *QueryCache) EvictAll() int {
	keys := q.client.ScanKeys()
	for _, key := range keys {
		q.client.Delete(key)
	}
	return len(keys)
}

// Size returns the number of cached query results.
func (q *QueryCache) Size() int {
	return q.client.Size()
}
