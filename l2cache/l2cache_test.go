package l2cache

import (
	"testing"
)

func TestLRURegionRoundTrip(t *testing.T) {
	c, err := NewLRUCache(100)
	if err != nil {
		t.Fatalf("NewLRUCache failed: %v", err)
	}
	defer c.Close()

	c.Put("orders", "1", "order-1", 1)
	c.Put("orders", "2", "order-2", 1)
	c.Put("customers", "1", "customer-1", 1)

	value, found := c.Get("orders", "1")
	if !found || value != "order-1" {
		t.Fatalf("expected 'order-1', got %v (found=%v)", value, found)
	}

	// Same key in a different region must not collide.
	value, found = c.Get("customers", "1")
	if !found || value != "customer-1" {
		t.Fatalf("expected 'customer-1', got %v (found=%v)", value, found)
	}
}

func TestLRUEvict(t *testing.T) {
	c, err := NewLRUCache(100)
	if err != nil {
		t.Fatalf("NewLRUCache failed: %v", err)
	}
	defer c.Close()

	c.Put("orders", "1", "order-1", 1)
	c.Evict("orders", "1")

	if _, found := c.Get("orders", "1"); found {
		t.Fatal("evicted entry should be gone")
	}
}

func TestLRUEvictRegion(t *testing.T) {
	c, err := NewLRUCache(100)
	if err != nil {
		t.Fatalf("NewLRUCache failed: %v", err)
	}
	defer c.Close()

	c.Put("orders", "1", "order-1", 1)
	c.Put("orders", "2", "order-2", 1)
	c.Put("customers", "1", "customer-1", 1)

	c.EvictRegion("orders")

	if _, found := c.Get("orders", "1"); found {
		t.Fatal("region eviction should remove orders/1")
	}
	if _, found := c.Get("orders", "2"); found {
		t.Fatal("region eviction should remove orders/2")
	}
	if _, found := c.Get("customers", "1"); !found {
		t.Fatal("region eviction must not touch other regions")
	}
}

func TestLRUClear(t *testing.T) {
	c, err := NewLRUCache(100)
	if err != nil {
		t.Fatalf("NewLRUCache failed: %v", err)
	}
	defer c.Close()

	c.Put("orders", "1", "order-1", 1)
	c.Put("customers", "1", "customer-1", 1)
	c.Clear()

	if _, found := c.Get("orders", "1"); found {
		t.Fatal("clear should remove everything")
	}
	if _, found := c.Get("customers", "1"); found {
		t.Fatal("clear should remove everything")
	}
}

func TestLRUMetrics(t *testing.T) {
	c, err := NewLRUCache(100)
	if err != nil {
		t.Fatalf("NewLRUCache failed: %v", err)
	}
	defer c.Close()

	c.Put("orders", "1", "order-1", 1)
	c.Get("orders", "1")
	c.Get("orders", "missing")

	m := c.Metrics()
	if m.Hits != 1 {
		t.Fatalf("expected 1 hit, got %d", m.Hits)
	}
	if m.Misses != 1 {
		t.Fatalf("expected 1 miss, got %d", m.Misses)
	}
}

func TestLFURegionRoundTrip(t *testing.T) {
	c, err := NewLFUCache(DefaultConfig())
	if err != nil {
		t.Fatalf("NewLFUCache failed: %v", err)
	}
	defer c.Close()

	c.Put("orders", "1", "order-1", 1)
	c.cache.Wait()

	value, found := c.Get("orders", "1")
	if !found || value != "order-1" {
		t.Fatalf("expected 'order-1', got %v (found=%v)", value, found)
	}
}

func TestLFUEvictRegion(t *testing.T) {
	c, err := NewLFUCache(DefaultConfig())
	if err != nil {
		t.Fatalf("NewLFUCache failed: %v", err)
	}
	defer c.Close()

	c.Put("orders", "1", "order-1", 1)
	c.Put("orders", "2", "order-2", 1)
	c.Put("customers", "1", "customer-1", 1)
	c.cache.Wait()

	c.EvictRegion("orders")
	c.cache.Wait()

	if _, found := c.Get("orders", "1"); found {
		t.Fatal("region eviction should remove orders/1")
	}
	if _, found := c.Get("customers", "1"); !found {
		t.Fatal("region eviction must not touch other regions")
	}
}

func TestFactories(t *testing.T) {
	lruCache, err := NewLRUFactory(10).Create()
	if err != nil {
		t.Fatalf("LRU factory failed: %v", err)
	}
	lruCache.Close()

	lfuCache, err := NewLFUFactory(DefaultConfig()).Create()
	if err != nil {
		t.Fatalf("LFU factory failed: %v", err)
	}
	lfuCache.Close()
}
