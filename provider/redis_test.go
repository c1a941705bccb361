package provider

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/minhng/evictsync/types"
)

func setupRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // Use DB 1 for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	client.FlushDB(ctx)

	return client
}

func newRedisNode(t *testing.T, client *redis.Client, channel, nodeID string) (*RedisProvider, *recorder) {
	t.Helper()
	p := NewRedisProvider(RedisOptions{
		Client:  client,
		Channel: channel,
		NodeID:  nodeID,
		Metrics: NewMetrics(),
	})
	rec := &recorder{}
	p.SubscribeToEvictions(rec.listen)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize %s: %v", nodeID, err)
	}
	t.Cleanup(func() { _ = p.Shutdown() })
	return p, rec
}

func TestRedisProviderBroadcastReachesPeer(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	a, _ := newRedisNode(t, client, "evictsync-test", "node-a")
	_, recB := newRedisNode(t, client, "evictsync-test", "node-b")

	// Let the subscriptions settle.
	time.Sleep(100 * time.Millisecond)

	event := types.NewCacheEvictionEvent("app.Order", "42", "orders", types.OpUpdate).WithNodeID("node-a")
	if err := a.BroadcastEviction(context.Background(), event); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return recB.count() == 1 })
	got := recB.last()
	if got.EventID != event.EventID {
		t.Fatalf("eventId = %q, want %q", got.EventID, event.EventID)
	}
}

func TestRedisProviderSuppressesOwnEvents(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	a, recA := newRedisNode(t, client, "evictsync-test-self", "node-a")
	time.Sleep(100 * time.Millisecond)

	event := types.NewCacheEvictionEvent("app.Order", "1", "orders", types.OpDelete).WithNodeID("node-a")
	if err := a.BroadcastEviction(context.Background(), event); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	if recA.count() != 0 {
		t.Fatalf("sender applied %d of its own events, want 0", recA.count())
	}
}

func TestRedisProviderBroadcastBeforeInitialize(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	p := NewRedisProvider(RedisOptions{Client: client, Channel: "evictsync-test", NodeID: "node-a"})
	event := types.NewCacheEvictionEvent("app.Order", "1", "orders", types.OpInsert)
	if err := p.BroadcastEviction(context.Background(), event); err != ErrNotInitialized {
		t.Fatalf("err = %v, want ErrNotInitialized", err)
	}
}

func TestRedisProviderAvailability(t *testing.T) {
	client := setupRedisClient(t)
	defer client.Close()

	p := NewRedisProvider(RedisOptions{Client: client, Channel: "evictsync-test", NodeID: "node-a"})
	if !p.IsAvailable(context.Background()) {
		t.Fatal("provider with live backend reported unavailable")
	}
}
