package provider

import (
	"context"
	"testing"
)

func TestFactorySelectsFirstAvailable(t *testing.T) {
	redis := newFakeProvider("redis", true)
	local := newFakeProvider("local", true)
	f := NewFactory(nil, redis, local)

	if got := f.SelectBestAvailable(context.Background()); got.Name() != "redis" {
		t.Fatalf("selected %q, want redis", got.Name())
	}
}

func TestFactoryFailsOverAndRecovers(t *testing.T) {
	redis := newFakeProvider("redis", false)
	local := newFakeProvider("local", true)
	f := NewFactory(nil, redis, local)

	if got := f.SelectBestAvailable(context.Background()); got.Name() != "local" {
		t.Fatalf("selected %q with redis down, want local", got.Name())
	}

	// Selection is per-call: a recovered backend is picked up immediately.
	redis.setAvailable(true)
	if got := f.SelectBestAvailable(context.Background()); got.Name() != "redis" {
		t.Fatalf("selected %q after recovery, want redis", got.Name())
	}
}

func TestFactoryNeverReturnsNilWhenAllDown(t *testing.T) {
	redis := newFakeProvider("redis", false)
	local := newFakeProvider("local", false)
	f := NewFactory(nil, redis, local)

	got := f.SelectBestAvailable(context.Background())
	if got == nil {
		t.Fatal("SelectBestAvailable returned nil")
	}
	if got.Name() != "local" {
		t.Fatalf("selected %q, want terminal fallback local", got.Name())
	}
}

func TestFactoryInitializeAllContinuesPastFailures(t *testing.T) {
	a := newFakeProvider("a", true)
	b := newFakeProvider("b", true)
	f := NewFactory(nil, a, b)

	if err := f.InitializeAll(context.Background()); err != nil {
		t.Fatalf("InitializeAll: %v", err)
	}
	if !a.initialized || !b.initialized {
		t.Fatal("not every provider was initialized")
	}
	if err := f.ShutdownAll(); err != nil {
		t.Fatalf("ShutdownAll: %v", err)
	}
	if a.initialized || b.initialized {
		t.Fatal("not every provider was shut down")
	}
}
