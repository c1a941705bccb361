package provider

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestDedupDetectsDuplicates(t *testing.T) {
	d := NewDedupTable(100, time.Minute)

	if !d.MarkProcessed("ev-1") {
		t.Fatal("first MarkProcessed returned false")
	}
	if d.MarkProcessed("ev-1") {
		t.Fatal("duplicate MarkProcessed returned true")
	}
	if !d.MarkProcessed("ev-2") {
		t.Fatal("distinct id reported as duplicate")
	}
}

func TestDedupBoundedAtCapacity(t *testing.T) {
	const capacity = 100
	d := NewDedupTable(capacity, time.Hour)

	for i := 0; i < capacity*3; i++ {
		d.MarkProcessed(fmt.Sprintf("ev-%d", i))
		if got := d.Len(); got > capacity {
			t.Fatalf("table grew to %d, capacity %d", got, capacity)
		}
	}
}

func TestDedupEvictsOldestFirst(t *testing.T) {
	const capacity = 10
	d := NewDedupTable(capacity, time.Hour)

	for i := 0; i < capacity; i++ {
		d.MarkProcessed(fmt.Sprintf("old-%d", i))
		time.Sleep(time.Millisecond)
	}

	// Crossing capacity evicts the oldest entries; the newest survive.
	d.MarkProcessed("new-0")

	if d.MarkProcessed("old-0") == false {
		t.Fatal("oldest entry survived capacity eviction")
	}
	if d.MarkProcessed("new-0") {
		t.Fatal("fresh entry was evicted instead of the oldest")
	}
}

func TestDedupConcurrentMarkClaimsOnce(t *testing.T) {
	d := NewDedupTable(1000, time.Minute)

	const goroutines = 32
	var wins int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if d.MarkProcessed("contested") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("event id claimed %d times, want exactly once", wins)
	}
}

func TestDedupSweeperPurgesExpired(t *testing.T) {
	d := NewDedupTable(100, 10*time.Millisecond)
	d.StartSweeper(5 * time.Millisecond)
	defer d.StopSweeper()

	d.MarkProcessed("short-lived")
	waitFor(t, time.Second, func() bool { return d.Len() == 0 })
}

func TestDedupStopSweeperIdempotent(t *testing.T) {
	d := NewDedupTable(10, time.Minute)
	d.StartSweeper(time.Millisecond)
	d.StopSweeper()
	d.StopSweeper()

	// Restarting after stop works.
	d.StartSweeper(time.Millisecond)
	d.StopSweeper()
}
