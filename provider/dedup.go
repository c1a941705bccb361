package provider

import (
	"sort"
	"sync"
	"time"
)

// Dedup defaults.
const (
	DefaultDedupCapacity  = 10000
	DefaultDedupWindow    = 10 * time.Minute
	DefaultSweepInterval  = time.Minute
	evictBatchDenominator = 10 // evict ~10% when at capacity
)

// DedupTable remembers processed event ids for a bounded window so duplicate
// deliveries are absorbed. The check-and-insert is atomic: two concurrent
// listener goroutines can never both claim the same event id. Size never
// exceeds capacity immediately after an insertion; at capacity, expired
// entries are evicted first, then the oldest by receipt timestamp, until
// roughly 10% headroom exists.
type DedupTable struct {
	mu       sync.Mutex
	entries  map[string]time.Time
	capacity int
	window   time.Duration

	done chan struct{}
	wg   sync.WaitGroup
}

// NewDedupTable creates a dedup table. Non-positive arguments fall back to
// defaults.
func NewDedupTable(capacity int, window time.Duration) *DedupTable {
	if capacity <= 0 {
		capacity = DefaultDedupCapacity
	}
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &DedupTable{
		entries:  make(map[string]time.Time),
		capacity: capacity,
		window:   window,
	}
}

// MarkProcessed atomically records the event id. It returns false when the
// id was already present, meaning the event is a duplicate and must not be
// applied again.
func (d *DedupTable) MarkProcessed(eventID string) bool {
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, dup := d.entries[eventID]; dup {
		return false
	}
	if len(d.entries) >= d.capacity {
		d.evictLocked(now)
	}
	d.entries[eventID] = now
	return true
}

// Len returns the current number of remembered event ids.
func (d *DedupTable) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// StartSweeper launches the background cleanup goroutine that purges expired
// entries regardless of capacity pressure. Repeat calls are no-ops until
// StopSweeper.
func (d *DedupTable) StartSweeper(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return
	}
	d.done = make(chan struct{})
	done := d.done

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				d.sweep()
			}
		}
	}()
}

// StopSweeper stops the cleanup goroutine and waits for it to exit.
func (d *DedupTable) StopSweeper() {
	d.mu.Lock()
	done := d.done
	d.done = nil
	d.mu.Unlock()

	if done == nil {
		return
	}
	close(done)
	d.wg.Wait()
}

// sweep removes entries older than the expiry window.
func (d *DedupTable) sweep() {
	cutoff := time.Now().Add(-d.window)

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, seen := range d.entries {
		if seen.Before(cutoff) {
			delete(d.entries, id)
		}
	}
}

// evictLocked frees headroom while the lock is held: expired entries go
// first, then the oldest by timestamp, until at least ~10% of capacity is
// free.
func (d *DedupTable) evictLocked(now time.Time) {
	cutoff := now.Add(-d.window)
	for id, seen := range d.entries {
		if seen.Before(cutoff) {
			delete(d.entries, id)
		}
	}

	headroom := d.capacity / evictBatchDenominator
	if headroom < 1 {
		headroom = 1
	}
	if len(d.entries) <= d.capacity-headroom {
		return
	}

	type aged struct {
		id   string
		seen time.Time
	}
	all := make([]aged, 0, len(d.entries))
	for id, seen := range d.entries {
		all = append(all, aged{id: id, seen: seen})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].seen.Before(all[j].seen) })

	excess := len(d.entries) - (d.capacity - headroom)
	for i := 0; i < excess && i < len(all); i++ {
		delete(d.entries, all[i].id)
	}
}
