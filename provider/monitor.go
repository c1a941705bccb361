package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minhng/evictsync/logging"
)

// DefaultProbeInterval is how often the monitor re-checks provider health.
const DefaultProbeInterval = 15 * time.Second

// HealthSnapshot is a point-in-time view of provider availability.
type HealthSnapshot struct {
	// Time is when the probe ran.
	Time time.Time

	// Available maps provider name to its last probed availability.
	Available map[string]bool

	// Partitioned is true when the preferred provider is down while some
	// other provider is still up: the cluster is split between nodes that
	// can reach the preferred backend and nodes that cannot, so peers may
	// serve stale entries until the backend recovers.
	Partitioned bool
}

// ClusterMonitor probes provider availability in the background and keeps
// the latest snapshot readable without blocking on network calls.
type ClusterMonitor struct {
	factory  *Factory
	interval time.Duration
	logger   logging.Logger

	snapshot atomic.Value // HealthSnapshot

	mu      sync.Mutex
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewClusterMonitor creates a monitor over the factory's providers. A
// non-positive interval falls back to the default.
func NewClusterMonitor(factory *Factory, interval time.Duration, logger logging.Logger) *ClusterMonitor {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	m := &ClusterMonitor{factory: factory, interval: interval, logger: logger}
	m.snapshot.Store(HealthSnapshot{Available: map[string]bool{}})
	return m
}

// Start probes once synchronously so Snapshot is meaningful immediately, then
// continues in the background. Repeat calls are no-ops.
func (m *ClusterMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.done = make(chan struct{})

	m.probe(ctx)

	m.wg.Add(1)
	go m.loop(m.done)
}

// Stop halts background probing and waits for the probe goroutine.
func (m *ClusterMonitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	close(m.done)
	m.mu.Unlock()
	m.wg.Wait()
}

// Snapshot returns the most recent health view. It never blocks on probing.
func (m *ClusterMonitor) Snapshot() HealthSnapshot {
	return m.snapshot.Load().(HealthSnapshot)
}

func (m *ClusterMonitor) loop(done chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.probe(context.Background())
		}
	}
}

// probe checks every provider and publishes a fresh snapshot.
func (m *ClusterMonitor) probe(ctx context.Context) {
	providers := m.factory.Providers()
	available := make(map[string]bool, len(providers))
	anyUp := false
	preferredUp := len(providers) == 0
	for i, p := range providers {
		up := p.IsAvailable(ctx)
		available[p.Name()] = up
		if up {
			anyUp = true
		}
		if i == 0 {
			preferredUp = up
		}
	}

	prev := m.Snapshot()
	next := HealthSnapshot{
		Time:        time.Now(),
		Available:   available,
		Partitioned: !preferredUp && anyUp,
	}
	m.snapshot.Store(next)

	if next.Partitioned && !prev.Partitioned {
		m.logger.Warn("preferred eviction backend unreachable, degraded to fallback", "health", available)
	}
	if !next.Partitioned && prev.Partitioned {
		m.logger.Info("preferred eviction backend recovered", "health", available)
	}
}
