package provider

import "sync/atomic"

// Metrics counts protocol events for observability. All counters are atomic;
// a nil Metrics is valid and counts nothing, so providers never need to
// nil-check at call sites.
type Metrics struct {
	sent       int64
	received   int64
	applied    int64
	suppressed int64
	duplicates int64
	failures   int64
}

// NewMetrics creates a zeroed metrics recorder.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Sent       int64
	Received   int64
	Applied    int64
	Suppressed int64
	Duplicates int64
	Failures   int64
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Sent:       atomic.LoadInt64(&m.sent),
		Received:   atomic.LoadInt64(&m.received),
		Applied:    atomic.LoadInt64(&m.applied),
		Suppressed: atomic.LoadInt64(&m.suppressed),
		Duplicates: atomic.LoadInt64(&m.duplicates),
		Failures:   atomic.LoadInt64(&m.failures),
	}
}

func (m *Metrics) recordSent() {
	if m != nil {
		atomic.AddInt64(&m.sent, 1)
	}
}

func (m *Metrics) recordReceived() {
	if m != nil {
		atomic.AddInt64(&m.received, 1)
	}
}

func (m *Metrics) recordApplied() {
	if m != nil {
		atomic.AddInt64(&m.applied, 1)
	}
}

func (m *Metrics) recordSuppressed() {
	if m != nil {
		atomic.AddInt64(&m.suppressed, 1)
	}
}

func (m *Metrics) recordDuplicate() {
	if m != nil {
		atomic.AddInt64(&m.duplicates, 1)
	}
}

func (m *Metrics) recordFailure() {
	if m != nil {
		atomic.AddInt64(&m.failures, 1)
	}
}

func (m *Metrics) sentCount() int64 {
	if m == nil {
		return 0
	}
	return atomic.LoadInt64(&m.sent)
}

func (m *Metrics) receivedCount() int64 {
	if m == nil {
		return 0
	}
	return atomic.LoadInt64(&m.received)
}
