package goBlog

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one portal counter.
type MetricID uint16

const (
	// MetricGuardAllow counts guard evaluations that allowed with the store token.
	MetricGuardAllow MetricID = iota
	// MetricGuardReconcile counts evaluations that adopted the persisted token and allowed.
	MetricGuardReconcile
	// MetricGuardRedirect counts evaluations that redirected to login.
	MetricGuardRedirect
	// MetricGuardExpiredAllowed counts expired tokens let through by ExpiredAllow.
	MetricGuardExpiredAllowed
	// MetricTokenDecodeFailure counts tokens that could not be decoded.
	MetricTokenDecodeFailure
	// MetricStorageReadFailure counts persisted-storage reads that failed.
	MetricStorageReadFailure
	// MetricViewerFetchFailure counts failed viewer lookups after reconciliation.
	MetricViewerFetchFailure
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess
	// MetricLoginFailure counts rejected or failed logins.
	MetricLoginFailure
	// MetricSignupSuccess counts successful signups.
	MetricSignupSuccess
	// MetricSignupFailure counts rejected or failed signups.
	MetricSignupFailure
	// MetricLogout counts logouts.
	MetricLogout
	// MetricAPIFailure counts failed remote API calls.
	MetricAPIFailure
	// MetricStaleResponseDiscarded counts view responses dropped because a newer load began.
	MetricStaleResponseDiscarded
	// MetricAPILatency is the remote API round-trip histogram.
	MetricAPILatency
	metricIDCount
)

// latencyBounds are the upper bounds of the API latency buckets. A final
// bucket catches everything slower.
var latencyBounds = [...]time.Duration{
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
	2500 * time.Millisecond,
	5 * time.Second,
}

const latencyBucketCount = len(latencyBounds) + 1

// counter sits alone on a cache line; guard outcomes are bumped from every
// request goroutine.
type counter struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics holds lock-free portal counters and the API latency histogram.
// The zero value and a nil *Metrics are both safe and record nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]counter
	apiLatency    [latencyBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of [Metrics]. Histograms holds
// per-bucket (not cumulative) counts and only has [MetricAPILatency].
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id. [MetricAPILatency] is not a counter.
func (m *Metrics) Inc(id MetricID) {
	if !m.Enabled() || id >= MetricAPILatency {
		return
	}
	m.counters[id].n.Add(1)
}

// Observe records one API round-trip of duration d. Only [MetricAPILatency]
// takes observations.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricAPILatency {
		return
	}
	m.apiLatency[latencyBucket(d)].Add(1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= MetricAPILatency {
		return 0
	}
	return m.counters[id].n.Load()
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(MetricAPILatency)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	if !m.Enabled() {
		return s
	}
	for id := MetricID(0); id < MetricAPILatency; id++ {
		s.Counters[id] = m.counters[id].n.Load()
	}
	if m.enableLatency {
		buckets := make([]uint64, latencyBucketCount)
		for i := range m.apiLatency {
			buckets[i] = m.apiLatency[i].Load()
		}
		s.Histograms[MetricAPILatency] = buckets
	}
	return s
}

func latencyBucket(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return len(latencyBounds)
}
