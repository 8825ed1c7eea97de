// Package metrics collects cache and pipeline metrics and publishes them to a backend.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/LavishGent/imgedge/internal/types"
)

type counter int

const (
	memoryHits counter = iota
	memoryMisses
	redisHits
	redisMisses
	gets
	sets
	deletes
	errorsSeen
	bytesWritten
	breakerChanges
	numCounters
)

// Tracker aggregates cache events in memory. Counters are lock-free; latency
// samples go to a fixed-size window so percentiles reflect recent traffic.
type Tracker struct {
	counts  [numCounters]atomic.Int64
	latency *window
}

func NewTracker() *Tracker {
	return &Tracker{latency: newWindow(defaultLatencyBufferSize)}
}

func (t *Tracker) add(c counter, n int64) { t.counts[c].Add(n) }

func (t *Tracker) load(c counter) int64 { return t.counts[c].Load() }

func (t *Tracker) RecordHit(layer string, _ string, latency time.Duration) {
	switch layer {
	case "memory":
		t.add(memoryHits, 1)
	case "redis":
		t.add(redisHits, 1)
	}
	t.add(gets, 1)
	t.latency.observe(latency)
}

func (t *Tracker) RecordMiss(layer string, _ string, latency time.Duration) {
	switch layer {
	case "memory":
		t.add(memoryMisses, 1)
	case "redis":
		t.add(redisMisses, 1)
	}
	t.add(gets, 1)
	t.latency.observe(latency)
}

func (t *Tracker) RecordSet(_ string, _ string, size int, latency time.Duration) {
	t.add(sets, 1)
	t.add(bytesWritten, int64(size))
	t.latency.observe(latency)
}

func (t *Tracker) RecordDelete(_ string, _ string, latency time.Duration) {
	t.add(deletes, 1)
	t.latency.observe(latency)
}

func (t *Tracker) RecordError(string, string, error) { t.add(errorsSeen, 1) }

func (t *Tracker) RecordCircuitBreakerStateChange(string, string) { t.add(breakerChanges, 1) }

func (t *Tracker) Snapshot() types.MetricsSnapshot {
	s := types.MetricsSnapshot{
		Timestamp:             time.Now(),
		MemoryHits:            t.load(memoryHits),
		MemoryMisses:          t.load(memoryMisses),
		RedisHits:             t.load(redisHits),
		RedisMisses:           t.load(redisMisses),
		GetCount:              t.load(gets),
		SetCount:              t.load(sets),
		DeleteCount:           t.load(deletes),
		ErrorCount:            t.load(errorsSeen),
		BytesWritten:          t.load(bytesWritten),
		CircuitBreakerChanges: t.load(breakerChanges),
	}

	if q := t.latency.summary(); q.n > 0 {
		s.AvgLatencyMs = millis(q.mean)
		s.P50LatencyMs = millis(q.p50)
		s.P95LatencyMs = millis(q.p95)
		s.P99LatencyMs = millis(q.p99)
	}
	return s
}

func (t *Tracker) Reset() {
	for i := range t.counts {
		t.counts[i].Store(0)
	}
	t.latency.reset()
}

// HealthMetrics builds the periodic gauge batch. mem may be nil when the
// memory layer is not in use.
func (t *Tracker) HealthMetrics(mem types.MemoryStatsProvider, redisConnected bool) *types.PublisherHealthMetrics {
	s := t.Snapshot()
	m := &types.PublisherHealthMetrics{
		HitRatio:         s.TotalHitRatio(),
		AverageLatencyMs: s.AvgLatencyMs,
		IsConnected:      redisConnected,
	}
	if mem != nil {
		m.MemoryUsedBytes = mem.Size()
		m.MemoryLimitBytes = mem.MaxSize()
		m.MemoryUsagePercentage = mem.UsagePercentage()
		m.TotalEntries = int64(mem.EntryCount())
	}
	return m
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

var _ types.MetricsRecorder = (*Tracker)(nil)
