package types

import "time"

// MetricsSnapshot is a point-in-time copy of the tracker's counters.
// Latencies are in milliseconds.
//
//nolint:govet // grouped by meaning, not size
type MetricsSnapshot struct {
	Timestamp time.Time

	MemoryHits   int64
	MemoryMisses int64
	RedisHits    int64
	RedisMisses  int64

	GetCount    int64
	SetCount    int64
	DeleteCount int64
	ErrorCount  int64

	BytesWritten int64

	AvgLatencyMs float64
	P50LatencyMs float64
	P95LatencyMs float64
	P99LatencyMs float64

	CircuitBreakerChanges int64
}

func ratio(hits, misses int64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

func (s *MetricsSnapshot) MemoryHitRatio() float64 { return ratio(s.MemoryHits, s.MemoryMisses) }

func (s *MetricsSnapshot) RedisHitRatio() float64 { return ratio(s.RedisHits, s.RedisMisses) }

func (s *MetricsSnapshot) TotalHitRatio() float64 {
	return ratio(s.MemoryHits+s.RedisHits, s.MemoryMisses+s.RedisMisses)
}
