package types

import (
	"context"
	"time"
)

// Layer is one tier of the cache. Values are opaque bytes; the manager owns
// serialization.
type Layer interface {
	Name() string
	IsAvailable() bool
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, opts *CacheOptions) error
	Delete(ctx context.Context, key string) error
	Contains(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	Close() error
}

// MemoryStatsProvider exposes the memory layer's occupancy for health reports.
type MemoryStatsProvider interface {
	Stats() MemoryCacheStats
	EntryCount() int
	Size() int64
	MaxSize() int64
	UsagePercentage() float64
	HitRatio() float64
}

type MemoryCacheLayer interface {
	Layer
	MemoryStatsProvider
}

type RedisCacheLayer interface {
	Layer
	PendingWrites() int
	DroppedWrites() int64
}

type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// MetricsRecorder receives one call per cache operation.
type MetricsRecorder interface {
	RecordHit(layer, key string, latency time.Duration)
	RecordMiss(layer, key string, latency time.Duration)
	RecordSet(layer, key string, size int, latency time.Duration)
	RecordDelete(layer, key string, latency time.Duration)
	RecordError(layer, operation string, err error)
	RecordCircuitBreakerStateChange(from, to string)
}

// Publisher ships metrics to a backend such as DogStatsD or the log.
type Publisher interface {
	Gauge(name string, value float64, tags ...string)
	Incr(name string, tags ...string)
	Count(name string, value int64, tags ...string)
	Histogram(name string, value float64, tags ...string)
	Timing(name string, duration time.Duration, tags ...string)
	Event(title, text, alertType string, tags ...string)
	PublishHealthMetrics(metrics *PublisherHealthMetrics)
	Close() error
}

// PublisherHealthMetrics is the batch of gauges published on every health tick.
type PublisherHealthMetrics struct {
	MemoryUsedBytes       int64
	MemoryLimitBytes      int64
	MemoryUsagePercentage float64
	TotalEntries          int64
	HitRatio              float64
	AverageLatencyMs      float64
	IsConnected           bool
}

// Logger is the minimal logging surface accepted from library users.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// BackgroundRunner runs work that must outlive the request that scheduled it.
type BackgroundRunner interface {
	Go(fn func(ctx context.Context))
}
