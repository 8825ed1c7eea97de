package metrics

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/LavishGent/imgedge/internal/types"
)

// LoggingPublisher writes metrics as structured log records. It is used when
// no DogStatsD agent is configured. Points are logged at debug, events and
// health batches at info.
type LoggingPublisher struct {
	logger   *slog.Logger
	baseTags []string
}

func NewLoggingPublisher(logger *slog.Logger, baseTags ...string) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{
		logger:   logger.With("component", "metrics"),
		baseTags: baseTags,
	}
}

func (p *LoggingPublisher) point(kind, name string, tags []string, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{slog.String("name", name)}, attrs...)
	attrs = append(attrs, slog.Any("tags", MergeTags(p.baseTags, tags)))
	p.logger.LogAttrs(context.Background(), slog.LevelDebug, kind, attrs...)
}

func (p *LoggingPublisher) Gauge(name string, value float64, tags ...string) {
	p.point("gauge", name, tags, slog.Float64("value", value))
}

func (p *LoggingPublisher) Incr(name string, tags ...string) {
	p.point("incr", name, tags)
}

func (p *LoggingPublisher) Count(name string, value int64, tags ...string) {
	p.point("count", name, tags, slog.Int64("value", value))
}

func (p *LoggingPublisher) Histogram(name string, value float64, tags ...string) {
	p.point("histogram", name, tags, slog.Float64("value", value))
}

func (p *LoggingPublisher) Timing(name string, d time.Duration, tags ...string) {
	p.point("timing", name, tags, slog.Int64("duration_ms", d.Milliseconds()))
}

func (p *LoggingPublisher) Event(title, text, alertType string, tags ...string) {
	p.logger.LogAttrs(context.Background(), slog.LevelInfo, "event",
		slog.String("title", title),
		slog.String("text", text),
		slog.String("alert_type", alertType),
		slog.Any("tags", MergeTags(p.baseTags, tags)),
	)
}

func (p *LoggingPublisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}
	p.logger.LogAttrs(context.Background(), slog.LevelInfo, "health_metrics",
		slog.Group("memory",
			slog.Int64("used_bytes", m.MemoryUsedBytes),
			slog.Int64("limit_bytes", m.MemoryLimitBytes),
			slog.Float64("usage_pct", m.MemoryUsagePercentage),
			slog.Int64("total_entries", m.TotalEntries),
		),
		slog.Float64("hit_ratio", m.HitRatio),
		slog.Float64("avg_latency_ms", m.AverageLatencyMs),
		slog.Bool("redis_connected", m.IsConnected),
	)
}

func (p *LoggingPublisher) Close() error { return nil }

// MergeTags returns base followed by extra, never sharing base's backing array.
func MergeTags(base, extra []string) []string {
	switch {
	case len(extra) == 0:
		return base
	case len(base) == 0:
		return extra
	}
	return slices.Concat(base, extra)
}

var _ types.Publisher = (*LoggingPublisher)(nil)
