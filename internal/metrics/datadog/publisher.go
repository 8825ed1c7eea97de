// Package datadog publishes metrics to a DogStatsD agent.
package datadog

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/metrics"
	"github.com/LavishGent/imgedge/internal/types"
)

// RedisServiceCheck is reported OK or CRITICAL with every health batch.
const RedisServiceCheck = "imgedge.redis.can_connect"

// Publisher sends metrics over DogStatsD. Send errors are logged at debug and
// otherwise ignored.
type Publisher struct {
	client statsd.ClientInterface
	logger *slog.Logger
}

// NewPublisher dials the agent described by cfg, or returns a no-op
// publisher when cfg is nil or disabled.
func NewPublisher(cfg *config.DataDogConfig, logger *slog.Logger) (types.Publisher, error) {
	if cfg == nil || !cfg.Enabled {
		return metrics.NewNoOpPublisher(), nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	addr := net.JoinHostPort(cfg.AgentHost, strconv.Itoa(cfg.Port))
	opts := []statsd.Option{
		statsd.WithTags(cfg.Tags),
		statsd.WithClientSideAggregation(),
		statsd.WithoutTelemetry(),
	}
	if cfg.Prefix != "" {
		opts = append(opts, statsd.WithNamespace(cfg.Prefix+"."))
	}

	client, err := statsd.New(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("statsd client for %s: %w", addr, err)
	}
	logger.Info("DogStatsD publisher ready", "address", addr, "prefix", cfg.Prefix, "tags", cfg.Tags)

	return newPublisher(client, logger), nil
}

func newPublisher(client statsd.ClientInterface, logger *slog.Logger) *Publisher {
	return &Publisher{client: client, logger: logger.With("component", "datadog")}
}

func (p *Publisher) check(kind, name string, err error) {
	if err != nil {
		p.logger.Debug("DogStatsD send failed", "kind", kind, "name", name, "error", err)
	}
}

func (p *Publisher) Gauge(name string, value float64, tags ...string) {
	p.check("gauge", name, p.client.Gauge(name, value, tags, 1))
}

func (p *Publisher) Incr(name string, tags ...string) {
	p.check("incr", name, p.client.Incr(name, tags, 1))
}

func (p *Publisher) Count(name string, value int64, tags ...string) {
	p.check("count", name, p.client.Count(name, value, tags, 1))
}

func (p *Publisher) Histogram(name string, value float64, tags ...string) {
	p.check("histogram", name, p.client.Histogram(name, value, tags, 1))
}

func (p *Publisher) Timing(name string, d time.Duration, tags ...string) {
	p.check("timing", name, p.client.Timing(name, d, tags, 1))
}

func (p *Publisher) Event(title, text, alertType string, tags ...string) {
	p.check("event", title, p.client.Event(&statsd.Event{
		Title:     title,
		Text:      text,
		AlertType: statsd.EventAlertType(alertType),
		Tags:      tags,
	}))
}

// PublishHealthMetrics sends the batch as gauges plus a Redis service check.
// Ratios are clamped so a bad sample cannot skew dashboards.
func (p *Publisher) PublishHealthMetrics(m *types.PublisherHealthMetrics) {
	if m == nil {
		return
	}

	gauges := []struct {
		name  string
		value float64
	}{
		{"cache.memory.used_bytes", float64(m.MemoryUsedBytes)},
		{"cache.memory.limit_bytes", float64(m.MemoryLimitBytes)},
		{"cache.memory.usage_percentage", clamp(m.MemoryUsagePercentage, 0, 100)},
		{"cache.entries", float64(m.TotalEntries)},
		{"cache.hit_ratio", clamp(m.HitRatio, 0, 1)},
		{"cache.average_latency_ms", max(0, m.AverageLatencyMs)},
	}
	for _, g := range gauges {
		p.Gauge(g.name, g.value)
	}

	status := statsd.Critical
	if m.IsConnected {
		status = statsd.Ok
	}
	p.check("service_check", RedisServiceCheck, p.client.SimpleServiceCheck(RedisServiceCheck, status))
}

// Close flushes buffered metrics and closes the client.
func (p *Publisher) Close() error {
	return p.client.Close()
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

var _ types.Publisher = (*Publisher)(nil)
