package datadog

import (
	"log/slog"
	"testing"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/metrics"
	"github.com/LavishGent/imgedge/internal/types"
)

func TestNewPublisherDisabled(t *testing.T) {
	for _, cfg := range []*config.DataDogConfig{nil, {Enabled: false}} {
		pub, err := NewPublisher(cfg, nil)
		if err != nil {
			t.Fatalf("NewPublisher() error = %v", err)
		}
		if _, ok := pub.(*metrics.NoOpPublisher); !ok {
			t.Errorf("NewPublisher(disabled) = %T, want *metrics.NoOpPublisher", pub)
		}
	}
}

func TestPublisherSendsWithoutAgent(t *testing.T) {
	// UDP statsd does not need a listener; sends are fire-and-forget.
	pub, err := NewPublisher(&config.DataDogConfig{
		Enabled:   true,
		AgentHost: "127.0.0.1",
		Port:      18125,
		Prefix:    "imgedge",
		Tags:      []string{"env:test"},
	}, nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if _, ok := pub.(*Publisher); !ok {
		t.Fatalf("NewPublisher(enabled) = %T, want *Publisher", pub)
	}

	pub.Incr(metrics.RequestCount, metrics.OutcomeTag("miss"))
	pub.Count(metrics.FetchBytes, 1024)
	pub.Gauge("x", 1)
	pub.Histogram(metrics.ResponseBytes, 2048, metrics.FormatTag("png"))
	pub.Timing(metrics.TransformDuration, 3*time.Millisecond)
	pub.Event("circuit open", "origin breaker opened", "warning")
	pub.PublishHealthMetrics(&types.PublisherHealthMetrics{HitRatio: 2, MemoryUsagePercentage: -1, IsConnected: true})
	pub.PublishHealthMetrics(nil)

	if err := pub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestClamp(t *testing.T) {
	if clamp(2, 0, 1) != 1 || clamp(-1, 0, 1) != 0 || clamp(0.5, 0, 1) != 0.5 {
		t.Error("clamp() does not bound its input")
	}
}

type recordingClient struct {
	statsd.NoOpClient
	gauges map[string]float64
	checks map[string]statsd.ServiceCheckStatus
}

func (c *recordingClient) Gauge(name string, value float64, _ []string, _ float64) error {
	c.gauges[name] = value
	return nil
}

func (c *recordingClient) SimpleServiceCheck(name string, status statsd.ServiceCheckStatus) error {
	c.checks[name] = status
	return nil
}

func TestPublishHealthMetrics(t *testing.T) {
	client := &recordingClient{gauges: map[string]float64{}, checks: map[string]statsd.ServiceCheckStatus{}}
	pub := newPublisher(client, slog.Default())

	pub.PublishHealthMetrics(&types.PublisherHealthMetrics{
		MemoryUsedBytes:       512,
		MemoryUsagePercentage: 140,
		HitRatio:              -0.5,
		AverageLatencyMs:      -3,
		TotalEntries:          9,
	})

	want := map[string]float64{
		"cache.memory.used_bytes":       512,
		"cache.memory.limit_bytes":      0,
		"cache.memory.usage_percentage": 100,
		"cache.entries":                 9,
		"cache.hit_ratio":               0,
		"cache.average_latency_ms":      0,
	}
	for name, v := range want {
		if got, ok := client.gauges[name]; !ok || got != v {
			t.Errorf("gauge %s = %v (sent %v), want %v", name, got, ok, v)
		}
	}
	if client.checks[RedisServiceCheck] != statsd.Critical {
		t.Errorf("service check = %v, want Critical", client.checks[RedisServiceCheck])
	}

	pub.PublishHealthMetrics(&types.PublisherHealthMetrics{IsConnected: true})
	if client.checks[RedisServiceCheck] != statsd.Ok {
		t.Errorf("service check = %v, want Ok", client.checks[RedisServiceCheck])
	}
}
