package metrics

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavishGent/imgedge/internal/types"
)

func TestTrackerRecordsByLayer(t *testing.T) {
	tracker := NewTracker()

	tracker.RecordHit("memory", "img:a", time.Millisecond)
	tracker.RecordHit("redis", "img:a", 2*time.Millisecond)
	tracker.RecordMiss("memory", "img:b", time.Millisecond)
	tracker.RecordMiss("redis", "img:b", time.Millisecond)
	tracker.RecordMiss("redis", "img:c", time.Millisecond)
	tracker.RecordSet("memory", "img:b", 512, time.Millisecond)
	tracker.RecordDelete("memory", "img:b", time.Millisecond)
	tracker.RecordError("redis", "get", errors.New("boom"))
	tracker.RecordCircuitBreakerStateChange("closed", "open")

	s := tracker.Snapshot()

	tests := []struct {
		name string
		got  int64
		want int64
	}{
		{"MemoryHits", s.MemoryHits, 1},
		{"RedisHits", s.RedisHits, 1},
		{"MemoryMisses", s.MemoryMisses, 1},
		{"RedisMisses", s.RedisMisses, 2},
		{"GetCount", s.GetCount, 5},
		{"SetCount", s.SetCount, 1},
		{"DeleteCount", s.DeleteCount, 1},
		{"ErrorCount", s.ErrorCount, 1},
		{"BytesWritten", s.BytesWritten, 512},
		{"CircuitBreakerChanges", s.CircuitBreakerChanges, 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}

	if got := s.MemoryHitRatio(); got != 0.5 {
		t.Errorf("MemoryHitRatio() = %v, want 0.5", got)
	}
	if got := s.TotalHitRatio(); got != 0.4 {
		t.Errorf("TotalHitRatio() = %v, want 0.4", got)
	}
}

func TestTrackerLatencyPercentiles(t *testing.T) {
	tracker := NewTracker()
	for i := 1; i <= 100; i++ {
		tracker.RecordHit("memory", "k", time.Duration(i)*time.Millisecond)
	}

	s := tracker.Snapshot()
	if s.P50LatencyMs < 49 || s.P50LatencyMs > 51 {
		t.Errorf("P50LatencyMs = %v, want ~50", s.P50LatencyMs)
	}
	if s.P99LatencyMs < 98 {
		t.Errorf("P99LatencyMs = %v, want >= 98", s.P99LatencyMs)
	}
	if s.AvgLatencyMs < 50 || s.AvgLatencyMs > 51 {
		t.Errorf("AvgLatencyMs = %v, want 50.5", s.AvgLatencyMs)
	}
}

func TestTrackerLatencyRingWraps(t *testing.T) {
	tracker := NewTracker()
	for i := 0; i < defaultLatencyBufferSize; i++ {
		tracker.RecordHit("memory", "k", time.Hour)
	}
	for i := 0; i < defaultLatencyBufferSize; i++ {
		tracker.RecordHit("memory", "k", time.Millisecond)
	}

	if got := tracker.Snapshot().P99LatencyMs; got != 1 {
		t.Errorf("P99LatencyMs = %v, want 1 (old samples overwritten)", got)
	}
}

func TestTrackerReset(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordHit("memory", "k", time.Millisecond)
	tracker.RecordSet("memory", "k", 10, time.Millisecond)
	tracker.Reset()

	s := tracker.Snapshot()
	if s.GetCount != 0 || s.SetCount != 0 || s.BytesWritten != 0 || s.AvgLatencyMs != 0 {
		t.Errorf("snapshot after Reset = %+v, want zeros", s)
	}
}

func TestTrackerConcurrency(t *testing.T) {
	tracker := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tracker.RecordHit("memory", "k", time.Microsecond)
				_ = tracker.Snapshot()
			}
		}()
	}
	wg.Wait()

	if got := tracker.Snapshot().MemoryHits; got != 2000 {
		t.Errorf("MemoryHits = %d, want 2000", got)
	}
}

type fakeMemStats struct{}

func (fakeMemStats) Stats() types.MemoryCacheStats { return types.MemoryCacheStats{} }
func (fakeMemStats) EntryCount() int               { return 3 }
func (fakeMemStats) Size() int64                   { return 300 }
func (fakeMemStats) MaxSize() int64                { return 1000 }
func (fakeMemStats) UsagePercentage() float64      { return 30 }
func (fakeMemStats) HitRatio() float64             { return 0 }

func TestTrackerHealthMetrics(t *testing.T) {
	tracker := NewTracker()
	tracker.RecordHit("memory", "k", time.Millisecond)
	tracker.RecordMiss("memory", "k", time.Millisecond)

	m := tracker.HealthMetrics(fakeMemStats{}, true)
	if m.HitRatio != 0.5 {
		t.Errorf("HitRatio = %v, want 0.5", m.HitRatio)
	}
	if m.TotalEntries != 3 || m.MemoryUsedBytes != 300 || m.MemoryLimitBytes != 1000 {
		t.Errorf("memory gauges = %+v", m)
	}
	if !m.IsConnected {
		t.Error("IsConnected = false, want true")
	}

	if m := tracker.HealthMetrics(nil, false); m.TotalEntries != 0 {
		t.Errorf("TotalEntries without stats = %d, want 0", m.TotalEntries)
	}
}

func TestLoggingPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := NewLoggingPublisher(logger, "service:imgedge")

	p.Incr(RequestCount, OutcomeTag("hit"))
	p.Timing(FetchDuration, 25*time.Millisecond)
	p.Event("circuit open", "origin", "warning")
	p.PublishHealthMetrics(&types.PublisherHealthMetrics{TotalEntries: 7, IsConnected: true})
	p.PublishHealthMetrics(nil)

	out := buf.String()
	for _, want := range []string{
		"name=request.count",
		"outcome:hit",
		"service:imgedge",
		"duration_ms=25",
		"title=\"circuit open\"",
		"total_entries=7",
		"redis_connected=true",
		"component=metrics",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestMergeTagsDoesNotAlias(t *testing.T) {
	base := make([]string, 1, 4)
	base[0] = "env:prod"

	a := MergeTags(base, []string{"outcome:hit"})
	b := MergeTags(base, []string{"outcome:miss"})

	if a[1] != "outcome:hit" || b[1] != "outcome:miss" {
		t.Errorf("merged tags share storage: a=%v b=%v", a, b)
	}
	if got := MergeTags(nil, []string{"x"}); len(got) != 1 {
		t.Errorf("MergeTags(nil, x) = %v", got)
	}
}

type recordingPublisher struct {
	NoOpPublisher
	mu      sync.Mutex
	timings map[string][]string
	health  atomic.Int32
}

func (p *recordingPublisher) Timing(name string, _ time.Duration, tags ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timings == nil {
		p.timings = map[string][]string{}
	}
	p.timings[name] = tags
}

func (p *recordingPublisher) PublishHealthMetrics(*types.PublisherHealthMetrics) {
	p.health.Add(1)
}

func TestTimer(t *testing.T) {
	pub := &recordingPublisher{}
	timer := NewTimer(pub, TransformDuration, FormatTag("png"))
	time.Sleep(2 * time.Millisecond)

	if timer.Elapsed() <= 0 {
		t.Error("Elapsed() should be positive")
	}
	d := timer.Stop(StatusTag("ok"))
	if d < 2*time.Millisecond {
		t.Errorf("Stop() = %v, want >= 2ms", d)
	}

	pub.mu.Lock()
	tags := pub.timings[TransformDuration]
	pub.mu.Unlock()
	if strings.Join(tags, ",") != "format:png,status:ok" {
		t.Errorf("tags = %v, want [format:png status:ok]", tags)
	}

	// A nil publisher only measures.
	if NewTimer(nil, "x").Stop() < 0 {
		t.Error("Stop() with nil publisher returned a negative duration")
	}
}

func TestBackgroundPublisher(t *testing.T) {
	t.Run("publishes on interval and once on stop", func(t *testing.T) {
		pub := &recordingPublisher{}
		bg := NewBackgroundPublisher(pub, 5*time.Millisecond, func() *types.PublisherHealthMetrics {
			return &types.PublisherHealthMetrics{}
		}, nil)

		bg.Start(context.Background())
		time.Sleep(30 * time.Millisecond)
		bg.Stop()

		if pub.health.Load() < 2 {
			t.Errorf("health publishes = %d, want >= 2", pub.health.Load())
		}
	})

	t.Run("recovers from a panicking health func", func(t *testing.T) {
		pub := &recordingPublisher{}
		bg := NewBackgroundPublisher(pub, time.Hour, func() *types.PublisherHealthMetrics {
			panic("boom")
		}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

		bg.PublishNow()
		if pub.health.Load() != 0 {
			t.Error("nothing should be published when the health func panics")
		}
	})

	t.Run("stops with parent context", func(t *testing.T) {
		pub := &recordingPublisher{}
		ctx, cancel := context.WithCancel(context.Background())
		bg := NewBackgroundPublisher(pub, time.Hour, func() *types.PublisherHealthMetrics {
			return &types.PublisherHealthMetrics{}
		}, nil)

		bg.Start(ctx)
		cancel()
		bg.Stop()

		if pub.health.Load() != 1 {
			t.Errorf("health publishes = %d, want 1 (final flush)", pub.health.Load())
		}
	})
}

func TestTagHelpers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{Tag("k", "v"), "k:v"},
		{StatusTag("hit"), "status:hit"},
		{CircuitStateTag("open"), "circuit_state:open"},
		{FormatTag("webp"), "format:webp"},
		{OutcomeTag("fetch_error"), "outcome:fetch_error"},
		{DependencyTag("origin"), "dependency:origin"},
		{RouteTag("/image"), "route:/image"},
		{CodeTag(404), "code:404"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("tag = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestNoOps(t *testing.T) {
	var rec types.MetricsRecorder = NewNoOpTracker()
	rec.RecordHit("memory", "k", time.Millisecond)
	rec.RecordError("redis", "get", errors.New("x"))

	var pub types.Publisher = NewNoOpPublisher()
	pub.Incr(RequestCount)
	pub.PublishHealthMetrics(nil)
	if err := pub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

type eventPublisher struct {
	NoOpPublisher
	incrs  [][]string
	events []string
}

func (p *eventPublisher) Incr(name string, tags ...string) {
	p.incrs = append(p.incrs, append([]string{name}, tags...))
}

func (p *eventPublisher) Event(title, _, alertType string, _ ...string) {
	p.events = append(p.events, alertType+":"+title)
}

func TestCircuitReporter(t *testing.T) {
	pub := &eventPublisher{}
	report := CircuitReporter(pub, "redis")

	report("closed", "open")
	report("open", "half-open")

	if len(pub.incrs) != 2 {
		t.Fatalf("Incr called %d times, want 2", len(pub.incrs))
	}
	if got := strings.Join(pub.incrs[0], ","); got != "circuit.state_change,dependency:redis,circuit_state:open" {
		t.Errorf("first Incr = %s", got)
	}
	if len(pub.events) != 1 || pub.events[0] != "warning:redis circuit open" {
		t.Errorf("events = %v, want one warning for the opening", pub.events)
	}
}
