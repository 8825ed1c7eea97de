package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/LavishGent/imgedge/internal/background"
	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/logging"
	"github.com/LavishGent/imgedge/internal/metrics"
	"github.com/LavishGent/imgedge/internal/resilience"
	"github.com/LavishGent/imgedge/internal/types"
)

const (
	DefaultShutdownTimeout = 30 * time.Second
	// DefaultBackgroundOpTimeout bounds one memory back-fill when the manager runs its own runner.
	DefaultBackgroundOpTimeout = 5 * time.Second
)

// Manager layers a process-local memory cache in front of Redis.
//
// Reads try memory, then Redis; a Redis hit is copied into memory in the
// background. Writes go to every selected layer, but only a memory failure is
// reported: Redis is an optimisation shared between instances, never a
// dependency of the request path.
type Manager struct {
	cfg        *config.Config
	memory     types.MemoryCacheLayer
	redis      types.RedisCacheLayer
	policy     resilience.Executor
	codec      types.Serializer
	recorder   types.MetricsRecorder
	logger     *slog.Logger
	keys       *types.KeyValidator
	background types.BackgroundRunner
	ownRunner  *background.Runner
	closed     atomic.Bool
}

// NewManager builds the layers enabled in cfg. An unreachable Redis does not
// fail construction; the layer starts degraded.
func NewManager(cfg *config.Config, opts *types.ManagerOptions) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("cache: nil config")
	}
	if opts == nil {
		opts = &types.ManagerOptions{}
	}
	logger := logging.FromLogger(opts.Logger).With("component", "cache-manager")

	m := &Manager{
		cfg:        cfg,
		codec:      opts.Serializer,
		recorder:   opts.Metrics,
		logger:     logger,
		background: opts.Background,
	}
	if m.codec == nil {
		m.codec = NewSerializer()
	}
	if m.recorder == nil {
		m.recorder = metrics.NewNoOpTracker()
	}
	if m.background == nil {
		m.ownRunner = background.NewRunner(DefaultBackgroundOpTimeout, background.WithLogger(logger))
		m.background = m.ownRunner
	}
	if cfg.KeyValidation.Enabled {
		m.keys = types.NewKeyValidator(cfg.KeyValidation.ToTypesConfig())
	}

	m.memory = NewDisabledMemoryCache()
	if cfg.Memory.Enabled {
		mc, err := NewMemoryCache(cfg.Memory, logger)
		if err != nil {
			return nil, fmt.Errorf("memory cache: %w", err)
		}
		m.memory = mc
	}

	m.redis = NewDisabledRedisCache()
	if cfg.Redis.Enabled && !opts.DisableRedis {
		rc, err := NewRedisCache(cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis layer unavailable, serving from memory only", "error", err)
		} else {
			m.redis = rc
		}
	}

	m.policy = resilience.Passthrough
	if !opts.DisableResilience {
		m.policy = resilience.NewPolicy("redis", cfg.Redis.Resilience)
	}
	m.policy.OnCircuitChange(func(from, to resilience.State) {
		logger.Info("Redis circuit breaker changed state", "from", from.String(), "to", to.String())
		m.recorder.RecordCircuitBreakerStateChange(from.String(), to.String())
		if opts.OnCircuitChange != nil {
			opts.OnCircuitChange(from.String(), to.String())
		}
	})

	return m, nil
}

// Health reports both layers. A failed memory layer makes the manager
// unhealthy; a configured but unreachable Redis only degrades it.
func (m *Manager) Health(context.Context) *types.HealthMetrics {
	stats := m.memory.Stats()
	mem := types.MemoryHealthMetrics{
		Status:          types.HealthStatusHealthy,
		Available:       m.memory.IsAvailable(),
		EntryCount:      m.memory.EntryCount(),
		SizeBytes:       m.memory.Size(),
		MaxSizeBytes:    m.memory.MaxSize(),
		UsagePercentage: m.memory.UsagePercentage(),
		HitCount:        stats.Hits,
		MissCount:       stats.Misses,
		HitRatio:        m.memory.HitRatio(),
		EvictionCount:   stats.Evictions,
	}
	if m.cfg.Memory.Enabled && !mem.Available {
		mem.Status = types.HealthStatusUnhealthy
	}

	enabled := m.redis.Name() != disabledRedisName
	rds := types.RedisHealthMetrics{
		Status:              types.HealthStatusHealthy,
		Enabled:             enabled,
		Available:           m.redis.IsAvailable(),
		CircuitBreakerState: m.policy.CircuitState().String(),
		PendingWrites:       m.redis.PendingWrites(),
		DroppedWrites:       m.redis.DroppedWrites(),
	}
	if enabled && !m.IsRedisAvailable() {
		rds.Status = types.HealthStatusUnhealthy
	}

	return &types.HealthMetrics{
		Timestamp: time.Now(),
		Memory:    mem,
		Redis:     rds,
		Status:    mem.Status.Worse(min(rds.Status, types.HealthStatusDegraded)),
	}
}

// IsHealthy reports whether the manager can still serve reads.
func (m *Manager) IsHealthy() bool {
	return !m.closed.Load() && (m.memory.IsAvailable() || !m.cfg.Memory.Enabled)
}

// IsRedisAvailable is false while Redis is unreachable or its breaker is open.
func (m *Manager) IsRedisAvailable() bool {
	return m.redis.IsAvailable() && m.policy.CircuitState() != resilience.StateOpen
}

func (m *Manager) IsMemoryAvailable() bool { return m.memory.IsAvailable() }

// MemoryStats exposes the memory layer for health gauges.
func (m *Manager) MemoryStats() types.MemoryStatsProvider { return m.memory }

func (m *Manager) Close() error { return m.CloseWithTimeout(DefaultShutdownTimeout) }

// CloseWithTimeout waits up to timeout for the manager's own back-fills, then
// closes both layers. The layers are closed even when the wait times out.
func (m *Manager) CloseWithTimeout(timeout time.Duration) error {
	if m.closed.Swap(true) {
		return nil
	}
	m.logger.Info("Closing cache manager", "timeout", timeout)

	var errs []error
	if m.ownRunner != nil {
		if err := m.ownRunner.Close(timeout); err != nil {
			m.logger.Warn("Back-fills still running at shutdown", "timeout", timeout)
			errs = append(errs, err)
		}
	}
	errs = append(errs, m.memory.Close(), m.redis.Close())
	return errors.Join(errs...)
}
