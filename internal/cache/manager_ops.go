package cache

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LavishGent/imgedge/internal/resilience"
	"github.com/LavishGent/imgedge/internal/types"
)

// begin rejects calls on a closed manager or with an invalid key.
func (m *Manager) begin(key string) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	if m.keys != nil {
		return m.keys.Validate(key)
	}
	return nil
}

// Get decodes key into dest. A key in neither layer is ErrCacheMiss, and so is
// an unreachable Redis once memory has missed.
func (m *Manager) Get(ctx context.Context, key string, dest any, opts ...types.Option) error {
	if err := m.begin(key); err != nil {
		return err
	}
	start := time.Now()
	level := m.options(opts).Level

	data, layer, err := m.read(ctx, key, level)
	switch {
	case types.IsCacheMiss(err):
		m.recorder.RecordMiss(layer, key, time.Since(start))
		return err
	case err != nil:
		m.recorder.RecordError(layer, "get", err)
		return err
	}

	if err := m.codec.Unmarshal(data, dest); err != nil {
		m.logger.Debug("Stored value does not decode", "key", key, "layer", layer, "error", err)
		return types.NewCacheError("Get", key, layer, err)
	}
	m.recorder.RecordHit(layer, key, time.Since(start))
	return nil
}

func (m *Manager) read(ctx context.Context, key string, level types.CacheLevel) ([]byte, string, error) {
	if level.IncludesMemory() {
		data, err := m.memory.Get(ctx, key)
		if err == nil || !level.IncludesRedis() {
			return data, "memory", err
		}
		if !types.IsCacheMiss(err) {
			m.logger.Debug("Memory read failed, trying Redis", "key", key, "error", err)
		}
	}

	data, err := m.redisGet(ctx, key)
	if err != nil {
		if level.IncludesMemory() && (types.IsRedisUnavailable(err) || types.IsCircuitOpen(err)) {
			err = types.ErrCacheMiss
		}
		return nil, "redis", err
	}

	if level.IncludesMemory() {
		m.background.Go(func(ctx context.Context) {
			if err := m.memory.Set(ctx, key, data, nil); err != nil {
				m.logger.Debug("Memory back-fill failed", "key", key, "error", err)
			}
		})
	}
	return data, "redis", nil
}

func (m *Manager) redisGet(ctx context.Context, key string) ([]byte, error) {
	if !m.redis.IsAvailable() {
		return nil, types.ErrRedisUnavailable
	}
	return resilience.Call(ctx, m.policy, func(ctx context.Context) ([]byte, error) {
		return m.redis.Get(ctx, key)
	})
}

// Set encodes value into the selected layers. With both selected the writes
// run concurrently and only the memory result is returned.
func (m *Manager) Set(ctx context.Context, key string, value any, opts ...types.Option) error {
	if err := m.begin(key); err != nil {
		return err
	}
	start := time.Now()
	o := m.options(opts)
	layer := o.Level.String()

	data, err := m.codec.Marshal(value)
	if err != nil {
		return types.NewCacheError("Set", key, layer, err)
	}

	var g errgroup.Group
	if o.Level.IncludesMemory() {
		g.Go(func() error { return m.memory.Set(ctx, key, data, o) })
	}
	if o.Level.IncludesRedis() {
		g.Go(func() error {
			err := m.redisSet(ctx, key, data, o)
			if !o.Level.IncludesMemory() {
				return err
			}
			if err != nil && !types.IsRedisUnavailable(err) && !o.FireAndForget {
				m.logger.Warn("Redis write failed, value is in memory only", "key", key, "error", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.recorder.RecordError(layer, "set", err)
		return err
	}
	m.recorder.RecordSet(layer, key, len(data), time.Since(start))
	return nil
}

func (m *Manager) redisSet(ctx context.Context, key string, data []byte, o *types.CacheOptions) error {
	if !m.redis.IsAvailable() {
		return types.ErrRedisUnavailable
	}
	return m.policy.Do(ctx, func(ctx context.Context) error {
		return m.redis.Set(ctx, key, data, o)
	})
}

// Delete removes key from the selected layers. An unreachable Redis is not an
// error when memory is also selected.
func (m *Manager) Delete(ctx context.Context, key string, opts ...types.Option) error {
	if err := m.begin(key); err != nil {
		return err
	}
	start := time.Now()
	level := m.options(opts).Level

	var memErr, redisErr error
	if level.IncludesMemory() {
		memErr = m.memory.Delete(ctx, key)
	}
	if level.IncludesRedis() {
		redisErr = m.redis.Delete(ctx, key)
		if level.IncludesMemory() && types.IsRedisUnavailable(redisErr) {
			redisErr = nil
		}
	}

	m.recorder.RecordDelete(level.String(), key, time.Since(start))
	if memErr != nil {
		return memErr
	}
	return redisErr
}

// Contains reports whether key is in any selected layer.
func (m *Manager) Contains(ctx context.Context, key string, opts ...types.Option) (bool, error) {
	if err := m.begin(key); err != nil {
		return false, err
	}
	level := m.options(opts).Level

	if level.IncludesMemory() {
		ok, err := m.memory.Contains(ctx, key)
		if !level.IncludesRedis() || ok {
			return ok, err
		}
		if err != nil {
			m.logger.Debug("Memory contains check failed", "key", key, "error", err)
		}
		if !m.redis.IsAvailable() {
			return false, nil
		}
	}
	return m.redis.Contains(ctx, key)
}

// Clear empties the given layers. Redis is skipped while unreachable.
func (m *Manager) Clear(ctx context.Context, level types.CacheLevel) error {
	if m.closed.Load() {
		return types.ErrClosed
	}
	var errs []error
	if level.IncludesMemory() {
		errs = append(errs, m.memory.Clear(ctx))
	}
	if level.IncludesRedis() && m.redis.IsAvailable() {
		errs = append(errs, m.redis.Clear(ctx))
	}
	return errors.Join(errs...)
}

// options resolves per-call options against the configured defaults. An
// explicit WithTTL beats the configured TTL.
func (m *Manager) options(opts []types.Option) *types.CacheOptions {
	o := types.ApplyOptions(opts...)

	explicit := &types.CacheOptions{}
	for _, opt := range opts {
		opt(explicit)
	}
	if explicit.TTL == 0 && m.cfg.Defaults.TTL > 0 {
		o.TTL = m.cfg.Defaults.TTL
	}
	if o.Level == 0 {
		o.Level = types.ParseCacheLevel(m.cfg.Defaults.Level)
	}
	o.FireAndForget = o.FireAndForget || m.cfg.Defaults.FireAndForget
	return o
}
