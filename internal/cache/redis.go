package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/types"
)

const (
	disconnectErrorThreshold = 5
	clearBatchSize           = 100
)

// RedisCache is the layer shared between instances. Consecutive failures mark
// it unavailable so requests stop paying for a dead connection; the probe loop
// marks it available again once PING succeeds.
type RedisCache struct {
	client redis.UniversalClient
	logger *slog.Logger
	prefix string
	ttl    time.Duration

	up       atomic.Bool
	failures atomic.Int64

	writer *writeBehind
	probe  *probe

	closeOnce sync.Once

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64
}

// NewRedisCache dials Redis. An unreachable server is not an error: the layer
// starts unavailable and the probe loop picks it up later.
func NewRedisCache(cfg config.RedisConfig, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "redis-cache", "address", cfg.Address)

	c := &RedisCache{
		client: redis.NewUniversalClient(clientOptions(cfg, logger)),
		logger: logger,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.DefaultTTL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	err := c.client.Ping(ctx).Err()
	cancel()
	if err != nil {
		logger.Warn("Redis unreachable, starting degraded", "error", err)
	} else {
		c.up.Store(true)
		logger.Info("Redis connected")
	}

	c.writer = newWriteBehind(c, cfg.MaxPendingWrites)
	if cfg.HealthCheckInterval > 0 {
		c.probe = startProbe(c, cfg.HealthCheckInterval, cfg.DialTimeout)
	}
	return c, nil
}

func clientOptions(cfg config.RedisConfig, logger *slog.Logger) *redis.UniversalOptions {
	opts := &redis.UniversalOptions{
		Addrs:        []string{cfg.Address},
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  cfg.PoolTimeout,
	}
	if cfg.EnableTLS {
		if cfg.TLSSkipVerify {
			logger.Warn("Redis TLS certificate verification disabled")
		}
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.TLSSkipVerify, //nolint:gosec // opt-in via config
		}
	}
	return opts
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) IsAvailable() bool { return c.up.Load() }

func (c *RedisCache) key(k string) string { return c.prefix + k }

func (c *RedisCache) expiry(opts *types.CacheOptions) time.Duration {
	if opts != nil && opts.TTL > 0 {
		return opts.TTL
	}
	return c.ttl
}

// observe tracks the outcome of a round trip. redis.Nil is a normal reply.
func (c *RedisCache) observe(err error) {
	if err == nil || errors.Is(err, redis.Nil) {
		c.failures.Store(0)
		return
	}
	n := c.failures.Add(1)
	if n >= disconnectErrorThreshold && c.up.CompareAndSwap(true, false) {
		c.logger.Warn("Redis marked unavailable", "consecutive_errors", n, "last_error", err)
	}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if !c.up.Load() {
		return nil, types.ErrRedisUnavailable
	}

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	c.observe(err)
	switch {
	case errors.Is(err, redis.Nil):
		c.misses.Add(1)
		return nil, types.ErrCacheMiss
	case err != nil:
		return nil, types.NewCacheError("Get", key, c.Name(), err)
	}
	c.hits.Add(1)
	return data, nil
}

// Set writes value with the option TTL or the configured default. With
// FireAndForget the write is handed to the write-behind queue and
// ErrWriteQueueFull reports that it was dropped.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	if !c.up.Load() {
		return types.ErrRedisUnavailable
	}
	if opts != nil && opts.FireAndForget {
		return c.writer.enqueue(c.key(key), value, c.expiry(opts))
	}
	if err := c.write(ctx, c.key(key), value, c.expiry(opts)); err != nil {
		return types.NewCacheError("Set", key, c.Name(), err)
	}
	return nil
}

func (c *RedisCache) write(ctx context.Context, fullKey string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, fullKey, value, ttl).Err()
	c.observe(err)
	if err == nil {
		c.sets.Add(1)
	}
	return err
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if !c.up.Load() {
		return types.ErrRedisUnavailable
	}
	err := c.client.Del(ctx, c.key(key)).Err()
	c.observe(err)
	if err != nil {
		return types.NewCacheError("Delete", key, c.Name(), err)
	}
	c.deletes.Add(1)
	return nil
}

func (c *RedisCache) Contains(ctx context.Context, key string) (bool, error) {
	if !c.up.Load() {
		return false, types.ErrRedisUnavailable
	}
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	c.observe(err)
	if err != nil {
		return false, types.NewCacheError("Contains", key, c.Name(), err)
	}
	return n > 0, nil
}

// Clear unlinks every key under the prefix, in batches, leaving other keys alone.
func (c *RedisCache) Clear(ctx context.Context) error {
	if !c.up.Load() {
		return types.ErrRedisUnavailable
	}

	pattern := c.key("*")
	iter := c.client.Scan(ctx, 0, pattern, clearBatchSize).Iterator()
	batch := make([]string, 0, clearBatchSize)
	removed := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := c.client.Unlink(ctx, batch...).Err()
		c.observe(err)
		removed += len(batch)
		batch = batch[:0]
		return err
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == clearBatchSize {
			if err := flush(); err != nil {
				return types.NewCacheError("Clear", pattern, c.Name(), err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		c.observe(err)
		return types.NewCacheError("Clear", pattern, c.Name(), err)
	}
	if err := flush(); err != nil {
		return types.NewCacheError("Clear", pattern, c.Name(), err)
	}

	c.logger.Debug("Cleared Redis keys", "pattern", pattern, "removed", removed)
	return nil
}

// Close stops the probe, flushes queued writes and closes the client.
func (c *RedisCache) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.up.Store(false)
		c.probe.stop()
		c.writer.drain()
		err = c.client.Close()
	})
	return err
}

func (c *RedisCache) PendingWrites() int { return c.writer.pending() }

func (c *RedisCache) DroppedWrites() int64 { return c.writer.dropped.Load() }

var _ types.RedisCacheLayer = (*RedisCache)(nil)
