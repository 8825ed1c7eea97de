package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/types"
)

func testRedisConfig(addr string) config.RedisConfig {
	cfg := config.ForTestingWithRedis(addr).Redis
	cfg.KeyPrefix = "imgedge:test:"
	return cfg
}

func newTestRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rc, err := NewRedisCache(testRedisConfig(mr.Addr()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })

	require.True(t, rc.IsAvailable())
	return rc, mr
}

func TestRedisCacheGetSet(t *testing.T) {
	rc, mr := newTestRedisCache(t)
	ctx := context.Background()

	_, err := rc.Get(ctx, "img:abc")
	assert.ErrorIs(t, err, types.ErrCacheMiss)

	body := []byte{0x89, 'P', 'N', 'G', 0x00}
	require.NoError(t, rc.Set(ctx, "img:abc", body, &types.CacheOptions{TTL: 90 * time.Second}))

	got, err := rc.Get(ctx, "img:abc")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	assert.True(t, mr.Exists("imgedge:test:img:abc"), "key stored under prefix")
	assert.Equal(t, 90*time.Second, mr.TTL("imgedge:test:img:abc"))
}

func TestRedisCacheDefaultTTL(t *testing.T) {
	rc, mr := newTestRedisCache(t)

	require.NoError(t, rc.Set(context.Background(), "img:ttl", []byte("x"), nil))
	assert.Equal(t, time.Minute, mr.TTL("imgedge:test:img:ttl"))

	mr.FastForward(2 * time.Minute)
	_, err := rc.Get(context.Background(), "img:ttl")
	assert.ErrorIs(t, err, types.ErrCacheMiss)
}

func TestRedisCacheFireAndForget(t *testing.T) {
	rc, mr := newTestRedisCache(t)

	err := rc.Set(context.Background(), "img:async", []byte("v"), &types.CacheOptions{FireAndForget: true})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return mr.Exists("imgedge:test:img:async")
	}, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return rc.PendingWrites() == 0
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, rc.DroppedWrites())
}

func TestRedisCacheDeleteContainsClear(t *testing.T) {
	rc, mr := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, rc.Set(ctx, "img:1", []byte("1"), nil))
	require.NoError(t, rc.Set(ctx, "img:2", []byte("2"), nil))
	require.NoError(t, mr.Set("other:key", "untouched"))

	ok, err := rc.Contains(ctx, "img:1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, rc.Delete(ctx, "img:1"))
	ok, err = rc.Contains(ctx, "img:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rc.Clear(ctx))
	assert.False(t, mr.Exists("imgedge:test:img:2"))
	assert.True(t, mr.Exists("other:key"), "Clear only removes prefixed keys")
}

func TestRedisCacheDegradesAndRecovers(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testRedisConfig(mr.Addr())
	cfg.HealthCheckInterval = 20 * time.Millisecond
	rc, err := NewRedisCache(cfg, nil)
	require.NoError(t, err)
	defer rc.Close()

	mr.Close()

	ctx := context.Background()
	for i := 0; i < disconnectErrorThreshold; i++ {
		_, err := rc.Get(ctx, "img:down")
		assert.Error(t, err)
	}
	assert.Eventually(t, func() bool { return !rc.IsAvailable() }, time.Second, 10*time.Millisecond)

	_, err = rc.Get(ctx, "img:down")
	assert.ErrorIs(t, err, types.ErrRedisUnavailable)

	require.NoError(t, mr.Restart())
	assert.Eventually(t, rc.IsAvailable, 2*time.Second, 20*time.Millisecond)
}

func TestRedisCacheStartsUnavailable(t *testing.T) {
	cfg := testRedisConfig("127.0.0.1:1")
	cfg.DialTimeout = 100 * time.Millisecond

	rc, err := NewRedisCache(cfg, nil)
	require.NoError(t, err, "construction degrades instead of failing")
	defer rc.Close()

	assert.False(t, rc.IsAvailable())
	err = rc.Set(context.Background(), "img:x", []byte("x"), nil)
	assert.ErrorIs(t, err, types.ErrRedisUnavailable)
}

func TestRedisCacheCloseIdempotent(t *testing.T) {
	rc, _ := newTestRedisCache(t)
	require.NoError(t, rc.Close())
	assert.NoError(t, rc.Close())
	assert.False(t, rc.IsAvailable())
}

func TestDisabledRedisCache(t *testing.T) {
	c := NewDisabledRedisCache()
	_, err := c.Get(context.Background(), "k")
	assert.ErrorIs(t, err, types.ErrRedisUnavailable)
	assert.False(t, c.IsAvailable())
	assert.Equal(t, "redis-disabled", c.Name())
}

func TestRedisCacheClearManyKeys(t *testing.T) {
	rc, mr := newTestRedisCache(t)
	ctx := context.Background()

	for i := 0; i < clearBatchSize*2+7; i++ {
		require.NoError(t, mr.Set(fmt.Sprintf("imgedge:test:img:%03d", i), "x"))
	}
	require.NoError(t, rc.Clear(ctx))
	assert.Empty(t, mr.Keys())
}

func TestRedisCacheWriteBehindFull(t *testing.T) {
	rc, _ := newTestRedisCache(t)

	w := &writeBehind{cache: rc, queue: make(chan pendingSet, 1), done: make(chan struct{})}
	require.NoError(t, w.enqueue("a", []byte("1"), time.Minute))
	assert.ErrorIs(t, w.enqueue("b", []byte("2"), time.Minute), types.ErrWriteQueueFull)
	assert.Equal(t, int64(1), w.dropped.Load())
	assert.Equal(t, 1, w.pending())
}

func TestRedisCacheWriteBehindPendingNeverNegative(t *testing.T) {
	rc, mr := newTestRedisCache(t)
	w := newWriteBehind(rc, 4)

	stop := make(chan struct{})
	var negative atomic.Bool
	sampled := make(chan struct{})
	go func() {
		defer close(sampled)
		for {
			select {
			case <-stop:
				return
			default:
				if w.pending() < 0 {
					negative.Store(true)
				}
			}
		}
	}()

	accepted := 0
	for i := range 200 {
		if w.enqueue(fmt.Sprintf("k%d", i), []byte("v"), time.Minute) == nil {
			accepted++
		}
	}
	w.drain()
	close(stop)
	<-sampled

	assert.False(t, negative.Load(), "pending() went negative")
	assert.Zero(t, w.pending())
	assert.Equal(t, int64(200-accepted), w.dropped.Load())
	assert.Len(t, mr.Keys(), accepted)
}
