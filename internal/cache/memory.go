package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/types"
)

const (
	// Rendered images are large, so the initial shard tables are sized for
	// far fewer entries than bigcache's default.
	maxEntriesInWindow = 1024

	// Each stored value is prefixed with its expiry as unix nanoseconds; zero
	// means it lives until bigcache's LifeWindow evicts it.
	deadlineSize = 8
)

var errEntryTooLarge = errors.New("entry exceeds memory shard capacity")

// MemoryCache is the process-local layer, backed by bigcache.
//
// bigcache has one lifetime for all entries, so shorter per-entry TTLs are
// enforced on read from a deadline stored in front of the value.
type MemoryCache struct {
	cache    *bigcache.BigCache
	logger   *slog.Logger
	now      func() time.Time
	maxBytes int64
	perShard int

	hits      atomic.Int64
	misses    atomic.Int64
	sets      atomic.Int64
	deletes   atomic.Int64
	evictions atomic.Int64
	closed    atomic.Bool
}

// NewMemoryCache creates a memory cache from cfg. HardMaxCacheSize is always
// cfg.MaxSizeMB and a value must fit in one shard (MaxSizeMB / Shards).
func NewMemoryCache(cfg config.MemoryConfig, logger *slog.Logger) (*MemoryCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Shards <= 0 || cfg.MaxSizeMB <= 0 {
		return nil, fmt.Errorf("memory cache: shards (%d) and maxSizeMB (%d) must be positive", cfg.Shards, cfg.MaxSizeMB)
	}

	c := &MemoryCache{
		logger:   logger.With("component", "memory-cache"),
		now:      time.Now,
		maxBytes: int64(cfg.MaxSizeMB) << 20,
	}
	c.perShard = int(c.maxBytes / int64(cfg.Shards))

	bc, err := bigcache.New(context.Background(), bigcache.Config{
		Shards:             cfg.Shards,
		LifeWindow:         cfg.DefaultTTL,
		CleanWindow:        cfg.CleanupInterval,
		MaxEntriesInWindow: maxEntriesInWindow,
		MaxEntrySize:       cfg.MaxEntrySize,
		HardMaxCacheSize:   cfg.MaxSizeMB,
		Logger:             bigcacheLogger{c.logger},
		OnRemoveWithReason: func(_ string, _ []byte, reason bigcache.RemoveReason) {
			if reason != bigcache.Deleted {
				c.evictions.Add(1)
			}
		},
	})
	if err != nil {
		return nil, err
	}
	c.cache = bc
	return c, nil
}

func (c *MemoryCache) Name() string { return "memory" }

func (c *MemoryCache) IsAvailable() bool { return !c.closed.Load() }

// Get returns the stored bytes, or ErrCacheMiss when absent or past its TTL.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	value, ok, err := c.lookup(key)
	if err != nil {
		return nil, types.NewCacheError("Get", key, c.Name(), err)
	}
	if !ok {
		c.misses.Add(1)
		return nil, types.ErrCacheMiss
	}
	c.hits.Add(1)
	return value, nil
}

func (c *MemoryCache) lookup(key string) ([]byte, bool, error) {
	raw, err := c.cache.Get(key)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(raw) < deadlineSize {
		_ = c.cache.Delete(key)
		return nil, false, nil
	}

	if deadline := int64(binary.BigEndian.Uint64(raw)); deadline != 0 && c.now().UnixNano() >= deadline {
		_ = c.cache.Delete(key)
		c.evictions.Add(1)
		return nil, false, nil
	}
	return raw[deadlineSize:], true, nil
}

// Set stores value until opts.TTL elapses or bigcache's LifeWindow evicts it, whichever is first.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, opts *types.CacheOptions) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if size := deadlineSize + len(key) + len(value); size > c.perShard {
		c.logger.Debug("Entry too large for memory layer", "key", key, "bytes", size, "limit", c.perShard)
		return types.NewCacheError("Set", key, c.Name(), errEntryTooLarge)
	}

	var deadline int64
	if opts != nil && opts.TTL > 0 {
		deadline = c.now().Add(opts.TTL).UnixNano()
	}
	entry := make([]byte, deadlineSize, deadlineSize+len(value))
	binary.BigEndian.PutUint64(entry, uint64(deadline))
	entry = append(entry, value...)

	if err := c.cache.Set(key, entry); err != nil {
		return types.NewCacheError("Set", key, c.Name(), err)
	}
	c.sets.Add(1)
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	if err := c.cache.Delete(key); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return types.NewCacheError("Delete", key, c.Name(), err)
	}
	c.deletes.Add(1)
	return nil
}

func (c *MemoryCache) Contains(_ context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}
	_, ok, err := c.lookup(key)
	if err != nil {
		return false, types.NewCacheError("Contains", key, c.Name(), err)
	}
	return ok, nil
}

func (c *MemoryCache) Clear(context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	return c.cache.Reset()
}

// Close releases the cache. Calling it more than once is safe.
func (c *MemoryCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.cache.Close()
}

func (c *MemoryCache) Stats() types.MemoryCacheStats {
	return types.MemoryCacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Sets:      c.sets.Load(),
		Deletes:   c.deletes.Load(),
		Evictions: c.evictions.Load(),
	}
}

func (c *MemoryCache) EntryCount() int { return c.cache.Len() }

// Size reports the bytes currently allocated by bigcache's shards.
func (c *MemoryCache) Size() int64 { return int64(c.cache.Capacity()) }

func (c *MemoryCache) MaxSize() int64 { return c.maxBytes }

// MaxEntryBytes is the largest key plus value the layer accepts.
func (c *MemoryCache) MaxEntryBytes() int { return c.perShard - deadlineSize }

func (c *MemoryCache) UsagePercentage() float64 {
	if c.maxBytes == 0 {
		return 0
	}
	return float64(c.Size()) / float64(c.maxBytes) * 100
}

func (c *MemoryCache) HitRatio() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

type bigcacheLogger struct {
	logger *slog.Logger
}

func (l bigcacheLogger) Printf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf("bigcache: "+format, args...))
}

var _ types.MemoryCacheLayer = (*MemoryCache)(nil)
