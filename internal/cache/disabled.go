package cache

import (
	"context"

	"github.com/LavishGent/imgedge/internal/types"
)

const (
	disabledMemoryName = "memory-disabled"
	disabledRedisName  = "redis-disabled"
)

// offLayer stands in for a layer that is turned off in configuration. Writes
// are accepted and dropped; reads fail with missErr.
type offLayer struct {
	name    string
	missErr error
}

// NewDisabledMemoryCache returns a memory layer that never holds anything.
func NewDisabledMemoryCache() types.MemoryCacheLayer {
	return offLayer{name: disabledMemoryName, missErr: types.ErrCacheMiss}
}

// NewDisabledRedisCache returns a Redis layer that reports itself unavailable.
func NewDisabledRedisCache() types.RedisCacheLayer {
	return offLayer{name: disabledRedisName, missErr: types.ErrRedisUnavailable}
}

func (l offLayer) Name() string      { return l.name }
func (l offLayer) IsAvailable() bool { return false }
func (l offLayer) Close() error      { return nil }

func (l offLayer) Get(context.Context, string) ([]byte, error) {
	return nil, l.missErr
}

func (l offLayer) Set(context.Context, string, []byte, *types.CacheOptions) error { return nil }
func (l offLayer) Delete(context.Context, string) error                           { return nil }
func (l offLayer) Contains(context.Context, string) (bool, error)                 { return false, nil }
func (l offLayer) Clear(context.Context) error                                    { return nil }

func (l offLayer) Stats() types.MemoryCacheStats { return types.MemoryCacheStats{} }
func (l offLayer) EntryCount() int               { return 0 }
func (l offLayer) Size() int64                   { return 0 }
func (l offLayer) MaxSize() int64                { return 0 }
func (l offLayer) UsagePercentage() float64      { return 0 }
func (l offLayer) HitRatio() float64             { return 0 }

func (l offLayer) PendingWrites() int   { return 0 }
func (l offLayer) DroppedWrites() int64 { return 0 }
