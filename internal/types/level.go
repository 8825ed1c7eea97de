// Package types holds the values shared by the cache, pipeline and metrics
// packages. It imports nothing from the module so every package can use it.
package types

import "fmt"

// CacheLevel selects which layers an operation touches. It is a bit set:
// memory is bit 0, Redis bit 1.
type CacheLevel int

const (
	LevelMemoryOnly      CacheLevel = 1
	LevelRedisOnly       CacheLevel = 2
	LevelMemoryThenRedis            = LevelMemoryOnly | LevelRedisOnly
)

var levelNames = map[CacheLevel]string{
	LevelMemoryOnly:      "memory-only",
	LevelRedisOnly:       "redis-only",
	LevelMemoryThenRedis: "memory-then-redis",
}

func (l CacheLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// ParseCacheLevel maps a config value to a level. Anything unrecognised,
// including the empty string, means both layers.
func ParseCacheLevel(s string) CacheLevel {
	for l, name := range levelNames {
		if name == s {
			return l
		}
	}
	return LevelMemoryThenRedis
}

// UnmarshalText is strict, unlike ParseCacheLevel.
func (l *CacheLevel) UnmarshalText(b []byte) error {
	for lv, name := range levelNames {
		if name == string(b) {
			*l = lv
			return nil
		}
	}
	return fmt.Errorf("unknown cache level %q", b)
}

func (l CacheLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l CacheLevel) IncludesMemory() bool { return l&LevelMemoryOnly != 0 }

func (l CacheLevel) IncludesRedis() bool { return l&LevelRedisOnly != 0 }

// MemoryCacheStats are the memory layer's lifetime counters.
type MemoryCacheStats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
}
