package types

import "time"

const defaultEntryTTL = 5 * time.Minute

// CacheOptions tune a single cache operation. A zero Level means the
// manager's configured default.
type CacheOptions struct {
	TTL           time.Duration
	Level         CacheLevel
	FireAndForget bool
}

func DefaultOptions() *CacheOptions {
	return &CacheOptions{TTL: defaultEntryTTL}
}

// Option adjusts CacheOptions.
type Option func(*CacheOptions)

// ApplyOptions applies opts over DefaultOptions.
func ApplyOptions(opts ...Option) *CacheOptions {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ManagerOptions are the collaborators handed to the cache manager. Nil
// fields get defaults.
type ManagerOptions struct {
	Logger     Logger
	Metrics    MetricsRecorder
	Serializer Serializer
	// Background runs layer back-fills. Without one the manager starts its own runner.
	Background BackgroundRunner
	// OnCircuitChange is told about every Redis breaker transition.
	OnCircuitChange func(from, to string)

	DisableRedis      bool
	DisableResilience bool
}

func WithTTL(ttl time.Duration) Option {
	return func(o *CacheOptions) { o.TTL = ttl }
}

func WithLevel(level CacheLevel) Option {
	return func(o *CacheOptions) { o.Level = level }
}

// WithFireAndForget queues the Redis write instead of waiting for it.
func WithFireAndForget() Option {
	return func(o *CacheOptions) { o.FireAndForget = true }
}
