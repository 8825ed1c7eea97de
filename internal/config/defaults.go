package config

import "time"

const (
	// DefaultCacheControl lets shared caches keep a rendition for 30 days.
	DefaultCacheControl = "public, s-maxage=2592000"

	// DefaultMaxWidth is the widest rendition a request may ask for.
	DefaultMaxWidth = 8192

	// DefaultMaxSourcePixels is about 200 MiB of RGBA.
	DefaultMaxSourcePixels = 50_000_000
)

// DefaultConfig is what Load starts from before a file or the environment
// overrides anything. Redis is off; a single instance runs memory-only.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:         ":8080",
			Mode:            "release",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    time.Minute,
			IdleTimeout:     2 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Image: ImageConfig{
			DefaultFormat:   "png",
			CacheControl:    DefaultCacheControl,
			MaxWidth:        DefaultMaxWidth,
			MaxSourcePixels: DefaultMaxSourcePixels,
		},
		Pipeline: PipelineConfig{
			PopulateTimeout: 5 * time.Second,
			CacheTTL:        30 * 24 * time.Hour,
		},
		Fetch: FetchConfig{
			Timeout:        10 * time.Second,
			UserAgent:      "imgedge/1.0",
			MaxBytes:       32 << 20,
			AllowedSchemes: []string{"http", "https"},
			S3:             S3Config{UseSSL: true},
			Resilience:     originResilience(),
		},
		Memory: MemoryConfig{
			Enabled:         true,
			MaxSizeMB:       256,
			DefaultTTL:      10 * time.Minute,
			CleanupInterval: 10 * time.Second,
			Shards:          64,
			MaxEntrySize:    512 << 10,
		},
		Redis: RedisConfig{
			Address:             "localhost:6379",
			KeyPrefix:           "imgedge:",
			DefaultTTL:          24 * time.Hour,
			PoolSize:            100,
			MinIdleConns:        10,
			DialTimeout:         5 * time.Second,
			ReadTimeout:         3 * time.Second,
			WriteTimeout:        3 * time.Second,
			PoolTimeout:         4 * time.Second,
			MaxPendingWrites:    500,
			HealthCheckInterval: 5 * time.Second,
			Resilience:          redisResilience(),
		},
		Defaults: DefaultsConfig{
			TTL:   10 * time.Minute,
			Level: "memory-then-redis",
		},
		KeyValidation: KeyValidationConfig{
			Enabled:         true,
			MaxKeyLength:    1024,
			AllowWhitespace: true,
		},
		Metrics: MetricsConfig{
			Enabled:         true,
			PublishInterval: 10 * time.Second,
			DataDog: DataDogConfig{
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "imgedge",
				Tags:      []string{},
			},
		},
	}
}

// redisResilience trips quickly: a slow Redis costs every request a timeout,
// and memory can serve on its own.
func redisResilience() ResilienceConfig {
	return ResilienceConfig{
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    5,
			SuccessThreshold:    2,
			OpenDuration:        30 * time.Second,
			HalfOpenMaxRequests: 3,
		},
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2,
			Jitter:         true,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        true,
			MaxConcurrent:  100,
			MaxQueue:       50,
			AcquireTimeout: 100 * time.Millisecond,
		},
	}
}

// originResilience has no breaker: one bad origin must not fail requests for
// every other origin.
func originResilience() ResilienceConfig {
	return ResilienceConfig{
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:    10,
			SuccessThreshold:    2,
			OpenDuration:        15 * time.Second,
			HalfOpenMaxRequests: 3,
		},
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    2,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     time.Second,
			Multiplier:     2,
			Jitter:         true,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        true,
			MaxConcurrent:  64,
			MaxQueue:       128,
			AcquireTimeout: 2 * time.Second,
		},
	}
}

// ForTesting is a small memory-only config with every resilience policy off
// and timeouts short enough for unit tests.
func ForTesting() *Config {
	cfg := DefaultConfig()

	cfg.Server.Address = "127.0.0.1:0"
	cfg.Server.Mode = "test"
	cfg.Server.ShutdownTimeout = 2 * time.Second

	cfg.Pipeline.PopulateTimeout = time.Second
	cfg.Pipeline.CacheTTL = time.Minute

	cfg.Fetch.Timeout = 2 * time.Second
	cfg.Fetch.MaxBytes = 4 << 20
	cfg.Fetch.Resilience = ResilienceConfig{}

	cfg.Memory = MemoryConfig{
		Enabled:         true,
		MaxSizeMB:       16,
		DefaultTTL:      time.Minute,
		CleanupInterval: time.Second,
		Shards:          16,
		MaxEntrySize:    64 << 10,
	}

	r := &cfg.Redis
	r.Enabled = false
	r.KeyPrefix = "test:"
	r.DefaultTTL = time.Minute
	r.PoolSize = 10
	r.MinIdleConns = 1
	r.DialTimeout, r.ReadTimeout, r.WriteTimeout, r.PoolTimeout = time.Second, time.Second, time.Second, time.Second
	r.MaxPendingWrites = 50
	r.HealthCheckInterval = 0
	r.Resilience = ResilienceConfig{
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold:    3,
			SuccessThreshold:    1,
			OpenDuration:        time.Second,
			HalfOpenMaxRequests: 1,
		},
		Retry: RetryConfig{
			MaxAttempts:    1,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
			Multiplier:     2,
		},
		Bulkhead: BulkheadConfig{
			MaxConcurrent:  10,
			MaxQueue:       5,
			AcquireTimeout: 50 * time.Millisecond,
		},
	}

	cfg.Defaults = DefaultsConfig{TTL: time.Minute, Level: "memory-only"}
	cfg.Metrics = MetricsConfig{PublishInterval: time.Second}
	return cfg
}

// ForTestingWithRedis enables Redis at addr, typically a miniredis server.
func ForTestingWithRedis(addr string) *Config {
	cfg := ForTesting()
	cfg.Redis.Enabled = true
	cfg.Redis.Address = addr
	cfg.Defaults.Level = "memory-then-redis"
	return cfg
}
