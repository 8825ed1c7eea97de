// Package config provides configuration management for imgedge.
package config

import (
	"time"

	"github.com/LavishGent/imgedge/internal/types"
)

// Config is the whole service configuration, as read from JSON and the
// IMGEDGE_ environment.
//
//nolint:govet // grouped by concern
type Config struct {
	Server        ServerConfig        `json:"server"`
	Image         ImageConfig         `json:"image"`
	Pipeline      PipelineConfig      `json:"pipeline"`
	Fetch         FetchConfig         `json:"fetch"`
	Memory        MemoryConfig        `json:"memory"`
	Redis         RedisConfig         `json:"redis"`
	Defaults      DefaultsConfig      `json:"defaults"`
	KeyValidation KeyValidationConfig `json:"keyValidation"`
	Metrics       MetricsConfig       `json:"metrics"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string        `json:"address"`
	Mode            string        `json:"mode"`
	ReadTimeout     time.Duration `json:"readTimeout"`
	WriteTimeout    time.Duration `json:"writeTimeout"`
	IdleTimeout     time.Duration `json:"idleTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout"`
}

// ImageConfig bounds what a single request may ask for.
type ImageConfig struct {
	DefaultFormat string `json:"defaultFormat"`
	CacheControl  string `json:"cacheControl"`
	MaxWidth      int    `json:"maxWidth"`
	// MaxSourcePixels caps width*height of both the source canvas and the
	// rendition.
	MaxSourcePixels int64 `json:"maxSourcePixels"`
}

// PipelineConfig tunes the cache-aside request flow.
type PipelineConfig struct {
	PopulateTimeout time.Duration `json:"populateTimeout"`
	CacheTTL        time.Duration `json:"cacheTTL"`
	// CoalesceMisses shares one fetch and transform between concurrent misses
	// for the same key.
	CoalesceMisses bool `json:"coalesceMisses"`
}

// FetchConfig configures how source images are retrieved.
//
//nolint:govet // grouped by concern
type FetchConfig struct {
	Timeout        time.Duration    `json:"timeout"`
	UserAgent      string           `json:"userAgent"`
	MaxBytes       int64            `json:"maxBytes"`
	AllowedSchemes []string         `json:"allowedSchemes"`
	S3             S3Config         `json:"s3"`
	Resilience     ResilienceConfig `json:"resilience"`
}

// S3Config configures the object-store source for s3:// URLs.
type S3Config struct {
	Endpoint  string       `json:"endpoint"`
	AccessKey string       `json:"accessKey"`
	SecretKey SecretString `json:"secretKey"`
	Region    string       `json:"region"`
	Enabled   bool         `json:"enabled"`
	UseSSL    bool         `json:"useSSL"`
}

// ResilienceConfig groups the policies wrapped around one dependency.
type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	Retry          RetryConfig          `json:"retry"`
	Bulkhead       BulkheadConfig       `json:"bulkhead"`
}

// KeyValidationConfig limits which keys the cache accepts.
type KeyValidationConfig struct {
	ReservedPatterns  []string `json:"reservedPatterns"`
	MaxKeyLength      int      `json:"maxKeyLength"`
	Enabled           bool     `json:"enabled"`
	AllowEmpty        bool     `json:"allowEmpty"`
	AllowControlChars bool     `json:"allowControlChars"`
	AllowWhitespace   bool     `json:"allowWhitespace"`
}

// ToTypesConfig maps the JSON shape onto the validator's.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		MaxKeyLength:      c.MaxKeyLength,
		AllowEmpty:        c.AllowEmpty,
		AllowControlChars: c.AllowControlChars,
		AllowWhitespace:   c.AllowWhitespace,
		ReservedPatterns:  c.ReservedPatterns,
	}
}

// MemoryConfig sizes the in-process bigcache layer. MaxEntrySize also
// bounds a single cached rendition.
type MemoryConfig struct {
	DefaultTTL      time.Duration `json:"defaultTTL"`
	CleanupInterval time.Duration `json:"cleanupInterval"`
	MaxSizeMB       int           `json:"maxSizeMB"`
	Shards          int           `json:"shards"`
	MaxEntrySize    int           `json:"maxEntrySize"`
	Enabled         bool          `json:"enabled"`
}

// RedisConfig configures the shared second-level cache. Resilience wraps
// every command sent to it.
//
//nolint:govet // grouped by concern
type RedisConfig struct {
	Resilience          ResilienceConfig `json:"resilience"`
	DefaultTTL          time.Duration    `json:"defaultTTL"`
	DialTimeout         time.Duration    `json:"dialTimeout"`
	ReadTimeout         time.Duration    `json:"readTimeout"`
	WriteTimeout        time.Duration    `json:"writeTimeout"`
	PoolTimeout         time.Duration    `json:"poolTimeout"`
	HealthCheckInterval time.Duration    `json:"healthCheckInterval"`
	Password            SecretString     `json:"password"`
	Address             string           `json:"address"`
	KeyPrefix           string           `json:"keyPrefix"`
	DB                  int              `json:"db"`
	PoolSize            int              `json:"poolSize"`
	MinIdleConns        int              `json:"minIdleConns"`
	MaxPendingWrites    int              `json:"maxPendingWrites"`
	Enabled             bool             `json:"enabled"`
	EnableTLS           bool             `json:"enableTLS"`
	TLSSkipVerify       bool             `json:"tlsSkipVerify"`
}

// DefaultsConfig applies to cache writes that pass no options.
//
//nolint:govet
type DefaultsConfig struct {
	TTL   time.Duration `json:"ttl"`
	Level string        `json:"level"`
	// FireAndForget queues Redis writes; a full queue drops them.
	FireAndForget bool `json:"fireAndForget"`
}

// CircuitBreakerConfig opens after FailureThreshold consecutive failures and
// lets HalfOpenMaxRequests probes through once OpenDuration has passed.
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled"`
	FailureThreshold    int           `json:"failureThreshold"`
	SuccessThreshold    int           `json:"successThreshold"`
	OpenDuration        time.Duration `json:"openDuration"`
	HalfOpenMaxRequests int           `json:"halfOpenMaxRequests"`
}

// RetryConfig retries transient errors with exponential backoff.
type RetryConfig struct {
	InitialBackoff time.Duration `json:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff"`
	Multiplier     float64       `json:"multiplier"`
	MaxAttempts    int           `json:"maxAttempts"`
	Enabled        bool          `json:"enabled"`
	Jitter         bool          `json:"jitter"`
}

// BulkheadConfig caps concurrent calls; MaxQueue callers may wait up to
// AcquireTimeout for a slot.
type BulkheadConfig struct {
	Enabled        bool          `json:"enabled"`
	MaxConcurrent  int           `json:"maxConcurrent"`
	MaxQueue       int           `json:"maxQueue"`
	AcquireTimeout time.Duration `json:"acquireTimeout"`
}

// MetricsConfig controls the periodic health publisher.
//
//nolint:govet
type MetricsConfig struct {
	PublishInterval time.Duration `json:"publishInterval"`
	DataDog         DataDogConfig `json:"datadog"`
	Enabled         bool          `json:"enabled"`
}

// DataDogConfig points the publisher at a DogStatsD agent.
//
//nolint:govet
type DataDogConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost"`
	Prefix    string   `json:"prefix"`
	Port      int      `json:"port"`
	Enabled   bool     `json:"enabled"`
}
