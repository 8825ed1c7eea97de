package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "IMGEDGE_"

// Load loads configuration from a JSON file.
// If the file doesn't exist, returns default configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies environment overrides.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// binding maps one IMGEDGE_ variable onto a field. Unparseable values leave
// the field alone.
type binding struct {
	name  string
	apply func(string)
}

func str(p *string) func(string) { return func(v string) { *p = v } }

func boolean(p *bool) func(string) { return func(v string) { *p = parseBool(v) } }

func integer(p *int) func(string) { return func(v string) { *p = parseInt(v, *p) } }

func duration(p *time.Duration) func(string) {
	return func(v string) { *p = parseDuration(v, *p) }
}

func resilienceBindings(prefix string, r *ResilienceConfig) []binding {
	return []binding{
		{prefix + "CIRCUIT_BREAKER_ENABLED", boolean(&r.CircuitBreaker.Enabled)},
		{prefix + "CIRCUIT_BREAKER_FAILURE_THRESHOLD", integer(&r.CircuitBreaker.FailureThreshold)},
		{prefix + "CIRCUIT_BREAKER_OPEN_DURATION", duration(&r.CircuitBreaker.OpenDuration)},
		{prefix + "RETRY_ENABLED", boolean(&r.Retry.Enabled)},
		{prefix + "RETRY_MAX_ATTEMPTS", integer(&r.Retry.MaxAttempts)},
		{prefix + "BULKHEAD_ENABLED", boolean(&r.Bulkhead.Enabled)},
		{prefix + "BULKHEAD_MAX_CONCURRENT", integer(&r.Bulkhead.MaxConcurrent)},
	}
}

func envBindings(cfg *Config) []binding {
	b := []binding{
		{"SERVER_ADDRESS", str(&cfg.Server.Address)},
		{"SERVER_MODE", str(&cfg.Server.Mode)},
		{"SERVER_SHUTDOWN_TIMEOUT", duration(&cfg.Server.ShutdownTimeout)},

		{"IMAGE_MAX_WIDTH", integer(&cfg.Image.MaxWidth)},
		{"IMAGE_MAX_SOURCE_PIXELS", func(v string) {
			cfg.Image.MaxSourcePixels = int64(parseInt(v, int(cfg.Image.MaxSourcePixels)))
		}},
		{"IMAGE_DEFAULT_FORMAT", str(&cfg.Image.DefaultFormat)},
		{"IMAGE_CACHE_CONTROL", str(&cfg.Image.CacheControl)},

		{"PIPELINE_COALESCE_MISSES", boolean(&cfg.Pipeline.CoalesceMisses)},
		{"PIPELINE_POPULATE_TIMEOUT", duration(&cfg.Pipeline.PopulateTimeout)},
		{"PIPELINE_CACHE_TTL", duration(&cfg.Pipeline.CacheTTL)},

		{"FETCH_TIMEOUT", duration(&cfg.Fetch.Timeout)},
		{"FETCH_USER_AGENT", str(&cfg.Fetch.UserAgent)},
		{"FETCH_MAX_BYTES", func(v string) { cfg.Fetch.MaxBytes = int64(parseInt(v, int(cfg.Fetch.MaxBytes))) }},
		{"FETCH_ALLOWED_SCHEMES", func(v string) { cfg.Fetch.AllowedSchemes = parseList(v) }},
		{"S3_ENABLED", boolean(&cfg.Fetch.S3.Enabled)},
		{"S3_ENDPOINT", str(&cfg.Fetch.S3.Endpoint)},
		{"S3_ACCESS_KEY", str(&cfg.Fetch.S3.AccessKey)},
		{"S3_SECRET_KEY", func(v string) { cfg.Fetch.S3.SecretKey = NewSecretString(v) }},
		{"S3_REGION", str(&cfg.Fetch.S3.Region)},
		{"S3_USE_SSL", boolean(&cfg.Fetch.S3.UseSSL)},

		{"MEMORY_ENABLED", boolean(&cfg.Memory.Enabled)},
		{"MEMORY_MAX_SIZE_MB", integer(&cfg.Memory.MaxSizeMB)},
		{"MEMORY_DEFAULT_TTL", duration(&cfg.Memory.DefaultTTL)},

		{"REDIS_ENABLED", boolean(&cfg.Redis.Enabled)},
		{"REDIS_ADDRESS", str(&cfg.Redis.Address)},
		{"REDIS_PASSWORD", func(v string) { cfg.Redis.Password = NewSecretString(v) }},
		{"REDIS_DB", integer(&cfg.Redis.DB)},
		{"REDIS_KEY_PREFIX", str(&cfg.Redis.KeyPrefix)},
		{"REDIS_DEFAULT_TTL", duration(&cfg.Redis.DefaultTTL)},
		{"REDIS_POOL_SIZE", integer(&cfg.Redis.PoolSize)},
		{"REDIS_ENABLE_TLS", boolean(&cfg.Redis.EnableTLS)},
		{"REDIS_TLS_SKIP_VERIFY", boolean(&cfg.Redis.TLSSkipVerify)},

		{"DEFAULTS_LEVEL", str(&cfg.Defaults.Level)},
		{"DEFAULTS_FIRE_AND_FORGET", boolean(&cfg.Defaults.FireAndForget)},

		{"METRICS_ENABLED", boolean(&cfg.Metrics.Enabled)},
	}
	b = append(b, resilienceBindings("REDIS_", &cfg.Redis.Resilience)...)
	return append(b, resilienceBindings("FETCH_", &cfg.Fetch.Resilience)...)
}

func applyEnvOverrides(cfg *Config) {
	for _, b := range envBindings(cfg) {
		if v := os.Getenv(envPrefix + b.name); v != "" {
			b.apply(v)
		}
	}
	applyDatadogEnv(&cfg.Metrics.DataDog)
}

// applyDatadogEnv honours the agent's standard DD_ variables. They win over
// IMGEDGE_DATADOG_*.
func applyDatadogEnv(dd *DataDogConfig) {
	host, service := os.Getenv("DD_AGENT_HOST"), os.Getenv("DD_SERVICE")
	if host != "" {
		dd.AgentHost = host
		dd.Enabled = true
	} else if v := os.Getenv(envPrefix + "DATADOG_ENABLED"); v != "" {
		dd.Enabled = parseBool(v)
	}
	if v := os.Getenv("DD_DOGSTATSD_PORT"); v != "" {
		dd.Port = parseInt(v, dd.Port)
	}
	if service != "" {
		dd.Prefix = service
	} else if v := os.Getenv(envPrefix + "DATADOG_PREFIX"); v != "" {
		dd.Prefix = v
	}
	for _, t := range [...]struct{ tag, name string }{{"env", "DD_ENV"}, {"version", "DD_VERSION"}} {
		if v := os.Getenv(t.name); v != "" {
			dd.Tags = append(dd.Tags, t.tag+":"+v)
		}
	}
}

var (
	knownSchemes = []string{"http", "https", "s3"}
	knownFormats = []string{"png", "jpeg", "jpg", "webp"}
	knownModes   = []string{"debug", "release", "test"}
)

// Validate checks if the configuration is valid.
//
//nolint:gocyclo // One check per field keeps the messages precise
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	if c.Server.Mode != "" && !slices.Contains(knownModes, c.Server.Mode) {
		return fmt.Errorf("server.mode %q must be one of %v", c.Server.Mode, knownModes)
	}

	if c.Image.MaxWidth <= 0 {
		return errors.New("image.maxWidth must be positive")
	}
	if c.Image.MaxSourcePixels <= 0 {
		return errors.New("image.maxSourcePixels must be positive")
	}
	if !slices.Contains(knownFormats, strings.ToLower(c.Image.DefaultFormat)) {
		return fmt.Errorf("image.defaultFormat %q must be one of %v", c.Image.DefaultFormat, knownFormats)
	}

	if c.Pipeline.PopulateTimeout <= 0 {
		return errors.New("pipeline.populateTimeout must be positive")
	}
	if c.Pipeline.CacheTTL < 0 {
		return errors.New("pipeline.cacheTTL must not be negative")
	}

	if c.Fetch.Timeout < 0 {
		return errors.New("fetch.timeout must not be negative")
	}
	if c.Fetch.MaxBytes <= 0 {
		return errors.New("fetch.maxBytes must be positive")
	}
	if len(c.Fetch.AllowedSchemes) == 0 {
		return errors.New("fetch.allowedSchemes must not be empty")
	}
	for _, s := range c.Fetch.AllowedSchemes {
		if !slices.Contains(knownSchemes, s) {
			return fmt.Errorf("fetch.allowedSchemes: unsupported scheme %q", s)
		}
		if s == "s3" && !c.Fetch.S3.Enabled {
			return errors.New("fetch.allowedSchemes lists s3 but fetch.s3 is disabled")
		}
	}
	if c.Fetch.S3.Enabled && c.Fetch.S3.Endpoint == "" {
		return errors.New("fetch.s3.endpoint is required when s3 is enabled")
	}
	if err := c.Fetch.Resilience.validate("fetch.resilience."); err != nil {
		return err
	}

	if c.Memory.Enabled {
		if c.Memory.MaxSizeMB <= 0 {
			return errors.New("memory.maxSizeMB must be positive")
		}
		if c.Memory.Shards <= 0 || (c.Memory.Shards&(c.Memory.Shards-1)) != 0 {
			return errors.New("memory.shards must be a positive power of 2")
		}
	}

	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return errors.New("redis.address is required when redis is enabled")
		}
		if c.Redis.PoolSize <= 0 {
			return errors.New("redis.poolSize must be positive")
		}
	}

	return c.Redis.Resilience.validate("redis.resilience.")
}

func (r ResilienceConfig) validate(prefix string) error {
	if r.CircuitBreaker.Enabled {
		if r.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("%scircuitBreaker.failureThreshold must be positive", prefix)
		}
		if r.CircuitBreaker.OpenDuration <= 0 {
			return fmt.Errorf("%scircuitBreaker.openDuration must be positive", prefix)
		}
	}

	if r.Retry.Enabled && r.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("%sretry.maxAttempts must be positive", prefix)
	}

	if r.Bulkhead.Enabled && r.Bulkhead.MaxConcurrent <= 0 {
		return fmt.Errorf("%sbulkhead.maxConcurrent must be positive", prefix)
	}

	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

func parseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
