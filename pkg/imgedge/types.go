package imgedge

import (
	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/format"
	"github.com/LavishGent/imgedge/internal/pipeline"
	"github.com/LavishGent/imgedge/internal/types"
)

type (
	// Config is the service configuration.
	Config = config.Config
	// Request is the method, path and query of an image request.
	Request = pipeline.Request
	// Response is a rendered HTTP response.
	Response = pipeline.Response
	// Fetcher retrieves source image bytes.
	Fetcher = pipeline.Fetcher
	// Cache stores rendered responses.
	Cache = pipeline.Cache
	// OutputFormat is a resolved output encoding with its quality.
	OutputFormat = format.OutputFormat
	// Logger provides logging operations.
	Logger = types.Logger
	// MetricsRecorder records cache operations.
	MetricsRecorder = types.MetricsRecorder
	// Publisher sends metrics to a backend.
	Publisher = types.Publisher

	HealthStatus        = types.HealthStatus
	HealthMetrics       = types.HealthMetrics
	MemoryHealthMetrics = types.MemoryHealthMetrics
	RedisHealthMetrics  = types.RedisHealthMetrics
)

const (
	HealthStatusHealthy   = types.HealthStatusHealthy
	HealthStatusDegraded  = types.HealthStatusDegraded
	HealthStatusUnhealthy = types.HealthStatusUnhealthy
)

// Resolve maps a format name and optional quality to an OutputFormat.
func Resolve(name string, quality *int) (OutputFormat, error) {
	return format.Resolve(name, quality)
}

// CacheKey returns the key a request's response is stored under.
func CacheKey(method, path string, query map[string][]string) string {
	return pipeline.CacheKey(method, path, query)
}
