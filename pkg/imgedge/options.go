package imgedge

import (
	"log/slog"
)

type serviceOptions struct {
	logger    *slog.Logger
	fetcher   Fetcher
	cache     Cache
	metrics   MetricsRecorder
	publisher Publisher
	version   string
}

// Option configures a Service.
type Option func(*serviceOptions)

// WithLogger logs through any Logger implementation.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = loggerFrom(logger)
		}
	}
}

// WithSlogLogger logs through logger.
func WithSlogLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// WithFetcher replaces the built-in http/https/s3 fetcher.
func WithFetcher(f Fetcher) Option {
	return func(o *serviceOptions) {
		o.fetcher = f
	}
}

// WithCache replaces the layered memory and Redis cache.
func WithCache(c Cache) Option {
	return func(o *serviceOptions) {
		o.cache = c
	}
}

// WithMetrics records cache operations to m.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *serviceOptions) {
		o.metrics = m
	}
}

// WithPublisher sends request and health metrics to p instead of the configured backend.
func WithPublisher(p Publisher) Option {
	return func(o *serviceOptions) {
		o.publisher = p
	}
}

// WithVersion sets the string served on /version.
func WithVersion(version string) Option {
	return func(o *serviceOptions) {
		o.version = version
	}
}
