package imgedge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/LavishGent/imgedge/internal/background"
	"github.com/LavishGent/imgedge/internal/cache"
	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/fetch"
	"github.com/LavishGent/imgedge/internal/logging"
	"github.com/LavishGent/imgedge/internal/metrics"
	"github.com/LavishGent/imgedge/internal/metrics/datadog"
	"github.com/LavishGent/imgedge/internal/pipeline"
	"github.com/LavishGent/imgedge/internal/server"
	"github.com/LavishGent/imgedge/internal/transform"
	"github.com/LavishGent/imgedge/internal/types"
)

const defaultShutdownTimeout = 15 * time.Second

// Service wires the fetcher, transformer and cache behind the HTTP routes.
type Service struct {
	cfg          *config.Config
	logger       *slog.Logger
	manager      *cache.Manager
	runner       *background.Runner
	orchestrator *pipeline.Orchestrator
	handler      http.Handler
	publisher    types.Publisher
	healthLoop   *metrics.BackgroundPublisher

	mu     sync.Mutex
	server *server.Server
	closed bool
}

func loggerFrom(l Logger) *slog.Logger {
	return logging.FromLogger(l)
}

// NewFromConfig creates a service from cfg. cfg is validated but not modified.
func NewFromConfig(cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("imgedge: nil config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("imgedge: %w", err)
	}

	o := &serviceOptions{}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:    cfg,
		logger: logger,
		runner: background.NewRunner(cfg.Pipeline.PopulateTimeout, background.WithLogger(logger)),
	}

	publisher, err := s.buildPublisher(o)
	if err != nil {
		return nil, err
	}
	s.publisher = publisher

	recorder := o.metrics
	if recorder == nil && cfg.Metrics.Enabled {
		recorder = metrics.NewTracker()
	}

	store := o.cache
	if store == nil {
		manager, err := cache.NewManager(cfg, &types.ManagerOptions{
			Logger:     logger,
			Metrics:    recorder,
			Background: s.runner,

			OnCircuitChange: metrics.CircuitReporter(publisher, "redis"),
		})
		if err != nil {
			_ = publisher.Close()
			return nil, fmt.Errorf("imgedge: cache: %w", err)
		}
		s.manager = manager
		store = cache.NewResponseStore(manager, cfg.Pipeline.CacheTTL)
	}

	fetcher := o.fetcher
	if fetcher == nil {
		f, err := fetch.New(cfg.Fetch, logger, metrics.CircuitReporter(publisher, "origin"))
		if err != nil {
			s.closeDependencies()
			return nil, fmt.Errorf("imgedge: %w", err)
		}
		fetcher = f
	}

	s.orchestrator, err = pipeline.New(pipeline.ConfigFrom(cfg), store, fetcher, transform.New(transform.WithMaxPixels(cfg.Image.MaxSourcePixels)), s.runner,
		pipeline.WithLogger(logger.With("component", "pipeline")),
		pipeline.WithPublisher(publisher),
	)
	if err != nil {
		s.closeDependencies()
		return nil, err
	}

	routerOpts := server.RouterOptions{
		Pipeline:  s.orchestrator,
		Publisher: publisher,
		Logger:    logger.With("component", "http"),
		Version:   o.version,
		Mode:      cfg.Server.Mode,
	}
	if s.manager != nil {
		routerOpts.Health = s.manager
	}
	s.handler, err = server.NewRouter(routerOpts)
	if err != nil {
		s.closeDependencies()
		return nil, err
	}

	s.startHealthLoop(recorder)
	return s, nil
}

func (s *Service) buildPublisher(o *serviceOptions) (types.Publisher, error) {
	if o.publisher != nil {
		return o.publisher, nil
	}
	if !s.cfg.Metrics.Enabled {
		return metrics.NewNoOpPublisher(), nil
	}
	if s.cfg.Metrics.DataDog.Enabled {
		p, err := datadog.NewPublisher(&s.cfg.Metrics.DataDog, s.logger)
		if err != nil {
			return nil, fmt.Errorf("imgedge: metrics: %w", err)
		}
		return p, nil
	}
	return metrics.NewLoggingPublisher(s.logger), nil
}

func (s *Service) startHealthLoop(recorder MetricsRecorder) {
	if !s.cfg.Metrics.Enabled || s.manager == nil {
		return
	}
	tracker, ok := recorder.(*metrics.Tracker)
	if !ok {
		tracker = metrics.NewTracker()
	}
	manager := s.manager
	s.healthLoop = metrics.NewBackgroundPublisher(s.publisher, s.cfg.Metrics.PublishInterval, func() *types.PublisherHealthMetrics {
		return tracker.HealthMetrics(manager.MemoryStats(), manager.IsRedisAvailable())
	}, s.logger)
	s.healthLoop.Start(context.Background())
}

// Handler returns the HTTP routes: /, /version, /healthz and /image.
func (s *Service) Handler() http.Handler {
	return s.handler
}

// Serve answers one image request without going through HTTP.
func (s *Service) Serve(ctx context.Context, req *Request) *Response {
	return s.orchestrator.Serve(ctx, req)
}

// Health reports cache health. A service with a custom cache is always healthy.
func (s *Service) Health(ctx context.Context) *HealthMetrics {
	if s.manager == nil {
		return &HealthMetrics{Status: HealthStatusHealthy, Timestamp: time.Now()}
	}
	return s.manager.Health(ctx)
}

// ListenAndServe serves on the configured address until ctx is done, then
// shuts the listener down gracefully. It does not release the cache; call Close.
func (s *Service) ListenAndServe(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return types.ErrClosed
	}
	srv := server.New(s.cfg.Server, s.handler, s.logger)
	s.server = srv
	s.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}

// Close stops the listener, waits for pending cache writes and releases the cache.
func (s *Service) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	srv := s.server
	s.mu.Unlock()

	timeout := s.shutdownTimeout()
	var errs []error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		errs = append(errs, srv.Shutdown(ctx))
		cancel()
	}
	if err := s.runner.Close(timeout); err != nil {
		s.logger.Warn("pending cache writes abandoned", "error", err)
		errs = append(errs, err)
	}
	errs = append(errs, s.closeDependencies())
	return errors.Join(errs...)
}

func (s *Service) closeDependencies() error {
	var errs []error
	if s.healthLoop != nil {
		s.healthLoop.Stop()
	}
	if s.manager != nil {
		errs = append(errs, s.manager.CloseWithTimeout(s.shutdownTimeout()))
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	return errors.Join(errs...)
}

func (s *Service) shutdownTimeout() time.Duration {
	if s.cfg.Server.ShutdownTimeout > 0 {
		return s.cfg.Server.ShutdownTimeout
	}
	return defaultShutdownTimeout
}
