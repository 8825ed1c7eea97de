// Package server exposes the image pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LavishGent/imgedge/internal/metrics"
	"github.com/LavishGent/imgedge/internal/pipeline"
	"github.com/LavishGent/imgedge/internal/types"
)

const greeting = "Hello Image Resizer!"

// Pipeline answers image requests.
type Pipeline interface {
	Serve(ctx context.Context, req *pipeline.Request) *pipeline.Response
}

// HealthReporter reports cache health for /healthz.
type HealthReporter interface {
	Health(ctx context.Context) *types.HealthMetrics
}

// RouterOptions configures the HTTP router.
type RouterOptions struct {
	Pipeline  Pipeline
	Health    HealthReporter
	Publisher types.Publisher
	Logger    *slog.Logger
	Version   string
	// Mode is the gin mode: debug, release or test.
	Mode string
}

// NewRouter builds the gin engine with logging and recovery middleware.
func NewRouter(opts RouterOptions) (*gin.Engine, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("server: pipeline is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	publisher := opts.Publisher
	if publisher == nil {
		publisher = metrics.NewNoOpPublisher()
	}

	switch opts.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(opts.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(recoveryMiddleware(logger))
	engine.Use(loggingMiddleware(logger, publisher))

	h := &handlers{pipeline: opts.Pipeline, health: opts.Health, version: opts.Version}
	engine.GET("/", h.root)
	engine.GET("/version", h.versionInfo)
	engine.GET("/healthz", h.healthz)
	engine.GET("/image", h.image)

	return engine, nil
}

type handlers struct {
	pipeline Pipeline
	health   HealthReporter
	version  string
}

func (h *handlers) root(c *gin.Context) {
	c.String(http.StatusOK, greeting)
}

func (h *handlers) versionInfo(c *gin.Context) {
	version := h.version
	if version == "" {
		version = "dev"
	}
	c.String(http.StatusOK, version)
}

func (h *handlers) healthz(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": types.HealthStatusHealthy})
		return
	}
	report := h.health.Health(c.Request.Context())
	status := http.StatusOK
	if report.Status == types.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (h *handlers) image(c *gin.Context) {
	resp := h.pipeline.Serve(c.Request.Context(), pipeline.NewRequest(c.Request))
	writeResponse(c, resp)
}

func writeResponse(c *gin.Context, resp *pipeline.Response) {
	header := c.Writer.Header()
	for name, values := range resp.Header {
		header[name] = append([]string(nil), values...)
	}
	if header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	}
	c.Status(resp.Status)
	if _, err := c.Writer.Write(resp.Body); err != nil {
		_ = c.Error(err)
	}
}
