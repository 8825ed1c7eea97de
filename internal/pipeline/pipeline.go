// Package pipeline serves image transform requests cache-aside: look up the
// rendered response, otherwise fetch, transform and answer, then populate the
// cache in the background.
package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/format"
	"github.com/LavishGent/imgedge/internal/metrics"
	"github.com/LavishGent/imgedge/internal/transform"
	"github.com/LavishGent/imgedge/internal/types"
)

// Response is a complete HTTP response, as served and as cached.
type Response = types.CachedResponse

// Cache stores rendered responses. Get returns types.ErrCacheMiss when key is absent.
type Cache interface {
	Get(ctx context.Context, key string) (*Response, error)
	Put(ctx context.Context, key string, resp *Response) error
}

// Fetcher retrieves source image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Transformer decodes, resizes and encodes images.
type Transformer interface {
	Decode(data []byte) (image.Image, error)
	Resize(img image.Image, width uint32) image.Image
	Encode(img image.Image, f format.OutputFormat) ([]byte, error)
}

// Scheduler runs fire-and-forget work on a context detached from the request.
type Scheduler interface {
	Go(fn func(ctx context.Context))
}

// Config tunes the orchestrator.
type Config struct {
	DefaultFormat string
	CacheControl  string
	MaxWidth      uint32
	// MaxPixels caps the rendered canvas, w times the source height.
	// Zero disables the check.
	MaxPixels      int64
	CoalesceMisses bool
}

// ConfigFrom extracts the orchestrator settings from the service configuration.
func ConfigFrom(cfg *config.Config) Config {
	maxWidth := cfg.Image.MaxWidth
	if maxWidth < 0 {
		maxWidth = 0
	}
	return Config{
		DefaultFormat:  cfg.Image.DefaultFormat,
		CacheControl:   cfg.Image.CacheControl,
		MaxWidth:       uint32(maxWidth),
		MaxPixels:      cfg.Image.MaxSourcePixels,
		CoalesceMisses: cfg.Pipeline.CoalesceMisses,
	}
}

// Orchestrator is safe for concurrent use.
type Orchestrator struct {
	cache       Cache
	fetcher     Fetcher
	transformer Transformer
	scheduler   Scheduler
	publisher   types.Publisher
	logger      *slog.Logger
	now         func() time.Time
	group       singleflight.Group
	cfg         Config
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithPublisher sets where request metrics go.
func WithPublisher(p types.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithClock overrides the time source used for StoredAt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New wires an orchestrator from its collaborators.
func New(cfg Config, cache Cache, fetcher Fetcher, transformer Transformer, scheduler Scheduler, opts ...Option) (*Orchestrator, error) {
	switch {
	case cache == nil:
		return nil, errors.New("pipeline: cache is required")
	case fetcher == nil:
		return nil, errors.New("pipeline: fetcher is required")
	case transformer == nil:
		return nil, errors.New("pipeline: transformer is required")
	case scheduler == nil:
		return nil, errors.New("pipeline: scheduler is required")
	}

	if cfg.CacheControl == "" {
		cfg.CacheControl = DefaultCacheControl
	}
	if cfg.DefaultFormat == "" {
		cfg.DefaultFormat = "png"
	}

	o := &Orchestrator{
		cache:       cache,
		fetcher:     fetcher,
		transformer: transformer,
		scheduler:   scheduler,
		publisher:   metrics.NewNoOpPublisher(),
		logger:      slog.Default(),
		now:         time.Now,
		cfg:         cfg,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Serve answers req. The returned response is never shared with the cache.
func (o *Orchestrator) Serve(ctx context.Context, req *Request) *Response {
	timer := metrics.NewTimer(o.publisher, metrics.RequestDuration)
	key := CacheKey(req.Method, req.Path, req.Query)

	if resp := o.lookup(ctx, key); resp != nil {
		o.finish(timer, "hit")
		return resp
	}

	tr, perr := ParseRequest(req.Query, ParseOptions{
		DefaultFormat: o.cfg.DefaultFormat,
		MaxWidth:      o.cfg.MaxWidth,
	})
	if perr != nil {
		o.logger.Debug("rejected request", "param", perr.Param, "kind", perr.Kind.String(), "status", perr.Status)
		o.finish(timer, "bad_request")
		return errorResponse(perr.Status, perr.Message)
	}

	var (
		resp    *Response
		outcome string
	)
	if o.cfg.CoalesceMisses {
		resp, outcome = o.renderShared(ctx, key, tr)
	} else {
		resp, outcome = o.render(ctx, tr)
		if resp.Status == statusOK {
			o.populate(key, resp.Clone())
		}
	}

	o.finish(timer, outcome)
	return resp
}

func (o *Orchestrator) lookup(ctx context.Context, key string) *Response {
	timer := metrics.NewTimer(o.publisher, metrics.CacheLookup)
	resp, err := o.cache.Get(ctx, key)
	switch {
	case err == nil && resp != nil:
		timer.Stop(metrics.StatusTag("hit"))
		return resp
	case err == nil, errors.Is(err, types.ErrCacheMiss):
		timer.Stop(metrics.StatusTag("miss"))
	default:
		timer.Stop(metrics.StatusTag("error"))
		o.logger.Debug("cache lookup failed", "key", key, "error", err)
	}
	return nil
}

type shared struct {
	resp    *Response
	outcome string
}

// renderShared collapses concurrent misses for key into one render. The shared
// work runs without the caller's cancellation so one disconnecting client does
// not fail the others; only the leader populates the cache.
func (o *Orchestrator) renderShared(ctx context.Context, key string, tr TransformRequest) (*Response, string) {
	v, _, _ := o.group.Do(key, func() (any, error) {
		resp, outcome := o.render(context.WithoutCancel(ctx), tr)
		if resp.Status == statusOK {
			o.populate(key, resp.Clone())
		}
		return shared{resp: resp, outcome: outcome}, nil
	})
	s := v.(shared)
	return s.resp.Clone(), s.outcome
}

func (o *Orchestrator) render(ctx context.Context, tr TransformRequest) (*Response, string) {
	fetchTimer := metrics.NewTimer(o.publisher, metrics.FetchDuration)
	data, err := o.fetcher.Fetch(ctx, tr.SourceURL)
	if err != nil {
		fetchTimer.Stop(metrics.StatusTag("error"))
		o.logger.Warn("failed to fetch source image", "url", tr.SourceURL, "error", err)
		return errorResponse(statusForbidden, msgFetchFailed), "fetch_error"
	}
	fetchTimer.Stop(metrics.StatusTag("ok"))
	o.publisher.Histogram(metrics.FetchBytes, float64(len(data)))

	transformTimer := metrics.NewTimer(o.publisher, metrics.TransformDuration, metrics.FormatTag(tr.Format.String()))
	img, err := o.transformer.Decode(data)
	if err != nil {
		transformTimer.Stop(metrics.StatusTag("decode_error"))
		o.logger.Warn("failed to decode source image", "url", tr.SourceURL, "error", err)
		return errorResponse(statusInternalError, msgDecodeFailed+err.Error()), "decode_error"
	}

	if err := o.checkCanvas(img, tr); err != nil {
		transformTimer.Stop(metrics.StatusTag("encode_error"))
		o.logger.Warn("rendition too large", "url", tr.SourceURL, "width", tr.Width, "error", err)
		return errorResponse(statusInternalError, msgEncodeFailed+err.Error()), "encode_error"
	}

	body, err := o.transformer.Encode(o.transformer.Resize(img, tr.Width), tr.Format)
	if err != nil {
		transformTimer.Stop(metrics.StatusTag("encode_error"))
		o.logger.Error("failed to encode image", "url", tr.SourceURL, "format", tr.Format.String(), "error", err)
		return errorResponse(statusInternalError, msgEncodeFailed+err.Error()), "encode_error"
	}
	transformTimer.Stop(metrics.StatusTag("ok"))
	o.publisher.Histogram(metrics.ResponseBytes, float64(len(body)), metrics.FormatTag(tr.Format.String()))

	return imageResponse(body, tr.Format, o.cfg.CacheControl, o.now()), "miss"
}

// checkCanvas refuses a rendition whose canvas would exceed MaxPixels. The
// source height is kept, so a narrow, tall source can still blow up.
func (o *Orchestrator) checkCanvas(img image.Image, tr TransformRequest) error {
	h := img.Bounds().Dy()
	if o.cfg.MaxPixels <= 0 || int64(tr.Width)*int64(h) <= o.cfg.MaxPixels {
		return nil
	}
	return &transform.EncodeError{
		Format: tr.Format.Kind(),
		Err:    &transform.PixelLimitError{Width: int(tr.Width), Height: h, Limit: o.cfg.MaxPixels},
	}
}

// populate stores resp after the caller has its answer. Failures are dropped.
func (o *Orchestrator) populate(key string, resp *Response) {
	o.scheduler.Go(func(ctx context.Context) {
		timer := metrics.NewTimer(o.publisher, metrics.CachePopulate)
		if err := o.cache.Put(ctx, key, resp); err != nil {
			timer.Stop(metrics.StatusTag("error"))
			o.logger.Debug("cache populate failed", "key", key, "error", err)
			return
		}
		timer.Stop(metrics.StatusTag("ok"))
		o.publisher.Count(metrics.CachePopulateBytes, int64(len(resp.Body)))
	})
}

func (o *Orchestrator) finish(timer *metrics.Timer, outcome string) {
	tag := metrics.OutcomeTag(outcome)
	o.publisher.Incr(metrics.RequestCount, tag)
	timer.Stop(tag)
}
