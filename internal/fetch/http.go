package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/LavishGent/imgedge/internal/config"
)

// HTTPFetcher downloads sources with a plain GET.
type HTTPFetcher struct {
	client    *http.Client
	logger    *slog.Logger
	userAgent string
	maxBytes  int64
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithHTTPClient replaces the default client. Its Timeout is left as given.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(f *HTTPFetcher) {
		f.client = c
	}
}

// NewHTTPFetcher creates a fetcher whose client times out after cfg.Timeout.
func NewHTTPFetcher(cfg config.FetchConfig, logger *slog.Logger, opts ...HTTPOption) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		logger:    logger.With("component", "http-fetcher"),
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch GETs url and returns the body. Any non-2xx answer is an *Error carrying the status.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{URL: url, Err: fmt.Errorf("%w: %w", ErrInvalidURL, err)}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "image/*")

	res, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("Source request failed", "url", url, "error", err)
		return nil, &Error{URL: url, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		f.logger.Debug("Source answered with error status", "url", url, "status", res.StatusCode)
		return nil, &Error{URL: url, StatusCode: res.StatusCode, Err: fmt.Errorf("unexpected status %s", res.Status)}
	}

	if f.maxBytes > 0 && res.ContentLength > f.maxBytes {
		return nil, &Error{URL: url, Err: ErrTooLarge}
	}

	data, err := readLimited(res.Body, f.maxBytes)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	return data, nil
}
