// Package fetch retrieves source image bytes over HTTP(S) or from an S3-compatible object store.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/resilience"
)

var (
	ErrTooLarge          = errors.New("source exceeds size limit")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrInvalidURL        = errors.New("invalid source url")
)

// Fetcher returns the raw bytes behind a source URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Error describes a failed fetch. StatusCode is zero when no response was received.
type Error struct {
	Err        error
	URL        string
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed: transport failures
// and 408, 429 and 5xx answers are; other statuses and local rejections are not.
func (e *Error) Retryable() bool {
	switch {
	case errors.Is(e.Err, ErrTooLarge), errors.Is(e.Err, ErrUnsupportedScheme), errors.Is(e.Err, ErrInvalidURL):
		return false
	case errors.Is(e.Err, context.Canceled):
		return false
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= http.StatusInternalServerError
	}
}

// CircuitObserver is told about every origin breaker transition.
type CircuitObserver func(from, to string)

// New builds the fetcher described by cfg: a scheme router over HTTP(S) and,
// when enabled, S3, wrapped in the "origin" resilience policy.
func New(cfg config.FetchConfig, logger *slog.Logger, observers ...CircuitObserver) (Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	httpFetcher := NewHTTPFetcher(cfg, logger)
	routes := map[string]Fetcher{
		"http":  httpFetcher,
		"https": httpFetcher,
	}

	if cfg.S3.Enabled {
		s3, err := NewS3Fetcher(cfg.S3, cfg.MaxBytes, logger)
		if err != nil {
			return nil, fmt.Errorf("s3 fetcher: %w", err)
		}
		routes["s3"] = s3
	}

	var f Fetcher = NewRouter(routes, cfg.AllowedSchemes)

	if cfg.Resilience.CircuitBreaker.Enabled || cfg.Resilience.Retry.Enabled || cfg.Resilience.Bulkhead.Enabled {
		policy := resilience.NewPolicy("origin", cfg.Resilience)
		policy.OnRetry(func(attempt int, err error) {
			logger.Debug("Retrying source fetch", "component", "fetch", "attempt", attempt, "error", err)
		})
		policy.OnCircuitChange(func(from, to resilience.State) {
			logger.Warn("Origin circuit breaker state changed", "component", "fetch", "from", from.String(), "to", to.String())
			for _, observe := range observers {
				observe(from.String(), to.String())
			}
		})
		f = NewResilient(f, policy)
	}

	return f, nil
}

// readLimited reads r fully, failing with ErrTooLarge past limit bytes. A limit <= 0 disables the check.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
