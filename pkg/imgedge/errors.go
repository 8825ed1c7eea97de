package imgedge

import (
	"github.com/LavishGent/imgedge/internal/fetch"
	"github.com/LavishGent/imgedge/internal/format"
	"github.com/LavishGent/imgedge/internal/types"
)

// Error types callers can match with errors.As.
type (
	CacheError             = types.CacheError
	FetchError             = fetch.Error
	UnsupportedFormatError = format.UnsupportedFormatError
	InvalidQualityError    = format.InvalidQualityError
)

// Cache and resilience sentinels, for errors.Is.
var (
	ErrCacheMiss        = types.ErrCacheMiss
	ErrRedisUnavailable = types.ErrRedisUnavailable
	ErrCircuitOpen      = types.ErrCircuitOpen
	ErrClosed           = types.ErrClosed
	ErrWriteQueueFull   = types.ErrWriteQueueFull
	ErrBulkheadFull     = types.ErrBulkheadFull
	ErrBulkheadTimeout  = types.ErrBulkheadTimeout
	ErrInvalidKey       = types.ErrInvalidKey
	// ErrShutdownTimeout is returned by Close when cache populates were
	// still running at the deadline.
	ErrShutdownTimeout = types.ErrShutdownTimeout
)

// Request sentinels. Each matches its typed error above.
var (
	ErrUnsupportedFormat = format.ErrUnsupportedFormat
	ErrInvalidQuality    = format.ErrInvalidQuality
	// ErrSourceTooLarge means the source exceeded fetch.maxBytes.
	ErrSourceTooLarge = fetch.ErrTooLarge
)

func IsCacheMiss(err error) bool { return types.IsCacheMiss(err) }

func IsRedisUnavailable(err error) bool { return types.IsRedisUnavailable(err) }

func IsCircuitOpen(err error) bool { return types.IsCircuitOpen(err) }

// IsRetryable reports whether the failed call may succeed if repeated.
func IsRetryable(err error) bool { return types.IsRetryable(err) }
