package types

import (
	"errors"
	"fmt"
)

// Cache errors.
var (
	ErrCacheMiss        = errors.New("cache: key not found")
	ErrRedisUnavailable = errors.New("cache: redis unavailable")
	ErrClosed           = errors.New("cache: manager closed")
	ErrWriteQueueFull   = errors.New("cache: write queue full")
	ErrInvalidKey       = errors.New("cache: invalid key")
)

// Resilience errors.
var (
	ErrCircuitOpen     = errors.New("cache: circuit breaker open")
	ErrBulkheadFull    = errors.New("resilience: bulkhead at capacity")
	ErrBulkheadTimeout = errors.New("resilience: bulkhead timeout")
)

var ErrShutdownTimeout = errors.New("shutdown timeout waiting for background operations")

// CacheError records which layer failed which operation on which key.
type CacheError struct {
	Err   error
	Op    string
	Key   string
	Layer string
}

func NewCacheError(op, key, layer string, err error) *CacheError {
	return &CacheError{Op: op, Key: key, Layer: layer, Err: err}
}

func (e *CacheError) Error() string {
	where := e.Layer
	if e.Key != "" {
		where += " [" + e.Key + "]"
	}
	return fmt.Sprintf("cache %s on %s: %v", e.Op, where, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

func IsCacheMiss(err error) bool { return errors.Is(err, ErrCacheMiss) }

func IsRedisUnavailable(err error) bool { return errors.Is(err, ErrRedisUnavailable) }

func IsCircuitOpen(err error) bool { return errors.Is(err, ErrCircuitOpen) }

// final lists answers another attempt cannot change.
var final = []error{ErrCacheMiss, ErrCircuitOpen, ErrClosed, ErrInvalidKey}

// IsRetryable reports whether err is worth another attempt. Errors with a
// Retryable method, such as origin status errors, decide for themselves.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range final {
		if errors.Is(err, target) {
			return false
		}
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return true
}
