package resilience

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/LavishGent/imgedge/internal/types"
)

var (
	ErrCircuitOpen     = types.ErrCircuitOpen
	ErrBulkheadFull    = types.ErrBulkheadFull
	ErrBulkheadTimeout = types.ErrBulkheadTimeout
)

// verdict is what an error says about the dependency that produced it.
type verdict int

const (
	// healthy: the call worked, or the dependency answered definitively
	// (a miss, a 404, a rejected key).
	healthy verdict = iota
	// shed: a local policy refused the call; nothing reached the dependency.
	shed
	// abandoned: the caller went away.
	abandoned
	// broken: the dependency failed and will fail the same way again, such
	// as a DNS lookup for a host that does not exist.
	broken
	// transient: the dependency failed in a way another attempt may fix.
	transient
)

// answered carries its own verdict; fetch errors use it to tell a 404 from
// a 503.
type answered interface {
	Retryable() bool
}

var definitive = []error{types.ErrCacheMiss, types.ErrInvalidKey, types.ErrClosed}

var transportFailures = []error{syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ETIMEDOUT, syscall.EPIPE}

func classify(err error) verdict {
	if err == nil {
		return healthy
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrBulkheadFull) || errors.Is(err, ErrBulkheadTimeout) {
		return shed
	}
	for _, d := range definitive {
		if errors.Is(err, d) {
			return healthy
		}
	}
	if errors.Is(err, context.Canceled) {
		return abandoned
	}
	var a answered
	if errors.As(err, &a) {
		if a.Retryable() {
			return transient
		}
		return healthy
	}
	var ne net.Error
	if errors.As(err, &ne) && !ne.Timeout() && !transportFailure(err) {
		return broken
	}
	return transient
}

// IsRetryable reports whether another attempt could succeed. Unknown errors
// are assumed transient.
func IsRetryable(err error) bool {
	return classify(err) == transient
}

func transportFailure(err error) bool {
	for _, f := range transportFailures {
		if errors.Is(err, f) {
			return true
		}
	}
	return false
}

// countsAsFailure decides whether err moves a breaker towards open.
func countsAsFailure(err error) bool {
	v := classify(err)
	return v == transient || v == broken
}
