package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/LavishGent/imgedge/internal/config"
)

// Backoff computes exponential delays between attempts.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter spreads each delay by up to 25% either way.
	Jitter bool
}

// Delay returns the wait after the given failed attempt (1-based).
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt-1))
	d = math.Min(d, float64(b.Max))
	if b.Jitter {
		d *= 0.75 + rand.Float64()*0.5
	}
	return time.Duration(d)
}

// Retrier repeats an operation while it fails with a retryable error.
type Retrier struct {
	attempts int
	backoff  Backoff
	onRetry  func(attempt int, err error)

	retries atomic.Int64
	gaveUp  atomic.Int64
}

func NewRetrier(cfg config.RetryConfig) *Retrier {
	return &Retrier{
		attempts: orDefault(cfg.MaxAttempts, 3),
		backoff: Backoff{
			Initial:    orDefault(cfg.InitialBackoff, 100*time.Millisecond),
			Max:        orDefault(cfg.MaxBackoff, 2*time.Second),
			Multiplier: orDefault(cfg.Multiplier, 2.0),
			Jitter:     cfg.Jitter,
		},
	}
}

// OnRetry sets a hook run before each backoff. Set it before first use.
func (r *Retrier) OnRetry(fn func(attempt int, err error)) { r.onRetry = fn }

// Do runs fn up to the configured number of attempts. It stops early on a
// non-retryable error or when ctx is done.
func (r *Retrier) Do(ctx context.Context, fn func(context.Context) error) error {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= r.attempts || !IsRetryable(err) {
			r.gaveUp.Add(1)
			return err
		}

		r.retries.Add(1)
		if r.onRetry != nil {
			r.onRetry(attempt, err)
		}

		wait := time.NewTimer(r.backoff.Delay(attempt))
		select {
		case <-ctx.Done():
			wait.Stop()
			return ctx.Err()
		case <-wait.C:
		}
	}
}

// Stats returns how many retries were made and how many calls ended in error.
func (r *Retrier) Stats() (retries, failures int64) {
	return r.retries.Load(), r.gaveUp.Load()
}
