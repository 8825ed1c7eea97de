package resilience

import (
	"context"

	"github.com/LavishGent/imgedge/internal/config"
)

// Executor runs an operation under a resilience policy.
type Executor interface {
	Do(ctx context.Context, fn func(context.Context) error) error
	CircuitState() State
	OnCircuitChange(fn func(from, to State))
}

// Call runs fn through ex and returns its result.
func Call[T any](ctx context.Context, ex Executor, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := ex.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

// Policy layers a bulkhead, retries and a circuit breaker around one
// dependency. Components disabled in the config are nil and skipped.
//
// The breaker is innermost so every attempt, retries included, is counted.
type Policy struct {
	name     string
	breaker  *Breaker
	retrier  *Retrier
	bulkhead *Bulkhead
}

// NewPolicy builds the policy for the named dependency ("redis", "origin").
func NewPolicy(name string, cfg config.ResilienceConfig) *Policy {
	p := &Policy{name: name}
	if cfg.CircuitBreaker.Enabled {
		p.breaker = NewBreaker(name, cfg.CircuitBreaker)
	}
	if cfg.Retry.Enabled {
		p.retrier = NewRetrier(cfg.Retry)
	}
	if cfg.Bulkhead.Enabled {
		p.bulkhead = NewBulkhead(cfg.Bulkhead)
	}
	return p
}

func (p *Policy) Name() string { return p.name }

func (p *Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	run := fn
	if p.breaker != nil {
		run = p.breaker.guard(run)
	}
	if p.retrier != nil {
		inner := run
		run = func(ctx context.Context) error { return p.retrier.Do(ctx, inner) }
	}
	if p.bulkhead != nil {
		inner := run
		run = func(ctx context.Context) error { return p.bulkhead.Do(ctx, inner) }
	}
	return run(ctx)
}

// OnRetry registers a hook run before each retry backoff.
func (p *Policy) OnRetry(fn func(attempt int, err error)) {
	if p.retrier != nil {
		p.retrier.OnRetry(fn)
	}
}

func (p *Policy) CircuitState() State {
	if p.breaker == nil {
		return StateClosed
	}
	return p.breaker.State()
}

func (p *Policy) IsCircuitOpen() bool { return p.CircuitState() == StateOpen }

func (p *Policy) OnCircuitChange(fn func(from, to State)) {
	if p.breaker != nil {
		p.breaker.OnChange(fn)
	}
}

// BulkheadStats reports zeros when the bulkhead is disabled.
func (p *Policy) BulkheadStats() BulkheadStats {
	if p.bulkhead == nil {
		return BulkheadStats{}
	}
	return p.bulkhead.Stats()
}

type passthrough struct{}

// Passthrough runs every operation once, unguarded.
var Passthrough Executor = passthrough{}

func (passthrough) Do(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) }
func (passthrough) CircuitState() State                                          { return StateClosed }
func (passthrough) OnCircuitChange(func(from, to State))                         {}
