// Package resilience guards the Redis layer and the origin fetcher with a
// circuit breaker, retries and a concurrency bulkhead.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/LavishGent/imgedge/internal/config"
)

type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultCooldown         = 30 * time.Second
	defaultProbes           = 3
)

// Breaker stops calls to a dependency after FailureThreshold consecutive
// failures. Once the cooldown has passed a limited number of probe calls go
// through; SuccessThreshold successful probes close it again, any failed probe
// reopens it.
type Breaker struct {
	name      string
	failLimit int
	succLimit int
	cooldown  time.Duration
	probes    int
	now       func() time.Time

	mu       sync.Mutex
	state    State
	fails    int
	succs    int
	inflight int
	openedAt time.Time
	onChange func(from, to State)
}

// BreakerStats is a point-in-time view of a Breaker.
type BreakerStats struct {
	State            State
	ConsecutiveFails int
	ConsecutiveSuccs int
	Probes           int
}

func NewBreaker(name string, cfg config.CircuitBreakerConfig) *Breaker {
	return &Breaker{
		name:      name,
		failLimit: orDefault(cfg.FailureThreshold, defaultFailureThreshold),
		succLimit: orDefault(cfg.SuccessThreshold, defaultSuccessThreshold),
		cooldown:  orDefault(cfg.OpenDuration, defaultCooldown),
		probes:    orDefault(cfg.HalfOpenMaxRequests, defaultProbes),
		now:       time.Now,
	}
}

func orDefault[T int | float64 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

func (b *Breaker) Name() string { return b.name }

// Allow admits a call or returns ErrCircuitOpen.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	var notify func()
	admitted := true

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			admitted = false
			break
		}
		notify = b.move(StateHalfOpen)
		b.inflight = 1
	case StateHalfOpen:
		if b.inflight >= b.probes {
			admitted = false
			break
		}
		b.inflight++
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	if !admitted {
		return ErrCircuitOpen
	}
	return nil
}

// Report feeds the outcome of an admitted call back into the breaker.
// Errors that describe the request rather than the dependency count as success.
func (b *Breaker) Report(err error) {
	failed := countsAsFailure(err)

	b.mu.Lock()
	var notify func()
	switch b.state {
	case StateClosed:
		if !failed {
			b.fails = 0
			break
		}
		b.fails++
		if b.fails >= b.failLimit {
			notify = b.move(StateOpen)
		}
	case StateHalfOpen:
		if failed {
			notify = b.move(StateOpen)
			break
		}
		b.succs++
		if b.succs >= b.succLimit {
			notify = b.move(StateClosed)
		}
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// move must be called with mu held. It returns the listener call, if any,
// to be made once mu is released.
func (b *Breaker) move(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	b.succs = 0
	b.inflight = 0
	switch to {
	case StateClosed:
		b.fails = 0
	case StateOpen:
		b.openedAt = b.now()
	}

	fn := b.onChange
	if fn == nil {
		return nil
	}
	return func() { fn(from, to) }
}

// guard wraps fn so it runs only when admitted and reports its outcome.
func (b *Breaker) guard(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := b.Allow(); err != nil {
			return err
		}
		err := fn(ctx)
		b.Report(err)
		return err
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) IsOpen() bool { return b.State() == StateOpen }

// OnChange registers fn for state transitions. It is called synchronously,
// outside the breaker's lock.
func (b *Breaker) OnChange(fn func(from, to State)) {
	b.mu.Lock()
	b.onChange = fn
	b.mu.Unlock()
}

// Reset closes the breaker without notifying the listener.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.state = StateClosed
	b.fails, b.succs, b.inflight = 0, 0, 0
	b.mu.Unlock()
}

func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BreakerStats{
		State:            b.state,
		ConsecutiveFails: b.fails,
		ConsecutiveSuccs: b.succs,
		Probes:           b.inflight,
	}
}
