// Package background runs fire-and-forget work that must outlive the request
// that started it, and drains that work on shutdown.
package background

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/imgedge/internal/types"
)

// DefaultTaskTimeout bounds a single task when no timeout is configured.
const DefaultTaskTimeout = 5 * time.Second

// Runner starts tracked goroutines on a context detached from any caller.
// Each task gets its own timeout; Close stops intake and waits for in-flight tasks.
type Runner struct {
	logger      *slog.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	taskTimeout time.Duration
	maxInFlight int64

	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  atomic.Bool
	pending atomic.Int64
	started atomic.Int64
	dropped atomic.Int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithMaxInFlight caps concurrently running tasks. Tasks over the cap are dropped.
func WithMaxInFlight(n int) Option {
	return func(r *Runner) {
		r.maxInFlight = int64(n)
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner whose tasks each get taskTimeout to finish.
func NewRunner(taskTimeout time.Duration, opts ...Option) *Runner {
	if taskTimeout <= 0 {
		taskTimeout = DefaultTaskTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		logger:      slog.Default(),
		ctx:         ctx,
		cancel:      cancel,
		taskTimeout: taskTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "background")
	return r
}

// Go schedules fn. It never blocks; when the runner is closed or saturated the
// task is dropped.
func (r *Runner) Go(fn func(ctx context.Context)) {
	r.TryGo(fn)
}

// TryGo schedules fn and reports whether it was accepted.
func (r *Runner) TryGo(fn func(ctx context.Context)) bool {
	// Holding mu while checking closed keeps wg.Add from racing with Close's Wait.
	r.mu.Lock()
	if r.closed.Load() {
		r.mu.Unlock()
		r.dropped.Add(1)
		r.logger.Debug("Runner closed, dropping task")
		return false
	}
	if r.maxInFlight > 0 && r.pending.Load() >= r.maxInFlight {
		r.mu.Unlock()
		r.dropped.Add(1)
		r.logger.Debug("Runner saturated, dropping task", "in_flight", r.maxInFlight)
		return false
	}
	r.wg.Add(1)
	r.pending.Add(1)
	r.mu.Unlock()

	r.started.Add(1)
	go r.run(fn)
	return true
}

func (r *Runner) run(fn func(ctx context.Context)) {
	defer r.wg.Done()
	defer r.pending.Add(-1)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Recovered from panic in background task", "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(r.ctx, r.taskTimeout)
	defer cancel()
	fn(ctx)
}

// Wait blocks until every accepted task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Pending returns the number of tasks still running.
func (r *Runner) Pending() int64 {
	return r.pending.Load()
}

// Stats returns how many tasks were started and dropped.
func (r *Runner) Stats() (started, dropped int64) {
	return r.started.Load(), r.dropped.Load()
}

// Close stops accepting tasks and waits up to timeout for in-flight ones.
// Tasks still running at the deadline have their context cancelled and
// ErrShutdownTimeout is returned. Calling Close again is a no-op.
func (r *Runner) Close(timeout time.Duration) error {
	r.mu.Lock()
	if r.closed.Swap(true) {
		r.mu.Unlock()
		return nil
	}
	r.mu.Unlock()

	r.logger.Info("Waiting for background tasks", "pending", r.pending.Load(), "timeout", timeout)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-timer.C:
		r.logger.Warn("Background tasks did not finish in time, cancelling", "pending", r.pending.Load())
		r.cancel()
		<-done
		return types.ErrShutdownTimeout
	}
}

var _ types.BackgroundRunner = (*Runner)(nil)
