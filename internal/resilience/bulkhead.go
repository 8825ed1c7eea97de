package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/LavishGent/imgedge/internal/config"
)

// Bulkhead caps concurrent calls into a dependency. Callers past the cap
// wait in a bounded queue for up to the acquire timeout.
type Bulkhead struct {
	sem      *semaphore.Weighted
	limit    int
	queueCap int
	wait     time.Duration

	active    atomic.Int32
	queued    atomic.Int32
	rejected  atomic.Int64
	completed atomic.Int64
}

// BulkheadStats is a point-in-time view of a Bulkhead.
type BulkheadStats struct {
	MaxConcurrent int
	MaxQueue      int
	Active        int
	Queued        int
	Available     int
	TotalExecuted int64
	TotalRejected int64
}

func NewBulkhead(cfg config.BulkheadConfig) *Bulkhead {
	limit := orDefault(cfg.MaxConcurrent, 100)
	return &Bulkhead{
		sem:      semaphore.NewWeighted(int64(limit)),
		limit:    limit,
		queueCap: max(cfg.MaxQueue, 0),
		wait:     orDefault(cfg.AcquireTimeout, 100*time.Millisecond),
	}
}

// Do runs fn once a slot is free.
func (b *Bulkhead) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := b.acquire(ctx); err != nil {
		b.rejected.Add(1)
		return err
	}
	b.active.Add(1)
	defer func() {
		b.active.Add(-1)
		b.sem.Release(1)
		b.completed.Add(1)
	}()
	return fn(ctx)
}

func (b *Bulkhead) acquire(ctx context.Context) error {
	if b.sem.TryAcquire(1) {
		return nil
	}
	if int(b.queued.Add(1)) > b.queueCap {
		b.queued.Add(-1)
		return ErrBulkheadFull
	}
	defer b.queued.Add(-1)

	waitCtx, cancel := context.WithTimeout(ctx, b.wait)
	defer cancel()
	err := b.sem.Acquire(waitCtx, 1)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return ErrBulkheadTimeout
	}
	return err
}

func (b *Bulkhead) Stats() BulkheadStats {
	active := int(b.active.Load())
	return BulkheadStats{
		MaxConcurrent: b.limit,
		MaxQueue:      b.queueCap,
		Active:        active,
		Queued:        int(b.queued.Load()),
		Available:     b.limit - active,
		TotalExecuted: b.completed.Load(),
		TotalRejected: b.rejected.Load(),
	}
}
