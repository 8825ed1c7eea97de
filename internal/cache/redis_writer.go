package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LavishGent/imgedge/internal/types"
)

const writeBehindTimeout = 2 * time.Second

type pendingSet struct {
	key   string
	value []byte
	ttl   time.Duration
}

// writeBehind applies fire-and-forget SETs on a single goroutine. The queue is
// bounded; a full queue drops the write rather than blocking the caller.
type writeBehind struct {
	cache   *RedisCache
	queue   chan pendingSet
	done    chan struct{}
	wg      sync.WaitGroup
	inQueue atomic.Int32
	dropped atomic.Int64
}

func newWriteBehind(c *RedisCache, capacity int) *writeBehind {
	w := &writeBehind{
		cache: c,
		queue: make(chan pendingSet, max(capacity, 1)),
		done:  make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *writeBehind) enqueue(key string, value []byte, ttl time.Duration) error {
	// Counted before the send so the loop's decrement can never run first.
	w.inQueue.Add(1)
	select {
	case w.queue <- pendingSet{key: key, value: value, ttl: ttl}:
		return nil
	default:
		w.inQueue.Add(-1)
		n := w.dropped.Add(1)
		w.cache.logger.Warn("Write-behind queue full, dropping SET", "key", key, "dropped_total", n)
		return types.ErrWriteQueueFull
	}
}

func (w *writeBehind) loop() {
	defer w.wg.Done()
	for {
		select {
		case op := <-w.queue:
			w.apply(op)
		case <-w.done:
			for {
				select {
				case op := <-w.queue:
					w.apply(op)
				default:
					return
				}
			}
		}
	}
}

func (w *writeBehind) apply(op pendingSet) {
	defer w.inQueue.Add(-1)

	ctx, cancel := context.WithTimeout(context.Background(), writeBehindTimeout)
	defer cancel()
	if err := w.cache.write(ctx, op.key, op.value, op.ttl); err != nil {
		w.cache.logger.Debug("Write-behind SET failed", "key", op.key, "error", err)
	}
}

// drain applies whatever is still queued and stops the loop.
func (w *writeBehind) drain() {
	close(w.done)
	w.wg.Wait()
}

func (w *writeBehind) pending() int { return int(w.inQueue.Load()) }
