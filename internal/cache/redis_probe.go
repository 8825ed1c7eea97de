package cache

import (
	"context"
	"time"
)

// probe pings Redis on an interval and flips the layer's availability.
type probe struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func startProbe(c *RedisCache, every, timeout time.Duration) *probe {
	ctx, cancel := context.WithCancel(context.Background())
	p := &probe{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ping(ctx, c, timeout)
			}
		}
	}()
	return p
}

func ping(ctx context.Context, c *RedisCache, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		if c.up.CompareAndSwap(true, false) {
			c.logger.Warn("Redis probe failed", "error", err)
		}
		return
	}
	if c.up.CompareAndSwap(false, true) {
		c.failures.Store(0)
		c.logger.Info("Redis available again")
	}
}

// stop is safe on a nil probe.
func (p *probe) stop() {
	if p == nil {
		return
	}
	p.cancel()
	<-p.done
}
