package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LavishGent/imgedge/internal/types"
)

const defaultPublishInterval = 10 * time.Second

// BackgroundPublisher pushes a health batch to a publisher on an interval,
// and once more when it stops.
type BackgroundPublisher struct {
	publisher types.Publisher
	source    func() *types.PublisherHealthMetrics
	logger    *slog.Logger
	interval  time.Duration

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewBackgroundPublisher calls source on every tick. A nil source makes every tick a no-op.
func NewBackgroundPublisher(
	publisher types.Publisher,
	interval time.Duration,
	source func() *types.PublisherHealthMetrics,
	logger *slog.Logger,
) *BackgroundPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultPublishInterval
	}
	return &BackgroundPublisher{
		publisher: publisher,
		source:    source,
		logger:    logger.With("component", "metrics-background"),
		interval:  interval,
	}
}

// Start runs the loop until ctx is cancelled or Stop is called.
func (b *BackgroundPublisher) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		tick := time.NewTicker(b.interval)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				b.PublishNow()
			case <-ctx.Done():
				b.PublishNow()
				return
			}
		}
	}()
	b.logger.Info("Health metrics loop started", "interval", b.interval)
}

// Stop ends the loop and waits for the final publish. Safe to call more than once.
func (b *BackgroundPublisher) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel == nil {
			return
		}
		b.cancel()
		<-b.done
		b.logger.Info("Health metrics loop stopped")
	})
}

// PublishNow publishes one batch immediately. A panicking source is logged, not propagated.
func (b *BackgroundPublisher) PublishNow() {
	if b.source == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Health metrics source panicked", "panic", r)
		}
	}()
	if m := b.source(); m != nil {
		b.publisher.PublishHealthMetrics(m)
	}
}
