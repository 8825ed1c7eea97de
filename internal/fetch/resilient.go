package fetch

import (
	"context"

	"github.com/LavishGent/imgedge/internal/resilience"
)

// Resilient runs every fetch through a resilience policy.
type Resilient struct {
	next   Fetcher
	policy resilience.Executor
}

func NewResilient(next Fetcher, policy resilience.Executor) *Resilient {
	return &Resilient{next: next, policy: policy}
}

func (r *Resilient) Fetch(ctx context.Context, url string) ([]byte, error) {
	return resilience.Call(ctx, r.policy, func(ctx context.Context) ([]byte, error) {
		return r.next.Fetch(ctx, url)
	})
}
