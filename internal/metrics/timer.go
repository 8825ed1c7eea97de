package metrics

import (
	"slices"
	"time"

	"github.com/LavishGent/imgedge/internal/types"
)

// Timer measures one pipeline stage. Stop reports it as a timing; a nil
// publisher makes Stop a plain stopwatch.
type Timer struct {
	began time.Time
	to    types.Publisher
	name  string
	base  []string
}

func NewTimer(to types.Publisher, name string, tags ...string) *Timer {
	return &Timer{began: time.Now(), to: to, name: name, base: tags}
}

// Stop reports the elapsed time tagged with the start tags plus outcome.
// It may be called more than once; each call reports.
func (t *Timer) Stop(outcome ...string) time.Duration {
	d := t.Elapsed()
	if t.to != nil {
		t.to.Timing(t.name, d, slices.Concat(t.base, outcome)...)
	}
	return d
}

func (t *Timer) Elapsed() time.Duration { return time.Since(t.began) }
