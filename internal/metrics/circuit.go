package metrics

import "github.com/LavishGent/imgedge/internal/types"

// CircuitReporter returns a callback that counts breaker transitions for
// dependency. A breaker opening is also sent as a warning event.
func CircuitReporter(p types.Publisher, dependency string) func(from, to string) {
	dep := DependencyTag(dependency)
	return func(from, to string) {
		p.Incr(CircuitChange, dep, CircuitStateTag(to))
		if to == "open" {
			p.Event(dependency+" circuit open", dependency+" circuit breaker moved from "+from+" to open", "warning", dep)
		}
	}
}
