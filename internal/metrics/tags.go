package metrics

import "strconv"

// Metric names emitted by the request pipeline. The publisher adds its namespace.
const (
	RequestCount       = "request.count"
	RequestDuration    = "request.duration"
	CacheLookup        = "cache.lookup"
	CachePopulate      = "cache.populate"
	FetchDuration      = "fetch.duration"
	FetchBytes         = "fetch.bytes"
	TransformDuration  = "transform.duration"
	ResponseBytes      = "response.bytes"
	CircuitChange      = "circuit.state_change"
	CachePopulateBytes = "cache.populate.bytes"
	HTTPRequest        = "http.request.duration"
)

// Tag creates a DataDog tag string in "key:value" format.
func Tag(key, value string) string {
	return key + ":" + value
}

// StatusTag creates a status tag (hit/miss/error).
func StatusTag(status string) string {
	return Tag("status", status)
}

// CircuitStateTag creates a circuit breaker state tag.
func CircuitStateTag(state string) string {
	return Tag("circuit_state", state)
}

// FormatTag creates an output format tag (png/jpeg/webp).
func FormatTag(format string) string {
	return Tag("format", format)
}

// OutcomeTag tags a request with how it ended (hit, miss, bad_request, fetch_error, ...).
func OutcomeTag(outcome string) string {
	return Tag("outcome", outcome)
}

// RouteTag is the matched route pattern, not the raw path.
func RouteTag(route string) string { return Tag("route", route) }

func CodeTag(status int) string { return Tag("code", strconv.Itoa(status)) }

// DependencyTag names the dependency a resilience event belongs to.
func DependencyTag(name string) string {
	return Tag("dependency", name)
}
