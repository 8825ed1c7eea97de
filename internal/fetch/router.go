package fetch

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Router picks a Fetcher by URL scheme.
type Router struct {
	routes  map[string]Fetcher
	allowed []string
}

// NewRouter routes by scheme. When allowed is non-empty only those schemes are served.
func NewRouter(routes map[string]Fetcher, allowed []string) *Router {
	normalized := make([]string, 0, len(allowed))
	for _, s := range allowed {
		normalized = append(normalized, strings.ToLower(s))
	}
	return &Router{routes: routes, allowed: normalized}
}

func (r *Router) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("%w: %w", ErrInvalidURL, err)}
	}

	scheme := strings.ToLower(u.Scheme)
	if len(r.allowed) > 0 && !slices.Contains(r.allowed, scheme) {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)}
	}

	f, ok := r.routes[scheme]
	if !ok {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)}
	}

	return f.Fetch(ctx, rawURL)
}
