package cache

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/LavishGent/imgedge/internal/types"
)

var errNotCacheable = errors.New("response is not cacheable")

// ResponseStore keeps fully rendered HTTP responses in the layered cache.
type ResponseStore struct {
	manager *Manager
	ttl     time.Duration
}

// NewResponseStore stores responses through m with the given lifetime.
// A zero ttl falls back to the manager's default.
func NewResponseStore(m *Manager, ttl time.Duration) *ResponseStore {
	return &ResponseStore{manager: m, ttl: ttl}
}

// Get returns the stored response for key, or ErrCacheMiss.
func (s *ResponseStore) Get(ctx context.Context, key string) (*types.CachedResponse, error) {
	var resp types.CachedResponse
	if err := s.manager.Get(ctx, key, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Put stores resp under key. Only complete 200 responses are accepted.
func (s *ResponseStore) Put(ctx context.Context, key string, resp *types.CachedResponse) error {
	if resp == nil || resp.Status != http.StatusOK {
		return types.NewCacheError("Put", key, "response", errNotCacheable)
	}

	var opts []types.Option
	if s.ttl > 0 {
		opts = append(opts, types.WithTTL(s.ttl))
	}
	return s.manager.Set(ctx, key, resp, opts...)
}

// Delete evicts key from every layer.
func (s *ResponseStore) Delete(ctx context.Context, key string) error {
	return s.manager.Delete(ctx, key)
}
