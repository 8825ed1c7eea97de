package types

import (
	"net/http"
	"slices"
	"time"
)

// CachedResponse is a fully built HTTP response as stored in and served from the cache.
type CachedResponse struct {
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
	Status   int         `json:"status"`
}

// Clone returns a deep copy so the copy handed to a background writer never
// aliases the buffer that is being streamed to the client.
func (r *CachedResponse) Clone() *CachedResponse {
	if r == nil {
		return nil
	}
	return &CachedResponse{
		Status:   r.Status,
		Header:   r.Header.Clone(),
		Body:     slices.Clone(r.Body),
		StoredAt: r.StoredAt,
	}
}

// ContentType returns the Content-Type header value.
func (r *CachedResponse) ContentType() string {
	return r.Header.Get("Content-Type")
}
