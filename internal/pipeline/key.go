package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// KeyPrefix namespaces response keys in the shared cache.
const KeyPrefix = "img:"

// CacheKey derives the cache key for a request. Query parameters are sorted
// and re-encoded, so parameter order does not split the cache while every
// value (url, w, format, quality) still takes part in the key.
func CacheKey(method, path string, query url.Values) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(path)
	if encoded := query.Encode(); encoded != "" {
		b.WriteByte('?')
		b.WriteString(encoded)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return KeyPrefix + hex.EncodeToString(sum[:])
}
