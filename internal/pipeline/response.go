package pipeline

import (
	"net/http"
	"strconv"
	"time"

	"github.com/LavishGent/imgedge/internal/format"
)

// DefaultCacheControl lets shared caches keep a rendition for 30 days.
const DefaultCacheControl = "public, s-maxage=2592000"

const (
	statusOK            = http.StatusOK
	statusForbidden     = http.StatusForbidden
	statusInternalError = http.StatusInternalServerError

	msgFetchFailed  = "failed to fetch image."
	msgDecodeFailed = "failed to decode image: "
	msgEncodeFailed = "failed to write image: "
)

func imageResponse(body []byte, f format.OutputFormat, cacheControl string, now time.Time) *Response {
	h := make(http.Header, 4)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", f.ContentType())
	h.Set("Content-Length", strconv.Itoa(len(body)))
	h.Set("Cache-Control", cacheControl)
	return &Response{
		Status:   statusOK,
		Header:   h,
		Body:     body,
		StoredAt: now,
	}
}

func errorResponse(status int, msg string) *Response {
	body := []byte(msg)
	h := make(http.Header, 2)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	return &Response{
		Status: status,
		Header: h,
		Body:   body,
	}
}
