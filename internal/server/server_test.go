package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/imgedge/internal/config"
	"github.com/LavishGent/imgedge/internal/logging"
	"github.com/LavishGent/imgedge/internal/metrics"
	"github.com/LavishGent/imgedge/internal/pipeline"
	"github.com/LavishGent/imgedge/internal/types"
)

type stubPipeline struct {
	last *pipeline.Request
	resp *pipeline.Response
}

func (s *stubPipeline) Serve(_ context.Context, req *pipeline.Request) *pipeline.Response {
	s.last = req
	return s.resp
}

type panicPipeline struct{}

func (panicPipeline) Serve(context.Context, *pipeline.Request) *pipeline.Response {
	panic("boom")
}

type stubHealth struct {
	status types.HealthStatus
}

func (s stubHealth) Health(context.Context) *types.HealthMetrics {
	return &types.HealthMetrics{Status: s.status, Timestamp: time.Now()}
}

func newTestRouter(t *testing.T, opts RouterOptions) http.Handler {
	t.Helper()
	opts.Mode = "test"
	opts.Logger = logging.Discard()
	r, err := NewRouter(opts)
	require.NoError(t, err)
	return r
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestRouter_Root(t *testing.T) {
	h := newTestRouter(t, RouterOptions{Pipeline: &stubPipeline{}})

	rec := do(h, http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello Image Resizer!", rec.Body.String())
}

func TestRouter_Version(t *testing.T) {
	h := newTestRouter(t, RouterOptions{Pipeline: &stubPipeline{}, Version: "1.4.0"})

	rec := do(h, http.MethodGet, "/version")

	assert.Equal(t, "1.4.0", rec.Body.String())
}

func TestRouter_Image(t *testing.T) {
	p := &stubPipeline{resp: &pipeline.Response{
		Status: http.StatusOK,
		Header: http.Header{
			"Content-Type":   {"image/png"},
			"Content-Length": {"4"},
			"Accept-Ranges":  {"bytes"},
			"Cache-Control":  {"public, s-maxage=2592000"},
		},
		Body: []byte("\x89PNG"),
	}}
	h := newTestRouter(t, RouterOptions{Pipeline: p})

	rec := do(h, http.MethodGet, "/image?url=http://origin/a.png&w=5")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "\x89PNG", rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "4", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "public, s-maxage=2592000", rec.Header().Get("Cache-Control"))

	require.NotNil(t, p.last)
	assert.Equal(t, http.MethodGet, p.last.Method)
	assert.Equal(t, "/image", p.last.Path)
	assert.Equal(t, "http://origin/a.png", p.last.Query.Get("url"))
	assert.Equal(t, "5", p.last.Query.Get("w"))
}

func TestRouter_ImageIsGetOnly(t *testing.T) {
	p := &stubPipeline{resp: &pipeline.Response{Status: http.StatusOK}}
	h := newTestRouter(t, RouterOptions{Pipeline: p})

	for _, method := range []string{http.MethodHead, http.MethodPost} {
		rec := do(h, method, "/image?url=http://origin/a.png&w=5")
		assert.Equal(t, http.StatusNotFound, rec.Code, method)
	}
	assert.Nil(t, p.last, "pipeline must only see GET requests")
}

type timingPublisher struct {
	metrics.NoOpPublisher
	mu      sync.Mutex
	timings []string
}

func (p *timingPublisher) Timing(name string, _ time.Duration, tags ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timings = append(p.timings, name+"|"+strings.Join(tags, ","))
}

func TestRouter_PublishesRequestTiming(t *testing.T) {
	pub := &timingPublisher{}
	h := newTestRouter(t, RouterOptions{Pipeline: &stubPipeline{resp: &pipeline.Response{Status: http.StatusOK}}, Publisher: pub})

	do(h, http.MethodGet, "/image?url=u&w=1")
	do(h, http.MethodGet, "/missing")

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, []string{
		"http.request.duration|route:/image,code:200",
		"http.request.duration|route:unmatched,code:404",
	}, pub.timings)
}

func TestRouter_ImageError(t *testing.T) {
	p := &stubPipeline{resp: &pipeline.Response{
		Status: http.StatusForbidden,
		Header: http.Header{"Content-Type": {"text/plain; charset=utf-8"}},
		Body:   []byte("'url' parameter is not provided."),
	}}
	h := newTestRouter(t, RouterOptions{Pipeline: p})

	rec := do(h, http.MethodGet, "/image?w=5")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "'url' parameter is not provided.", rec.Body.String())
	assert.Equal(t, "32", rec.Header().Get("Content-Length"))
}

func TestRouter_Healthz(t *testing.T) {
	tests := []struct {
		status types.HealthStatus
		code   int
	}{
		{types.HealthStatusHealthy, http.StatusOK},
		{types.HealthStatusDegraded, http.StatusOK},
		{types.HealthStatusUnhealthy, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			h := newTestRouter(t, RouterOptions{Pipeline: &stubPipeline{}, Health: stubHealth{tt.status}})

			rec := do(h, http.MethodGet, "/healthz")

			assert.Equal(t, tt.code, rec.Code)
			var body struct {
				Status string `json:"status"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status.String(), body.Status)
		})
	}
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	h := newTestRouter(t, RouterOptions{Pipeline: panicPipeline{}})

	rec := do(h, http.MethodGet, "/image?url=x&w=1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_RequiresPipeline(t *testing.T) {
	_, err := NewRouter(RouterOptions{})
	assert.Error(t, err)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	h := newTestRouter(t, RouterOptions{Pipeline: &stubPipeline{}})
	cfg := config.ForTesting().Server
	srv := New(cfg, h, logging.Discard())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-errc)
}
