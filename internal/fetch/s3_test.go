package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LavishGent/imgedge/internal/config"
)

const noSuchKeyXML = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message><Key>missing.png</Key><BucketName>images</BucketName></Error>`

// fakeObjectStore answers path-style GETs for a single object.
func fakeObjectStore(t *testing.T, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/images/cat.png" {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(noSuchKeyXML))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Header().Set("ETag", `"0123456789abcdef"`)
		w.Header().Set("Last-Modified", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Format(http.TimeFormat))
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestS3Fetcher(t *testing.T, srv *httptest.Server, maxBytes int64) *S3Fetcher {
	t.Helper()
	f, err := NewS3Fetcher(config.S3Config{
		Enabled:   true,
		Endpoint:  srv.Listener.Addr().String(),
		AccessKey: "test",
		SecretKey: config.NewSecretString("test-secret"),
		Region:    "us-east-1",
	}, maxBytes, nil)
	require.NoError(t, err)
	return f
}

func TestS3Fetcher(t *testing.T) {
	srv := fakeObjectStore(t, []byte("png-bytes"))
	f := newTestS3Fetcher(t, srv, 1024)
	ctx := context.Background()

	t.Run("object", func(t *testing.T) {
		data, err := f.Fetch(ctx, "s3://images/cat.png")
		require.NoError(t, err)
		assert.Equal(t, "png-bytes", string(data))
	})

	t.Run("missing object", func(t *testing.T) {
		_, err := f.Fetch(ctx, "s3://images/missing.png")
		var fe *Error
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, http.StatusNotFound, fe.StatusCode)
		assert.False(t, fe.Retryable())
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := f.Fetch(ctx, "s3://images")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})
}

func TestS3FetcherSizeLimit(t *testing.T) {
	srv := fakeObjectStore(t, make([]byte, 64))
	f := newTestS3Fetcher(t, srv, 16)

	_, err := f.Fetch(context.Background(), "s3://images/cat.png")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://media/thumbs/a/b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "media", bucket)
	assert.Equal(t, "thumbs/a/b.jpg", key)

	_, _, err = parseS3URL("https://media/a.jpg")
	assert.ErrorIs(t, err, ErrInvalidURL)
}
