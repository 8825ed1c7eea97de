package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/LavishGent/imgedge/internal/config"
)

// S3Fetcher reads s3://bucket/key sources from an S3-compatible store.
type S3Fetcher struct {
	client   *minio.Client
	logger   *slog.Logger
	maxBytes int64
}

// NewS3Fetcher creates a minio client for cfg.Endpoint. No request is made until the first Fetch.
func NewS3Fetcher(cfg config.S3Config, maxBytes int64, logger *slog.Logger) (*S3Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey.Value(), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	return &S3Fetcher{
		client:   client,
		logger:   logger.With("component", "s3-fetcher"),
		maxBytes: maxBytes,
	}, nil
}

// Fetch downloads the object named by rawURL. Store error codes map onto
// Error.StatusCode so missing objects are not retried.
func (f *S3Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	obj, err := f.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, f.wrap(rawURL, err)
	}
	defer obj.Close()

	info, err := obj.Stat()
	if err != nil {
		return nil, f.wrap(rawURL, err)
	}
	if f.maxBytes > 0 && info.Size > f.maxBytes {
		return nil, &Error{URL: rawURL, Err: ErrTooLarge}
	}

	data, err := readLimited(obj, f.maxBytes)
	if err != nil {
		return nil, f.wrap(rawURL, err)
	}
	return data, nil
}

func (f *S3Fetcher) wrap(rawURL string, err error) error {
	resp := minio.ToErrorResponse(err)
	f.logger.Debug("Object read failed", "url", rawURL, "code", resp.Code, "error", err)
	return &Error{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
}

func parseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: want s3://bucket/key, got %q", ErrInvalidURL, rawURL)
	}
	return bucket, key, nil
}
