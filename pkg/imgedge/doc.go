// Package imgedge is an HTTP edge image resizer.
//
// A Service answers GET /image?url=&w=&format=&quality= by fetching the
// source image, resizing it to width w and re-encoding it as PNG, JPEG or
// WEBP. Rendered responses are kept in a layered cache (in-memory bigcache,
// optionally backed by Redis) and written there in the background after the
// client has its answer.
//
// # Quick Start
//
//	svc, err := imgedge.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	http.ListenAndServe(":8080", svc.Handler())
//
// # Query Parameters
//
//   - url: source image (http, https, or s3 when an object store is configured)
//   - w: output width in pixels; the source height is kept
//   - format: png (default), jpeg, jpg or webp
//   - quality: JPEG quality 0-100; accepted and ignored for lossless WEBP output
//
// # Configuration
//
// Load configuration from a JSON file with IMGEDGE_* environment overrides:
//
//	svc, err := imgedge.NewFromFile("imgedge.json")
//
// Or start from the defaults:
//
//	cfg := imgedge.DefaultConfig()
//	cfg.Redis.Enabled = true
//	cfg.Redis.Address = "localhost:6379"
//	cfg.Defaults.Level = "memory-then-redis"
//	svc, err := imgedge.NewFromConfig(cfg)
//
// # Collaborators
//
// The origin fetcher and the response cache can be replaced:
//
//	svc, err := imgedge.New(
//	    imgedge.WithFetcher(myFetcher),
//	    imgedge.WithCache(myCache),
//	)
//
// # Thread Safety
//
// A Service is safe for concurrent use.
package imgedge
