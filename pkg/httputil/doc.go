// Package httputil provides HTTP utilities shared by the catalog and
// shared-store clients.
//
// # Overview
//
//   - [NewClient]: an *http.Client with a capped connection pool
//   - [Retry]: automatic retry with exponential backoff
//
// # Connection pool
//
// Every dataset fetch fans out many requests at once (one per page, per
// category, per product description). Rather than limiting concurrency at
// each call site, the transport caps connections per host, so excess
// requests queue inside net/http:
//
//	client := httputil.NewClient(httputil.DefaultTransportOptions())
//
// # Retry
//
// [Retry] re-runs an operation when it fails with a [RetryableError]:
//
//   - Network errors
//   - 5xx server errors
//   - 429 rate limit responses (honouring Retry-After)
//
// Client errors (4xx) and decode failures are returned immediately:
//
//	err := httputil.Retry(ctx, httputil.DefaultAttempts, httputil.DefaultBackoff, func() error {
//	    return client.Get(ctx, url, &page)
//	})
//
// # Configuration
//
// Default settings match the origin's tolerance:
//
//   - Max connections per host: 20 (5 idle)
//   - Connect timeout: 60 seconds, request timeout: 120 seconds
//   - Max attempts: 3
//   - Base backoff: 1 second
package httputil
