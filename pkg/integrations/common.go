package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/shelfmark/pkg/httputil"
)

var (
	// ErrNotFound is returned when a resource doesn't exist upstream.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")

	// ErrUnauthorized is returned for 401/403 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict is returned for 409 responses (e.g. creating a resource that exists).
	ErrConflict = errors.New("conflict")
)

// NewHTTPClient creates an HTTP client with the default pooled transport.
// See [httputil.DefaultTransportOptions] for the limits.
func NewHTTPClient() *http.Client {
	return httputil.NewClient(httputil.DefaultTransportOptions())
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }

// PathEscape escapes a single path segment.
func PathEscape(s string) string { return url.PathEscape(s) }

// JoinURL joins base and path segments with exactly one slash between them.
func JoinURL(base string, parts ...string) string {
	s := strings.TrimRight(base, "/")
	for _, p := range parts {
		s += "/" + strings.Trim(p, "/")
	}
	return s
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
