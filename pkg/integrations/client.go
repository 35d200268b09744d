package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/shelfmark/pkg/buildinfo"
	apperrors "github.com/matzehuels/shelfmark/pkg/errors"
	"github.com/matzehuels/shelfmark/pkg/httputil"
	"github.com/matzehuels/shelfmark/pkg/observability"
)

// Client provides shared HTTP functionality for the upstream API clients.
// It handles status classification, retry logic, and common request headers.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	http     *http.Client
	headers  map[string]string
	attempts int
	backoff  time.Duration
}

// NewClient creates a Client with the given HTTP client and default headers.
// Headers are applied to all requests made through this client.
// A nil httpClient uses [NewHTTPClient]; pass nil headers if none are needed.
func NewClient(httpClient *http.Client, headers map[string]string) *Client {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return &Client{
		http:     httpClient,
		headers:  headers,
		attempts: httputil.DefaultAttempts,
		backoff:  httputil.DefaultBackoff,
	}
}

// WithRetry overrides the retry policy (attempts and initial backoff).
// Non-positive values keep the current setting. It returns c for chaining.
func (c *Client) WithRetry(attempts int, backoff time.Duration) *Client {
	if attempts > 0 {
		c.attempts = attempts
	}
	if backoff > 0 {
		c.backoff = backoff
	}
	return c
}

func (c *Client) retry(ctx context.Context, fn func() error) error {
	return httputil.Retry(ctx, c.attempts, c.backoff, fn)
}

// Request describes a single call made through [Client.Do].
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte // re-sent on every retry attempt
}

// Get performs an HTTP GET request and JSON-decodes the response into v.
// Transient failures are retried per the client's retry policy.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.GetWithHeaders(ctx, url, nil, v)
}

// GetWithHeaders performs an HTTP GET with additional headers merged with defaults.
// Request-specific headers override client defaults for the same key.
func (c *Client) GetWithHeaders(ctx context.Context, url string, headers map[string]string, v any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url, Headers: headers}, v)
}

// GetBytes performs an HTTP GET and returns the raw response body.
func (c *Client) GetBytes(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	var data []byte
	err := c.retry(ctx, func() error {
		body, err := c.doRequest(ctx, Request{Method: http.MethodGet, URL: url, Headers: headers})
		if err != nil {
			return err
		}
		defer body.Close()
		data, err = io.ReadAll(body)
		if err != nil {
			return httputil.Retryable(fmt.Errorf("%w: read body: %v", ErrNetwork, err))
		}
		return nil
	})
	return data, err
}

// Head reports whether url answers a HEAD request with a 2xx status.
// A 404 is reported as (false, nil); other failures are returned as errors.
func (c *Client) Head(ctx context.Context, url string, headers map[string]string) (bool, error) {
	err := c.retry(ctx, func() error {
		body, err := c.doRequest(ctx, Request{Method: http.MethodHead, URL: url, Headers: headers})
		if err != nil {
			return err
		}
		return body.Close()
	})
	switch {
	case err == nil:
		return true, nil
	case apperrors.Is(err, apperrors.ErrCodeNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Do sends req and JSON-decodes a non-empty response body into v (which may
// be nil). Transient failures are retried; a body that fails to decode is
// returned as an INVALID_RESPONSE error and never retried.
func (c *Client) Do(ctx context.Context, req Request, v any) error {
	return c.retry(ctx, func() error {
		body, err := c.doRequest(ctx, req)
		if err != nil {
			return err
		}
		defer body.Close()
		if v == nil {
			_, _ = io.Copy(io.Discard, body)
			return nil
		}
		if err := json.NewDecoder(body).Decode(v); err != nil && err != io.EOF {
			return apperrors.Wrap(apperrors.ErrCodeInvalidResponse, err, "decode %s", req.URL)
		}
		return nil
	})
}

func (c *Client) doRequest(ctx context.Context, r Request) (io.ReadCloser, error) {
	var reqBody io.Reader
	if r.Body != nil {
		reqBody = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, reqBody)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInvalidInput, err, "build request")
	}
	req.Header.Set("User-Agent", buildinfo.UserAgent())
	req.Header.Set("Accept", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	hooks := observability.HTTP()
	host, path := req.URL.Host, req.URL.Path
	hooks.OnRequest(ctx, r.Method, host, path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, r.Method, host, path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &httputil.RetryableError{Err: apperrors.Wrap(apperrors.ErrCodeNetwork, fmt.Errorf("%w: %v", ErrNetwork, err), "%s %s", r.Method, r.URL)}
	}
	hooks.OnResponse(ctx, r.Method, host, path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp); err != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(resp *http.Response) error {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return apperrors.Wrap(apperrors.ErrCodeNotFound, ErrNotFound, "%s", resp.Request.URL)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return apperrors.Wrap(apperrors.ErrCodeUnauthorized, ErrUnauthorized, "status %d", code)
	case code == http.StatusConflict:
		return apperrors.Wrap(apperrors.ErrCodeConflict, ErrConflict, "%s", resp.Request.URL)
	case code == http.StatusTooManyRequests:
		return &httputil.RetryableError{
			Err:   apperrors.Wrap(apperrors.ErrCodeRateLimited, fmt.Errorf("%w: status %d", ErrNetwork, code), "%s", resp.Request.URL),
			After: retryAfter(resp.Header.Get("Retry-After")),
		}
	case code >= 500:
		return &httputil.RetryableError{Err: apperrors.Wrap(apperrors.ErrCodeNetwork, fmt.Errorf("%w: status %d", ErrNetwork, code), "%s", resp.Request.URL)}
	default:
		return apperrors.Wrap(apperrors.ErrCodeNetwork, fmt.Errorf("%w: status %d", ErrNetwork, code), "%s", resp.Request.URL)
	}
}
