package httputil

import (
	"net"
	"net/http"
	"time"
)

// TransportOptions bounds the outbound connection pool shared by every
// request a client makes.
type TransportOptions struct {
	MaxConnsPerHost     int           // hard cap on concurrent connections per host
	MaxIdleConnsPerHost int           // keep-alive connections retained per host
	ConnectTimeout      time.Duration // dial + TLS handshake
	Timeout             time.Duration // whole request, including body read
}

// DefaultTransportOptions returns the limits used against the catalog origin:
// at most 20 concurrent connections, 5 kept alive, a 60s connect timeout and
// a 120s overall timeout per request.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		MaxConnsPerHost:     20,
		MaxIdleConnsPerHost: 5,
		ConnectTimeout:      60 * time.Second,
		Timeout:             120 * time.Second,
	}
}

func (o TransportOptions) withDefaults() TransportOptions {
	d := DefaultTransportOptions()
	if o.MaxConnsPerHost <= 0 {
		o.MaxConnsPerHost = d.MaxConnsPerHost
	}
	if o.MaxIdleConnsPerHost <= 0 {
		o.MaxIdleConnsPerHost = d.MaxIdleConnsPerHost
	}
	if o.MaxIdleConnsPerHost > o.MaxConnsPerHost {
		o.MaxIdleConnsPerHost = o.MaxConnsPerHost
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	return o
}

// NewTransport returns an *http.Transport enforcing the connection limits in
// opts. Zero fields fall back to [DefaultTransportOptions].
//
// Requests beyond MaxConnsPerHost block inside the transport until a
// connection frees up, so callers can fan out freely without overwhelming
// the origin.
func NewTransport(opts TransportOptions) *http.Transport {
	opts = opts.withDefaults()
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   opts.ConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,

		MaxConnsPerHost:     opts.MaxConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 4,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		IdleConnTimeout:     90 * time.Second,

		ForceAttemptHTTP2: true,
	}
}

// NewClient wraps [NewTransport] in an *http.Client with the overall
// per-request timeout from opts.
func NewClient(opts TransportOptions) *http.Client {
	opts = opts.withDefaults()
	return &http.Client{
		Transport: NewTransport(opts),
		Timeout:   opts.Timeout,
	}
}
