// Package httpclient configures the HTTP clients used for outbound calls.
package httpclient

import (
	"net"
	"net/http"
	"time"
)

const DefaultTimeout = 30 * time.Second

type Option func(*http.Client)

// WithTimeout sets the whole-request timeout. Zero means wait indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(c *http.Client) {
		if d < 0 {
			d = 0
		}
		c.Timeout = d
	}
}

// NewOutbound creates a pooled client for upstream calls such as the
// distance provider or the search API.
func NewOutbound(opts ...Option) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	c := &http.Client{
		Transport: transport,
		Timeout:   DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}
