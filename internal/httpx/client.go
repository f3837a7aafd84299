// Package httpx builds the pooled HTTP clients shared by the interpreter and
// speech backends.
package httpx

import (
	"net/http"
	"time"
)

const defaultPoolSize = 10

// NewPooledClient returns a client that keeps up to poolSize idle connections
// per host, sized to the backend's expected request concurrency. A
// non-positive poolSize falls back to a small default.
func NewPooledClient(poolSize int, timeout time.Duration) *http.Client {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			MaxConnsPerHost:       poolSize * 2,
			IdleConnTimeout:       2 * time.Minute,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			ForceAttemptHTTP2:     true,
		},
	}
}
