// Package transport provides decorators for the HTTP client the Keycloak
// client sends requests through.
//
// Both decorators wrap a [Doer] and return one, so they compose:
//
//	doer := transport.WithRateLimit(
//	    transport.WithRetry(&http.Client{Timeout: 10 * time.Second}, transport.DefaultRetryConfig()),
//	    rate.Limit(50), 10,
//	)
//	client, err := keycloak.New(cfg, keycloak.WithHTTPClient(doer))
package transport

import (
	"net/http"
)

// Doer sends HTTP requests. [*http.Client] satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to [Doer].
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}
