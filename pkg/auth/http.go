package auth

import (
	"net/http"
)

// RoundTripper sets "Authorization: Bearer <token>" on every request it
// sends. The realm is the one given to [NewRoundTripper] unless the request
// context carries another (see [ContextWithRealm]).
//
// A request whose token cannot be obtained is not sent; RoundTrip returns
// the token error.
type RoundTripper struct {
	source  TokenSource
	realm   string
	wrapped http.RoundTripper
}

// NewRoundTripper wraps transport. If transport is nil,
// [http.DefaultTransport] is used.
func NewRoundTripper(source TokenSource, realm string, transport http.RoundTripper) *RoundTripper {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &RoundTripper{
		source:  source,
		realm:   realm,
		wrapped: transport,
	}
}

// RoundTrip implements [http.RoundTripper]. The original request is not
// modified.
func (t *RoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	tok, err := t.source.AccessToken(r.Context(), realmFor(r.Context(), t.realm))
	if err != nil {
		if r.Body != nil {
			_ = r.Body.Close()
		}
		return nil, err
	}

	clone := r.Clone(r.Context())
	clone.Header.Set("Authorization", BearerValue(tok))
	return t.wrapped.RoundTrip(clone)
}
