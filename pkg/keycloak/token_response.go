package keycloak

import (
	"time"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/token"
)

// TokenTypeBearer is the only token_type the bridge accepts.
const TokenTypeBearer = "Bearer"

// TokenResponse is a validated token endpoint response.
type TokenResponse struct {
	AccessToken      *token.BearerToken
	ExpiresIn        int64
	RefreshExpiresIn int64
	TokenType        string
	NotBeforePolicy  int64
	Scope            string

	// Present for user grants only.
	RefreshToken string
	IDToken      string
	SessionState string
}

// CacheTTL returns how long the access token may be cached: expires_in
// minus margin, but never below one second. It returns 0 when expires_in
// is 0, meaning the token must not be cached.
func (r *TokenResponse) CacheTTL(margin time.Duration) time.Duration {
	if r.ExpiresIn <= 0 {
		return 0
	}
	ttl := time.Duration(r.ExpiresIn)*time.Second - margin
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

// ParseTokenResponse validates a token endpoint body:
//
//	access_token        non-blank string, decodable as a bearer token
//	expires_in          integer >= 0
//	refresh_expires_in  integer >= 0
//	token_type          "Bearer"
//	not-before-policy   integer >= 0
//	scope               string
//
// refresh_token, id_token and session_state are optional strings. A body
// that is not a JSON object fails with [sserr.CodeDecoding]; field
// violations carry a VAL code and the field name.
func ParseTokenResponse(body []byte) (*TokenResponse, error) {
	o, err := decodeObject(body, "token response")
	if err != nil {
		return nil, err
	}

	var r TokenResponse
	raw, err := o.NonBlank("access_token")
	if err != nil {
		return nil, err
	}
	if r.AccessToken, err = token.Decode(raw); err != nil {
		return nil, err
	}
	if r.ExpiresIn, err = o.NonNegative("expires_in"); err != nil {
		return nil, err
	}
	if r.RefreshExpiresIn, err = o.NonNegative("refresh_expires_in"); err != nil {
		return nil, err
	}
	if r.TokenType, err = o.Str("token_type"); err != nil {
		return nil, err
	}
	if r.TokenType != TokenTypeBearer {
		return nil, o.Malformed("token_type", `must be "Bearer"`)
	}
	if r.NotBeforePolicy, err = o.NonNegative("not-before-policy"); err != nil {
		return nil, err
	}
	if r.Scope, err = o.Str("scope"); err != nil {
		return nil, err
	}
	if r.RefreshToken, err = o.OptStr("refresh_token", ""); err != nil {
		return nil, err
	}
	if r.IDToken, err = o.OptStr("id_token", ""); err != nil {
		return nil, err
	}
	if r.SessionState, err = o.OptStr("session_state", ""); err != nil {
		return nil, err
	}
	return &r, nil
}

// tokenRequestFailed builds the error for a non-2xx token endpoint status.
func tokenRequestFailed(status int, body []byte) error {
	return sserr.Upstream(sserr.CodeTokenRequestFailed, status, string(body),
		"keycloak: token request failed")
}
