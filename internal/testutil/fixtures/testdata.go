// Package fixtures provides shared test data for the bridge test suite:
// provider coordinates, a default Keycloak access-token payload, and
// helpers that sign tokens and build token endpoint responses.
package fixtures

import (
	"encoding/json"
	"maps"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// Provider coordinates used across keycloak and bridge tests.
const (
	BaseURL      = "http://localhost:8080"
	Realm        = "master"
	ClientID     = "backend"
	ClientSecret = "backend-secret"
)

// Default access-token claim values, matching a client-credentials token
// issued by a local Keycloak for the "backend" client.
const (
	TokenID           = "f9b4b801-bb78-4167-be60-b42d453332e7"
	Subject           = "92a372d5-c338-4e77-a1b3-08771241036e"
	Issuer            = "http://localhost:8080/realms/master"
	PreferredUsername = "user@example.com"
	ClientHost        = "127.0.0.1"
	Scope             = "email profile"
	KeyID             = "kid"
)

// User values for provisioning tests.
const (
	UserID    = "4f1b3c2a-9d8e-4a7b-8c6d-5e4f3a2b1c0d"
	UserEmail = "jane.doe@example.com"
	Username  = "jane.doe"
)

// signingKey signs fixture tokens. Decoding never verifies signatures.
var signingKey = []byte("fixture-signing-key")

// IssuedAt is the iat of every fixture token.
var IssuedAt = time.Unix(1735689600, 0)

// Claims returns a fresh copy of the default access-token payload.
func Claims() jwt.MapClaims {
	return jwt.MapClaims{
		"exp":                IssuedAt.Add(5 * time.Minute).Unix(),
		"iat":                IssuedAt.Unix(),
		"jti":                TokenID,
		"iss":                Issuer,
		"aud":                []string{"account"},
		"sub":                Subject,
		"typ":                "Bearer",
		"azp":                ClientID,
		"acr":                "1",
		"realm_access":       map[string]any{"roles": []string{"default-roles-master", "offline_access", "uma_authorization"}},
		"resource_access":    map[string]any{"account": map[string]any{"roles": []string{"manage-account", "view-profile"}}},
		"scope":              Scope,
		"email_verified":     false,
		"clientHost":         ClientHost,
		"preferred_username": PreferredUsername,
		"clientAddress":      ClientHost,
		"client_id":          ClientID,
	}
}

// TokenOption mutates the header or claims of a fixture token before it is
// signed.
type TokenOption func(header map[string]any, claims jwt.MapClaims)

// WithClaim overrides one claim.
func WithClaim(name string, value any) TokenOption {
	return func(_ map[string]any, claims jwt.MapClaims) {
		claims[name] = value
	}
}

// WithoutClaim removes one claim.
func WithoutClaim(name string) TokenOption {
	return func(_ map[string]any, claims jwt.MapClaims) {
		delete(claims, name)
	}
}

// WithHeader overrides one header parameter.
func WithHeader(name string, value any) TokenOption {
	return func(header map[string]any, _ jwt.MapClaims) {
		header[name] = value
	}
}

// WithoutHeader removes one header parameter.
func WithoutHeader(name string) TokenOption {
	return func(header map[string]any, _ jwt.MapClaims) {
		delete(header, name)
	}
}

// Token signs the default payload with HS256 after applying opts and
// returns the compact serialization.
func Token(t testing.TB, opts ...TokenOption) string {
	t.Helper()
	claims := Claims()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = KeyID
	for _, opt := range opts {
		opt(tok.Header, claims)
	}
	raw, err := tok.SignedString(signingKey)
	require.NoError(t, err, "failed to sign fixture token")
	return raw
}

// TokenResponse returns a client-credentials token endpoint body for raw
// with the given expires_in. extra entries override or add fields.
func TokenResponse(t testing.TB, raw string, expiresIn int, extra map[string]any) string {
	t.Helper()
	body := map[string]any{
		"access_token":       raw,
		"expires_in":         expiresIn,
		"refresh_expires_in": 0,
		"token_type":         "Bearer",
		"not-before-policy":  0,
		"scope":              Scope,
	}
	maps.Copy(body, extra)
	out, err := json.Marshal(body)
	require.NoError(t, err)
	return string(out)
}

// UserJSON returns a provider user representation as a JSON object.
func UserJSON(t testing.TB, extra map[string]any) map[string]any {
	t.Helper()
	user := map[string]any{
		"id":               UserID,
		"username":         Username,
		"firstName":        "Jane",
		"lastName":         "Doe",
		"email":            UserEmail,
		"emailVerified":    true,
		"createdTimestamp": IssuedAt.UnixMilli(),
		"enabled":          true,
		"totp":             false,
		"notBefore":        0,
		"access": map[string]any{
			"manageGroupMembership": true,
			"view":                  true,
			"mapRoles":              true,
			"impersonate":           false,
			"manage":                true,
		},
	}
	maps.Copy(user, extra)
	return user
}
