// Package token decodes Keycloak-issued bearer tokens into a typed,
// validated model. Decoding is structural only: the signature segment is
// retained verbatim and never verified, and expiry is not enforced.
//
// # Usage
//
//	tok, err := token.Decode(raw)
//	if err != nil {
//	    // errors.IsMalformedToken(err) is true; the failing claim is in
//	    // the error's "field" detail.
//	}
//	fmt.Println(tok.Payload.PreferredUsername, tok.Payload.ExpiresAt)
//
// [Payload] implements [jwt.Claims] so a separate verification stage built on
// github.com/golang-jwt/jwt/v5 can consume decoded claims directly.
package token

import (
	"encoding/base64"
	"log/slog"
	"net/netip"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// HeaderType is the only accepted value of the "typ" header parameter.
const HeaderType = "JWT"

// Header is the decoded JOSE header.
type Header struct {
	Alg string
	Typ string
	Kid string
}

// Roles is the {"roles": [...]} object used by realm_access and each
// resource_access entry.
type Roles struct {
	Roles []string `json:"roles"`
}

// Has reports whether role is present.
func (r Roles) Has(role string) bool {
	return slices.Contains(r.Roles, role)
}

// Payload is the decoded claim set of a Keycloak access token.
type Payload struct {
	ExpiresAt         time.Time
	IssuedAt          time.Time
	ID                uuid.UUID
	Issuer            string
	Audience          []string
	Subject           uuid.UUID
	Type              string
	AuthorizedParty   string
	AuthContextClass  int
	RealmAccess       Roles
	ResourceAccess    map[string]Roles
	Scope             string
	EmailVerified     bool
	ClientHost        netip.Addr
	PreferredUsername string
	ClientAddress     netip.Addr
	ClientID          string
}

var _ jwt.Claims = Payload{}

// GetExpirationTime implements jwt.Claims.
func (p Payload) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(p.ExpiresAt), nil
}

// GetIssuedAt implements jwt.Claims.
func (p Payload) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(p.IssuedAt), nil
}

// GetNotBefore implements jwt.Claims. Keycloak access tokens carry no nbf.
func (p Payload) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims.
func (p Payload) GetIssuer() (string, error) {
	return p.Issuer, nil
}

// GetSubject implements jwt.Claims.
func (p Payload) GetSubject() (string, error) {
	return p.Subject.String(), nil
}

// GetAudience implements jwt.Claims.
func (p Payload) GetAudience() (jwt.ClaimStrings, error) {
	return jwt.ClaimStrings(p.Audience), nil
}

// ClientRoles returns the roles granted for client in resource_access.
func (p Payload) ClientRoles(client string) []string {
	return p.ResourceAccess[client].Roles
}

// BearerToken is an immutable decoded token.
type BearerToken struct {
	// Raw is the exact string that was decoded.
	Raw       string
	Header    Header
	Payload   Payload
	Signature string

	headerJSON  []byte
	payloadJSON []byte
}

// Segments re-encodes the decoded header and payload JSON with unpadded
// base64url. For any token produced by [Decode] the result equals the
// first two segments of Raw.
func (t *BearerToken) Segments() (header, payload string) {
	return base64.RawURLEncoding.EncodeToString(t.headerJSON),
		base64.RawURLEncoding.EncodeToString(t.payloadJSON)
}

// Expired reports whether the token's exp is at or before now. Nothing in
// this module calls it on the read path; cached tokens are served as long
// as the cache holds them.
func (t *BearerToken) Expired(now time.Time) bool {
	return !now.Before(t.Payload.ExpiresAt)
}

// LogValue implements slog.LogValuer. The raw token is never logged.
func (t *BearerToken) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("kid", t.Header.Kid),
		slog.String("jti", t.Payload.ID.String()),
		slog.String("azp", t.Payload.AuthorizedParty),
		slog.Time("exp", t.Payload.ExpiresAt),
	)
}
