// Package auth attaches Keycloak service-account tokens to outgoing
// requests.
//
// [RoundTripper] does it for net/http clients, [PerRPCCredentials] and the
// client interceptors for gRPC. All of them obtain tokens from a
// [TokenSource], normally a *keycloak.TokenManager, so tokens are served
// from its cache until they expire there.
//
// Example:
//
//	client := &http.Client{
//	    Transport: auth.NewRoundTripper(kc.Tokens(), "master", nil),
//	}
//	conn, err := grpc.NewClient(target,
//	    grpc.WithTransportCredentials(creds),
//	    grpc.WithPerRPCCredentials(auth.NewPerRPCCredentials(kc.Tokens(), "master")),
//	)
package auth

import (
	"context"
	"strings"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/token"
)

// TokenSource returns an access token for a realm.
type TokenSource interface {
	AccessToken(ctx context.Context, realm string) (*token.BearerToken, error)
}

// HeaderAuthorization is the authorization header, lowercased as gRPC
// metadata keys must be.
const HeaderAuthorization = "authorization"

const bearerPrefix = "Bearer "

// BearerValue returns the authorization header value for tok.
func BearerValue(tok *token.BearerToken) string {
	return bearerPrefix + tok.Raw
}

// ExtractBearerToken returns the token of a "Bearer <token>" header value.
// The scheme is matched case-insensitively. It returns "" when the value is
// not a bearer credential.
func ExtractBearerToken(header string) string {
	if len(header) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

type contextKey int

const realmKey contextKey = iota

// ContextWithRealm overrides, for requests made with ctx, the realm whose
// token is attached.
func ContextWithRealm(ctx context.Context, realm string) context.Context {
	return context.WithValue(ctx, realmKey, realm)
}

// RealmFromContext returns the realm set with [ContextWithRealm].
func RealmFromContext(ctx context.Context) (string, bool) {
	realm, ok := ctx.Value(realmKey).(string)
	return realm, ok && realm != ""
}

func realmFor(ctx context.Context, fallback string) string {
	if realm, ok := RealmFromContext(ctx); ok {
		return realm
	}
	return fallback
}
