package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// PerRPCCredentials implements [credentials.PerRPCCredentials] with tokens
// from a [TokenSource]. Use it with grpc.WithPerRPCCredentials.
type PerRPCCredentials struct {
	source   TokenSource
	realm    string
	insecure bool
}

var _ credentials.PerRPCCredentials = (*PerRPCCredentials)(nil)

// NewPerRPCCredentials returns credentials that require transport
// security.
func NewPerRPCCredentials(source TokenSource, realm string) *PerRPCCredentials {
	return &PerRPCCredentials{source: source, realm: realm}
}

// AllowInsecure lets the credentials be sent over plaintext connections.
// Only for local development and tests.
func (c *PerRPCCredentials) AllowInsecure() *PerRPCCredentials {
	cp := *c
	cp.insecure = true
	return &cp
}

// GetRequestMetadata returns the authorization metadata for one call.
func (c *PerRPCCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	tok, err := c.source.AccessToken(ctx, realmFor(ctx, c.realm))
	if err != nil {
		return nil, grpcStatus(err)
	}
	return map[string]string{HeaderAuthorization: BearerValue(tok)}, nil
}

// RequireTransportSecurity reports whether TLS is required.
func (c *PerRPCCredentials) RequireTransportSecurity() bool {
	return !c.insecure
}

// UnaryClientInterceptor returns an interceptor that adds authorization
// metadata to every unary call, merged with any existing outgoing metadata.
// It is an alternative to [PerRPCCredentials] for connections where the
// credentials cannot be set at dial time.
func UnaryClientInterceptor(source TokenSource, realm string) grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx, err := withAuthorization(ctx, source, realm)
		if err != nil {
			return err
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor is the streaming counterpart of
// [UnaryClientInterceptor].
func StreamClientInterceptor(source TokenSource, realm string) grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx, err := withAuthorization(ctx, source, realm)
		if err != nil {
			return nil, err
		}
		return streamer(ctx, desc, cc, method, opts...)
	}
}

func withAuthorization(ctx context.Context, source TokenSource, realm string) (context.Context, error) {
	tok, err := source.AccessToken(ctx, realmFor(ctx, realm))
	if err != nil {
		return ctx, grpcStatus(err)
	}
	md := metadata.Pairs(HeaderAuthorization, BearerValue(tok))
	if existing, ok := metadata.FromOutgoingContext(ctx); ok {
		// The fresh token replaces any authorization already present.
		existing = existing.Copy()
		existing.Delete(HeaderAuthorization)
		md = metadata.Join(existing, md)
	}
	return metadata.NewOutgoingContext(ctx, md), nil
}

// grpcStatus maps a token error to a gRPC status: retryable failures
// become Unavailable, everything else Unauthenticated.
func grpcStatus(err error) error {
	code := codes.Unauthenticated
	if sserr.IsRetryable(err) {
		code = codes.Unavailable
	}
	return status.Error(code, "auth: failed to obtain access token: "+err.Error())
}
