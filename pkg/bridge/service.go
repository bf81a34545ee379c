// Package bridge provisions and authenticates local users in Keycloak.
//
// A [Service] pairs a Keycloak [Provider] with a [Registry] of mappers. The
// mapper chosen for a local user decides the realm and the profile the user
// gets in Keycloak; the service drives the calls.
//
// Creating a user is strictly sequential: create, look the user up by
// email, then (plain passwords only) set the password. A failure at any
// step returns immediately; earlier steps are not undone.
package bridge

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/credential"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/keycloak"
)

const tracerName = "github.com/StricklySoft/stricklysoft-keycloak/pkg/bridge"

// Provider is the part of [keycloak.Client] the service uses.
type Provider interface {
	CreateUser(ctx context.Context, req keycloak.CreateUserRequest) error
	Users(ctx context.Context, req keycloak.SearchUsersRequest) ([]keycloak.User, error)
	ResetPassword(ctx context.Context, req keycloak.ResetPasswordRequest) error
	DeleteUser(ctx context.Context, req keycloak.DeleteUserRequest) error
	UpdateUser(ctx context.Context, req keycloak.UpdateUserRequest) error
	RequestToken(ctx context.Context, req keycloak.TokenRequest) (*keycloak.TokenResponse, error)
	Realms(ctx context.Context) ([]keycloak.Realm, error)
}

var _ Provider = (*keycloak.Client)(nil)

// Option configures a [Service].
type Option func(*options)

type options struct {
	mappers        []Mapper
	strict         bool
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
}

// WithMappers registers mappers in order.
func WithMappers(mappers ...Mapper) Option {
	return func(o *options) { o.mappers = append(o.mappers, mappers...) }
}

// WithStrictMappers makes resolution fail when more than one mapper
// supports a user.
func WithStrictMappers() Option {
	return func(o *options) { o.strict = true }
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracerProvider sets the tracer provider. The default is the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// Service orchestrates user provisioning against Keycloak. It is safe for
// concurrent use.
type Service struct {
	provider Provider
	mappers  *Registry
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService builds a Service.
//
// Error codes returned:
//   - VAL_002: provider is nil
func NewService(provider Provider, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, sserr.InvalidField(sserr.CodeValidationRequired, "provider", "is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	return &Service{
		provider: provider,
		mappers:  newRegistry(o.mappers, o.strict, o.logger),
		logger:   o.logger,
		tracer:   o.tracerProvider.Tracer(tracerName),
	}, nil
}

// Mappers returns the service's registry. Mappers registered on it are
// used by subsequent calls.
func (s *Service) Mappers() *Registry { return s.mappers }

// CreateUser creates user in Keycloak and returns the Keycloak user.
//
// A [credential.Hashed] password is attached to the creation request. A
// [credential.Plain] password is set afterwards through a reset-password
// call, never both.
//
// Error codes returned:
//   - VAL_002: password is nil
//   - CRED_xxx: the hashed password cannot be encoded
//   - MAP_xxx: no (or, in strict mode, more than one) mapper for user
//   - NF_002: the user search after creation did not find exactly one user
//   - plus the errors of the [Provider] calls
func (s *Service) CreateUser(ctx context.Context, user LocalUser, password credential.Password) (_ *keycloak.User, err error) {
	ctx, span := s.start(ctx, "bridge.CreateUser")
	defer func() { end(span, err) }()

	creds, err := credential.Credentials(password)
	if err != nil {
		return nil, err
	}
	mapper, err := s.mappers.Resolve(user)
	if err != nil {
		return nil, err
	}
	profile, err := mapper.CreateUserProfile(user)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("keycloak.realm", profile.Realm),
		attribute.Bool("bridge.hashed_password", len(creds) > 0),
	)

	if err := s.provider.CreateUser(ctx, keycloak.CreateUserRequest{Profile: profile, Credentials: creds}); err != nil {
		return nil, err
	}

	search := keycloak.NewSearchUsersRequest(profile.Realm)
	search.Email = &profile.Email
	search.Exact = true
	found, err := s.provider.Users(ctx, search)
	if err != nil {
		return nil, err
	}
	if len(found) != 1 {
		return nil, sserr.Newf(sserr.CodeNotFoundUser,
			"bridge: expected one user with the new email after creation, found %d", len(found)).
			WithDetails(map[string]any{"email": profile.Email, "realm": profile.Realm, "count": len(found)})
	}
	created := found[0]

	if plain, ok := password.(credential.Plain); ok {
		err := s.provider.ResetPassword(ctx, keycloak.ResetPasswordRequest{
			Realm:     profile.Realm,
			UserID:    created.ID,
			Type:      keycloak.CredentialPassword,
			Value:     string(plain),
			Temporary: false,
		})
		if err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "bridge: user provisioned",
		"realm", profile.Realm, "user_id", created.ID, "local_id", user.ID())
	return &created, nil
}

// DeleteUser deletes the Keycloak user of user. The mapper supplies the
// realm and user id.
func (s *Service) DeleteUser(ctx context.Context, user LocalUser) (err error) {
	ctx, span := s.start(ctx, "bridge.DeleteUser")
	defer func() { end(span, err) }()

	mapper, err := s.mappers.Resolve(user)
	if err != nil {
		return err
	}
	req, err := mapper.DeleteRequest(user)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("keycloak.realm", req.Realm))
	return s.provider.DeleteUser(ctx, req)
}

// UpdateUser sends attributes as a partial representation of a user.
func (s *Service) UpdateUser(ctx context.Context, realm string, userID uuid.UUID, attributes map[string]any) (err error) {
	ctx, span := s.start(ctx, "bridge.UpdateUser")
	defer func() { end(span, err) }()

	span.SetAttributes(attribute.String("keycloak.realm", realm))
	return s.provider.UpdateUser(ctx, keycloak.UpdateUserRequest{
		Realm:      realm,
		UserID:     userID,
		Attributes: attributes,
	})
}

// LoginUser exchanges user's password for tokens with the password grant.
// The mapper supplies the realm and client.
func (s *Service) LoginUser(ctx context.Context, user LocalUser, password string) (_ *keycloak.TokenResponse, err error) {
	ctx, span := s.start(ctx, "bridge.LoginUser")
	defer func() { end(span, err) }()

	mapper, err := s.mappers.Resolve(user)
	if err != nil {
		return nil, err
	}
	req, err := mapper.LoginRequest(user, password)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("keycloak.realm", req.Realm))
	return s.provider.RequestToken(ctx, req)
}

// RefreshToken exchanges req.RefreshToken for new tokens. req.GrantType is
// forced to refresh_token.
func (s *Service) RefreshToken(ctx context.Context, req keycloak.TokenRequest) (_ *keycloak.TokenResponse, err error) {
	ctx, span := s.start(ctx, "bridge.RefreshToken")
	defer func() { end(span, err) }()

	req.GrantType = keycloak.GrantRefreshToken
	span.SetAttributes(attribute.String("keycloak.realm", req.Realm))
	return s.provider.RequestToken(ctx, req)
}

// AvailableRealms lists the realms visible to the provider's client.
func (s *Service) AvailableRealms(ctx context.Context) (_ []keycloak.Realm, err error) {
	ctx, span := s.start(ctx, "bridge.AvailableRealms")
	defer func() { end(span, err) }()

	return s.provider.Realms(ctx)
}

func (s *Service) start(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func end(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
