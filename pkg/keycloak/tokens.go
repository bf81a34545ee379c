package keycloak

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/cache"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/token"
)

// TokenManager obtains client-credentials access tokens, reading through
// the configured cache. It is safe for concurrent use.
type TokenManager struct {
	cfg    Config
	api    caller
	cache  cache.Cache
	logger *slog.Logger
	tracer trace.Tracer
}

// NewTokenManager validates cfg and builds a standalone TokenManager. A
// [Client] builds its own; use [Client.Tokens] to share it.
func NewTokenManager(cfg Config, opts ...Option) (*TokenManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(cfg, opts)
	return newTokenManager(cfg, o, o.tracerProvider.Tracer(tracerName)), nil
}

func newTokenManager(cfg Config, o options, tracer trace.Tracer) *TokenManager {
	return &TokenManager{
		cfg:    cfg,
		api:    caller{doer: o.doer, baseURL: cfg.BaseURL},
		cache:  o.cache,
		logger: o.logger,
		tracer: tracer,
	}
}

// AccessToken returns a service-account access token for realm.
//
// With a cache configured, a non-empty cached token is decoded and returned
// without any network call. Otherwise the token endpoint is called with the
// client_credentials grant, the response is validated, and when expires_in
// is positive the raw token is cached for max(1s, expires_in - margin).
//
// Error codes returned:
//   - VAL_002: blank realm
//   - UPSTREAM_001: token endpoint answered outside 2xx
//   - DEC_001, VAL_xxx: token response is not the expected document
//   - TOKEN_001: the access token (fresh or cached) does not decode
//   - INT_002, TIMEOUT_002: cache failure
//   - UNAVAIL_002, TIMEOUT_003: transport failure
func (m *TokenManager) AccessToken(ctx context.Context, realm string) (tok *token.BearerToken, err error) {
	ctx, span := m.tracer.Start(ctx, "keycloak.AccessToken",
		trace.WithAttributes(attribute.String("keycloak.realm", realm)))
	defer func() {
		finishSpan(span, err)
		span.End()
	}()

	if strings.TrimSpace(realm) == "" {
		return nil, sserr.InvalidField(sserr.CodeValidationRequired, "realm", "is required")
	}

	key := cache.AccessTokenKey(m.cfg.CacheKeyPolicy, m.cfg.BaseURL, realm,
		m.cfg.ClientID, m.cfg.ClientSecret.Value())

	if m.cache != nil {
		raw, found, err := m.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found && raw != "" {
			span.SetAttributes(attribute.Bool("keycloak.cache_hit", true))
			m.logger.DebugContext(ctx, "keycloak: token cache hit", "realm", realm)
			return token.Decode(raw)
		}
	}
	span.SetAttributes(attribute.Bool("keycloak.cache_hit", false))
	m.logger.DebugContext(ctx, "keycloak: token cache miss", "realm", realm)

	resp, err := m.fetch(ctx, realm)
	if err != nil {
		return nil, err
	}

	if m.cache != nil {
		ttl := resp.CacheTTL(m.cfg.TokenSafetyMargin)
		if ttl > 0 {
			if err := m.cache.Set(ctx, key, resp.AccessToken.Raw, ttl); err != nil {
				return nil, err
			}
			m.logger.DebugContext(ctx, "keycloak: token cached", "realm", realm, "ttl", ttl)
		}
	}
	return resp.AccessToken, nil
}

func (m *TokenManager) fetch(ctx context.Context, realm string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", string(GrantClientCredentials))
	form.Set("client_id", m.cfg.ClientID)
	form.Set("client_secret", m.cfg.ClientSecret.Value())

	status, body, err := m.api.postForm(ctx, realm, form)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("http.response.status_code", status))
	if status < 200 || status >= 300 {
		m.logger.WarnContext(ctx, "keycloak: token request failed", "realm", realm, "status", status)
		return nil, tokenRequestFailed(status, body)
	}
	return ParseTokenResponse(body)
}
