package keycloak

import (
	"context"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/cache"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// Realms returns the realms visible to the client.
//
// With a cache configured and RealmListTTL > 0, a cached body is decoded
// and returned without any network call; a cached body that no longer
// decodes is an error, not a miss. On a miss the list is fetched with
// briefRepresentation=true, validated, and its raw body cached for
// RealmListTTL.
//
// Error codes returned:
//   - UPSTREAM_002: realm list answered outside 2xx
//   - DEC_001, VAL_xxx: the body (fresh or cached) is not a valid realm list
//   - plus the errors of [TokenManager.AccessToken]
func (c *Client) Realms(ctx context.Context) (realms []Realm, err error) {
	ctx, span := c.tracer.Start(ctx, "keycloak.Realms")
	defer func() {
		finishSpan(span, err)
		span.End()
	}()

	useCache := c.cache != nil && c.cfg.RealmListTTL > 0
	key := cache.RealmListKey(c.cfg.BaseURL, c.cfg.ClientID)

	if useCache {
		raw, found, err := c.cache.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			span.SetAttributes(attribute.Bool("keycloak.cache_hit", true))
			c.logger.DebugContext(ctx, "keycloak: realm list cache hit")
			realms, err := decodeRealms([]byte(raw))
			if err != nil {
				return nil, sserr.Wrap(err, sserr.GetCode(err), "keycloak: cached realm list is invalid")
			}
			return realms, nil
		}
	}
	span.SetAttributes(attribute.Bool("keycloak.cache_hit", false))
	c.logger.DebugContext(ctx, "keycloak: realm list cache miss")

	body, err := c.admin(ctx, adminCall{
		name:     "realm list",
		method:   http.MethodGet,
		segments: []string{"realms"},
		query:    url.Values{"briefRepresentation": {"true"}},
		code:     sserr.CodeUpstreamStatus,
	})
	if err != nil {
		return nil, err
	}
	if realms, err = decodeRealms(body); err != nil {
		return nil, err
	}

	if useCache {
		if err := c.cache.Set(ctx, key, string(body), c.cfg.RealmListTTL); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.Int("keycloak.realm_count", len(realms)))
	return realms, nil
}
