package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// Key prefixes. The suffix is a lowercase hex sha1 digest, so keys are
// fixed-length and never contain client secrets.
const (
	AccessTokenKeyPrefix = "keycloak.access_token."
	RealmListKeyPrefix   = "keycloak.realm_list."
)

// KeyPolicy selects which client identity inputs feed the access token
// cache key.
type KeyPolicy string

const (
	// IncludeSecret hashes baseURL|realm|clientID|clientSecret. Rotating the
	// secret starts a fresh cache entry.
	IncludeSecret KeyPolicy = "include-secret"

	// ExcludeSecret hashes baseURL|realm|clientID. Rotating the secret keeps
	// serving the token obtained with the previous one until it expires.
	ExcludeSecret KeyPolicy = "exclude-secret"
)

// Valid reports whether p is a known policy.
func (p KeyPolicy) Valid() bool {
	return p == IncludeSecret || p == ExcludeSecret
}

// UnmarshalText implements encoding.TextUnmarshaler for configuration
// loading.
func (p *KeyPolicy) UnmarshalText(text []byte) error {
	v := KeyPolicy(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return sserr.Newf(sserr.CodeValidationFormat,
			"cache: unknown key policy %q", string(text)).
			WithDetail(sserr.DetailField, "CacheKeyPolicy")
	}
	*p = v
	return nil
}

// AccessTokenKey returns the cache key for a client-credentials access
// token. An empty policy behaves as [IncludeSecret].
func AccessTokenKey(policy KeyPolicy, baseURL, realm, clientID, clientSecret string) string {
	parts := []string{baseURL, realm, clientID}
	if policy != ExcludeSecret {
		parts = append(parts, clientSecret)
	}
	return AccessTokenKeyPrefix + digest(parts...)
}

// RealmListKey returns the cache key for the realm list visible to
// clientID at baseURL.
func RealmListKey(baseURL, clientID string) string {
	return RealmListKeyPrefix + digest(baseURL, clientID)
}

func digest(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
