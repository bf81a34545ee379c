package keycloak

import (
	"net/url"
	"strings"
	"time"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/cache"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/config"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// Default client settings.
const (
	DefaultRealmListTTL      = time.Hour
	DefaultTokenSafetyMargin = 5 * time.Second
	DefaultHTTPTimeout       = 10 * time.Second
)

// Config identifies the confidential client the bridge authenticates as
// and tunes its caching.
//
// Env tags are relative; nest Config under a prefixed field (for example
// `env:"KEYCLOAK"`) to read KEYCLOAK_BASE_URL and friends.
type Config struct {
	// BaseURL is the Keycloak root, e.g. "https://sso.example.com". A
	// trailing slash is ignored.
	BaseURL string `json:"base_url" yaml:"base_url" env:"BASE_URL" required:"true"`

	// AdminBaseURL is the root the realm and user endpoints are resolved
	// against. Empty means BaseURL. Stock Keycloak serves them under
	// "<BaseURL>/admin".
	AdminBaseURL string `json:"admin_base_url" yaml:"admin_base_url" env:"ADMIN_BASE_URL"`

	// Realm is the realm the client itself lives in. Service-account
	// tokens for admin calls are requested from this realm.
	Realm string `json:"realm" yaml:"realm" env:"REALM" required:"true"`

	ClientID     string        `json:"client_id" yaml:"client_id" env:"CLIENT_ID" required:"true"`
	ClientSecret config.Secret `json:"-" yaml:"client_secret" env:"CLIENT_SECRET" required:"true"`

	// RealmListTTL is how long the realm list stays cached. Zero disables
	// realm list caching.
	RealmListTTL time.Duration `json:"realm_list_ttl" yaml:"realm_list_ttl" env:"REALM_LIST_TTL" envDefault:"1h"`

	// TokenSafetyMargin is subtracted from expires_in when caching access
	// tokens so a cached token is never served right at its expiry. The
	// resulting TTL is never below one second.
	TokenSafetyMargin time.Duration `json:"token_safety_margin" yaml:"token_safety_margin" env:"TOKEN_SAFETY_MARGIN" envDefault:"5s"`

	// CacheKeyPolicy selects whether the client secret feeds the access
	// token cache key.
	CacheKeyPolicy cache.KeyPolicy `json:"cache_key_policy" yaml:"cache_key_policy" env:"CACHE_KEY_POLICY" envDefault:"include-secret"`

	// HTTPTimeout bounds each request made by the default HTTP client. It
	// is ignored when a custom Doer is supplied.
	HTTPTimeout time.Duration `json:"http_timeout" yaml:"http_timeout" env:"HTTP_TIMEOUT" envDefault:"10s"`
}

// DefaultConfig returns a Config with every optional setting at its
// default. BaseURL, Realm, ClientID and ClientSecret still need values.
func DefaultConfig() Config {
	return Config{
		RealmListTTL:      DefaultRealmListTTL,
		TokenSafetyMargin: DefaultTokenSafetyMargin,
		CacheKeyPolicy:    cache.IncludeSecret,
		HTTPTimeout:       DefaultHTTPTimeout,
	}
}

// Validate checks c and normalizes BaseURL and AdminBaseURL (trailing
// slashes removed, AdminBaseURL defaulting to BaseURL), an empty
// CacheKeyPolicy (include-secret) and a zero HTTPTimeout (10s).
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return sserr.InvalidField(sserr.CodeValidationRequired, "BaseURL", "is required")
	}
	if !absoluteHTTP(c.BaseURL) {
		return sserr.InvalidField(sserr.CodeValidationFormat, "BaseURL", "must be an absolute http(s) URL")
	}
	c.AdminBaseURL = strings.TrimRight(strings.TrimSpace(c.AdminBaseURL), "/")
	if c.AdminBaseURL == "" {
		c.AdminBaseURL = c.BaseURL
	}
	if !absoluteHTTP(c.AdminBaseURL) {
		return sserr.InvalidField(sserr.CodeValidationFormat, "AdminBaseURL", "must be an absolute http(s) URL")
	}
	if strings.TrimSpace(c.Realm) == "" {
		return sserr.InvalidField(sserr.CodeValidationRequired, "Realm", "is required")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		return sserr.InvalidField(sserr.CodeValidationRequired, "ClientID", "is required")
	}
	if c.ClientSecret.Value() == "" {
		return sserr.InvalidField(sserr.CodeValidationRequired, "ClientSecret", "is required")
	}
	if c.RealmListTTL < 0 {
		return sserr.InvalidField(sserr.CodeValidationRange, "RealmListTTL", "must not be negative")
	}
	if c.TokenSafetyMargin < 0 {
		return sserr.InvalidField(sserr.CodeValidationRange, "TokenSafetyMargin", "must not be negative")
	}
	if c.CacheKeyPolicy == "" {
		c.CacheKeyPolicy = cache.IncludeSecret
	}
	if !c.CacheKeyPolicy.Valid() {
		return sserr.InvalidField(sserr.CodeValidationFormat, "CacheKeyPolicy",
			"must be include-secret or exclude-secret")
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.HTTPTimeout < 0 {
		return sserr.InvalidField(sserr.CodeValidationRange, "HTTPTimeout", "must be positive")
	}
	return nil
}

func absoluteHTTP(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
