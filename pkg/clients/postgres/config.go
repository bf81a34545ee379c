// Package postgres provides a traced pgx connection pool wrapper used by
// the PostgreSQL cache backend. It exposes the statement shapes the cache
// needs (Exec and QueryRow) plus health checks, and classifies failures
// into structured errors.
//
// # Configuration
//
//	cfg := postgres.Config{URI: "postgres://bridge:pw@db:5432/bridge?sslmode=require"}
//	client, err := postgres.NewClient(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// For unit tests, wrap a pgxmock pool with [NewFromPool].
package postgres

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/config"
)

const maxSQLTruncateLen = 100

// Default pool settings.
const (
	DefaultHost              = "localhost"
	DefaultPort              = 5432
	DefaultMaxConns          = int32(5)
	DefaultMinConns          = int32(0)
	DefaultMaxConnLifetime   = time.Hour
	DefaultMaxConnIdleTime   = 15 * time.Minute
	DefaultHealthCheckPeriod = time.Minute
	DefaultConnectTimeout    = 5 * time.Second
	DefaultHealthTimeout     = 5 * time.Second
)

// SSLMode is a libpq sslmode value.
type SSLMode string

// Supported SSL modes.
const (
	SSLModeDisable    SSLMode = "disable"
	SSLModeRequire    SSLMode = "require"
	SSLModeVerifyCA   SSLMode = "verify-ca"
	SSLModeVerifyFull SSLMode = "verify-full"
)

// Valid reports whether m is a supported SSL mode.
func (m SSLMode) Valid() bool {
	switch m {
	case SSLModeDisable, SSLModeRequire, SSLModeVerifyCA, SSLModeVerifyFull:
		return true
	}
	return false
}

// Config holds PostgreSQL connection settings. URI, when set, takes
// precedence over the structured fields.
type Config struct {
	URI      string        `json:"uri,omitempty" yaml:"uri" env:"URI"`
	Host     string        `json:"host,omitempty" yaml:"host" env:"HOST"`
	Port     int           `json:"port,omitempty" yaml:"port" env:"PORT"`
	Database string        `json:"database" yaml:"database" env:"DATABASE"`
	User     string        `json:"user" yaml:"user" env:"USER"`
	Password config.Secret `json:"-" yaml:"password" env:"PASSWORD"`
	SSLMode  SSLMode       `json:"ssl_mode,omitempty" yaml:"ssl_mode" env:"SSLMODE"`

	MaxConns          int32         `json:"max_conns,omitempty" yaml:"max_conns" env:"MAX_CONNS"`
	MinConns          int32         `json:"min_conns,omitempty" yaml:"min_conns" env:"MIN_CONNS"`
	MaxConnLifetime   time.Duration `json:"max_conn_lifetime,omitempty" yaml:"max_conn_lifetime" env:"MAX_CONN_LIFETIME"`
	MaxConnIdleTime   time.Duration `json:"max_conn_idle_time,omitempty" yaml:"max_conn_idle_time" env:"MAX_CONN_IDLE_TIME"`
	HealthCheckPeriod time.Duration `json:"health_check_period,omitempty" yaml:"health_check_period" env:"HEALTH_CHECK_PERIOD"`
	ConnectTimeout    time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

// Validate applies defaults and returns the first invalid setting.
func (c *Config) Validate() error {
	c.applyPoolDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("postgres: config URI is invalid: %w", err)
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return fmt.Errorf("postgres: config URI scheme must be postgres:// or postgresql://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("postgres: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.Database == "" {
		return errors.New("postgres: config database must not be empty")
	}
	if c.User == "" {
		return errors.New("postgres: config user must not be empty")
	}
	if c.SSLMode == "" {
		c.SSLMode = SSLModeRequire
	}
	if !c.SSLMode.Valid() {
		return fmt.Errorf("postgres: config ssl_mode %q is not valid", c.SSLMode)
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("postgres: config max_conns (%d) must be >= min_conns (%d)", c.MaxConns, c.MinConns)
	}
	return nil
}

func (c *Config) applyPoolDefaults() {
	if c.MaxConns == 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = DefaultMaxConnLifetime
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = DefaultMaxConnIdleTime
	}
	if c.HealthCheckPeriod == 0 {
		c.HealthCheckPeriod = DefaultHealthCheckPeriod
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
}

// ConnectionString returns URI when set, otherwise a postgres:// URL built
// from the structured fields.
func (c *Config) ConnectionString() string {
	if c.URI != "" {
		return c.URI
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password.Value()),
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Database,
	}
	q := u.Query()
	if c.SSLMode != "" {
		q.Set("sslmode", string(c.SSLMode))
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func truncateSQL(sql string) string {
	runes := []rune(sql)
	if len(runes) <= maxSQLTruncateLen {
		return sql
	}
	return string(runes[:maxSQLTruncateLen]) + "..."
}
