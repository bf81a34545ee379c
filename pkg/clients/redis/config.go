// Package redis provides a traced go-redis wrapper used by the Redis cache
// backend. It exposes only the commands the bridge needs (GET, SET with
// expiry, DEL, TTL, PING) and classifies failures into structured errors.
//
// # Configuration
//
//	cfg := redis.DefaultConfig()
//	cfg.Password = config.Secret("my-password")
//	client, err := redis.NewClient(ctx, *cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// For tests, wrap a go-redis client pointed at miniredis with
// [NewFromClient].
//
// # OpenTelemetry Tracing
//
// Every command creates a client span carrying db.system,
// db.redis.database_index and db.statement. Statements are truncated to 100
// runes and never include values.
package redis

import (
	"fmt"
	"net/url"
	"time"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/config"
)

const maxStatementTruncateLen = 100

// Default connection settings.
const (
	// DefaultHost is the Redis server used when no URI or host is set.
	DefaultHost = "localhost"

	// DefaultPort is the standard Redis port.
	DefaultPort = 6379

	// DefaultPoolSize is the maximum number of pooled connections.
	DefaultPoolSize = 10

	// DefaultMaxRetries is how many times go-redis retries a command.
	DefaultMaxRetries = 3

	// DefaultDialTimeout bounds connection establishment.
	DefaultDialTimeout = 5 * time.Second

	// DefaultReadTimeout bounds a single read.
	DefaultReadTimeout = 3 * time.Second

	// DefaultWriteTimeout bounds a single write.
	DefaultWriteTimeout = 3 * time.Second

	// DefaultHealthTimeout bounds a health ping when the caller's context
	// has no deadline.
	DefaultHealthTimeout = 5 * time.Second
)

// Config holds the Redis connection configuration. When URI is set it takes
// precedence over Host, Port, DB and Password.
type Config struct {
	// URI is a connection string such as "redis://:pw@host:6379/0" or
	// "rediss://..." for TLS.
	URI string `json:"uri,omitempty" yaml:"uri" env:"URI"`

	Host string `json:"host,omitempty" yaml:"host" env:"HOST"`
	Port int    `json:"port,omitempty" yaml:"port" env:"PORT"`
	DB   int    `json:"db" yaml:"db" env:"DB"`

	Password config.Secret `json:"-" yaml:"password" env:"PASSWORD"`

	PoolSize     int           `json:"pool_size,omitempty" yaml:"pool_size" env:"POOL_SIZE"`
	MaxRetries   int           `json:"max_retries,omitempty" yaml:"max_retries" env:"MAX_RETRIES"`
	DialTimeout  time.Duration `json:"dial_timeout,omitempty" yaml:"dial_timeout" env:"DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty" yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" yaml:"write_timeout" env:"WRITE_TIMEOUT"`

	TLSEnabled bool `json:"tls_enabled,omitempty" yaml:"tls_enabled" env:"TLS_ENABLED"`
}

// DefaultConfig returns a Config pointing at localhost:6379 with default
// pool and timeout settings.
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		PoolSize:     DefaultPoolSize,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate applies defaults to zero-valued fields and returns the first
// invalid setting.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("redis: config URI is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
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
		return fmt.Errorf("redis: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DB < 0 {
		return fmt.Errorf("redis: config db must be >= 0, got %d", c.DB)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("redis: config pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("redis: config timeouts must not be negative")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
}

// truncateStatement truncates s to maxStatementTruncateLen runes, appending
// "..." when shortened.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
