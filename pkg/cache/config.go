package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/clients/postgres"
	"github.com/StricklySoft/stricklysoft-keycloak/pkg/clients/redis"
	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

// Backend selects a [Cache] implementation.
type Backend string

// Supported backends.
const (
	BackendNone     Backend = "none"
	BackendMemory   Backend = "memory"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

// Config selects and configures a cache backend. Only the section matching
// Backend is used.
type Config struct {
	Backend               Backend       `json:"backend" yaml:"backend" env:"BACKEND" envDefault:"memory"`
	MemoryCleanupInterval time.Duration `json:"memory_cleanup_interval" yaml:"memory_cleanup_interval" env:"MEMORY_CLEANUP_INTERVAL" envDefault:"1m"`
	PostgresTable         string        `json:"postgres_table" yaml:"postgres_table" env:"POSTGRES_TABLE" envDefault:"keycloak_cache"`
	PostgresPurgeInterval time.Duration `json:"postgres_purge_interval" yaml:"postgres_purge_interval" env:"POSTGRES_PURGE_INTERVAL" envDefault:"10m"`

	Redis    redis.Config    `json:"redis" yaml:"redis" env:"REDIS"`
	Postgres postgres.Config `json:"postgres" yaml:"postgres" env:"POSTGRES"`
}

// Validate checks the backend name and the selected backend's settings.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNone, BackendMemory:
		return nil
	case BackendRedis:
		if err := c.Redis.Validate(); err != nil {
			return sserr.Wrap(err, sserr.CodeInternalConfiguration, "cache: invalid redis configuration")
		}
		return nil
	case BackendPostgres:
		if err := c.Postgres.Validate(); err != nil {
			return sserr.Wrap(err, sserr.CodeInternalConfiguration, "cache: invalid postgres configuration")
		}
		return nil
	default:
		return sserr.InvalidField(sserr.CodeValidationFormat, "Backend",
			fmt.Sprintf("must be one of none, memory, redis, postgres; got %q", c.Backend))
	}
}

// Open builds the configured backend. It returns a nil Cache for
// [BackendNone], which disables caching in the Keycloak client. The
// returned close function releases backend connections and is never nil.
//
// The Postgres backend creates its table if missing and deletes expired
// rows every PostgresPurgeInterval until the close function runs.
func Open(ctx context.Context, cfg Config) (Cache, func() error, error) {
	noop := func() error { return nil }
	if err := cfg.Validate(); err != nil {
		return nil, noop, err
	}

	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(cfg.MemoryCleanupInterval), noop, nil
	case BackendRedis:
		client, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, noop, err
		}
		return NewRedis(client), client.Close, nil
	case BackendPostgres:
		client, err := postgres.NewClient(ctx, cfg.Postgres)
		if err != nil {
			return nil, noop, err
		}
		pg := NewPostgres(client, WithTable(cfg.PostgresTable))
		if err := pg.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, noop, err
		}
		stopPurge := pg.StartPurge(cfg.PostgresPurgeInterval)
		return pg, func() error {
			stopPurge()
			client.Close()
			return nil
		}, nil
	default:
		return nil, noop, nil
	}
}
