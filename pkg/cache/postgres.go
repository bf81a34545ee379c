package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/clients/postgres"
)

// DefaultTable is the table [Postgres] stores entries in.
const DefaultTable = "keycloak_cache"

// DefaultPurgeInterval is how often [Postgres.StartPurge] deletes expired
// rows when no interval is given.
const DefaultPurgeInterval = 10 * time.Minute

// Postgres is a [Cache] stored in a PostgreSQL table:
//
//	key        TEXT PRIMARY KEY
//	value      TEXT NOT NULL
//	expires_at TIMESTAMPTZ NULL   -- NULL never expires
//
// Expired rows are filtered out on read and removed by [Postgres.Purge].
// Nothing purges on its own: run [Postgres.StartPurge] or schedule Purge
// elsewhere. [Open] starts the loop for the configured backend.
type Postgres struct {
	client *postgres.Client
	table  string
	now    func() time.Time
	logger *slog.Logger

	getSQL    string
	setSQL    string
	purgeSQL  string
	schemaSQL string
}

var _ Cache = (*Postgres)(nil)

// PostgresOption configures a [Postgres] cache.
type PostgresOption func(*Postgres)

// WithTable stores entries in table instead of [DefaultTable]. The name is
// quoted as an identifier.
func WithTable(table string) PostgresOption {
	return func(p *Postgres) { p.table = table }
}

// WithClock overrides the clock used to compute expires_at.
func WithClock(now func() time.Time) PostgresOption {
	return func(p *Postgres) { p.now = now }
}

// WithLogger sets the logger for background purge failures. The default is
// slog.Default().
func WithLogger(logger *slog.Logger) PostgresOption {
	return func(p *Postgres) { p.logger = logger }
}

// NewPostgres wraps a connected client. The caller owns the client and
// closes it. Call [Postgres.EnsureSchema] once before first use unless the
// table is managed by migrations.
func NewPostgres(client *postgres.Client, opts ...PostgresOption) *Postgres {
	p := &Postgres{client: client, table: DefaultTable, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	if p.table == "" {
		p.table = DefaultTable
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	t := pgx.Identifier{p.table}.Sanitize()
	p.schemaSQL = `CREATE TABLE IF NOT EXISTS ` + t + ` (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ
)`
	p.getSQL = `SELECT value FROM ` + t + ` WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`
	p.setSQL = `INSERT INTO ` + t + ` (key, value, expires_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`
	p.purgeSQL = `DELETE FROM ` + t + ` WHERE expires_at IS NOT NULL AND expires_at <= $1`
	return p
}

// EnsureSchema creates the cache table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.client.Exec(ctx, p.schemaSQL); err != nil {
		return postgres.WrapError(err, "cache: failed to create table "+p.table)
	}
	return nil
}

// Get implements [Cache].
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.client.QueryRow(ctx, p.getSQL, key, p.now()).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, postgres.WrapError(err, "cache: get failed")
	}
	return value, true, nil
}

// Set implements [Cache].
func (p *Postgres) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expiresAt *time.Time
	if ttl > 0 {
		t := p.now().Add(ttl)
		expiresAt = &t
	}
	if _, err := p.client.Exec(ctx, p.setSQL, key, value, expiresAt); err != nil {
		return postgres.WrapError(err, "cache: set failed")
	}
	return nil
}

// Purge deletes expired rows and returns how many were removed.
func (p *Postgres) Purge(ctx context.Context) (int64, error) {
	tag, err := p.client.Exec(ctx, p.purgeSQL, p.now())
	if err != nil {
		return 0, postgres.WrapError(err, "cache: purge failed")
	}
	return tag.RowsAffected(), nil
}

// StartPurge calls [Postgres.Purge] every interval until the returned stop
// function is called. An interval <= 0 uses [DefaultPurgeInterval]. Failed
// purges are logged and retried on the next tick. stop cancels an in-flight
// purge, waits for the loop to exit and may be called more than once.
func (p *Postgres) StartPurge(interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := p.Purge(ctx)
				if err != nil {
					if ctx.Err() == nil {
						p.logger.Warn("cache: purge failed", "table", p.table, "error", err)
					}
					continue
				}
				if n > 0 {
					p.logger.Debug("cache: purged expired entries", "table", p.table, "count", n)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}
