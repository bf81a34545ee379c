package postgres

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

const tracerName = "github.com/StricklySoft/stricklysoft-keycloak/pkg/clients/postgres"

// Pool is the subset of [*pgxpool.Pool] the [Client] wraps. pgxmock pools
// satisfy it in tests.
type Pool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

var _ Pool = (*pgxpool.Pool)(nil)

// Client is a traced PostgreSQL client. It is safe for concurrent use.
type Client struct {
	pool         Pool
	tracer       trace.Tracer
	databaseName string
}

// NewClient validates cfg, creates a pool and verifies connectivity.
//
// Error codes returned:
//   - [sserr.CodeInternalConfiguration]: invalid configuration
//   - [sserr.CodeUnavailableDependency]: cannot reach the database
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration,
			"postgres: invalid configuration")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration,
			"postgres: failed to parse connection string")
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"postgres: failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"postgres: failed to connect to database")
	}

	dbName := cfg.Database
	if cfg.URI != "" {
		if u, parseErr := url.Parse(cfg.URI); parseErr == nil {
			dbName = strings.TrimPrefix(u.Path, "/")
		}
	}

	return &Client{
		pool:         pool,
		tracer:       otel.Tracer(tracerName),
		databaseName: dbName,
	}, nil
}

// NewFromPool wraps an existing [Pool]. databaseName is used for span
// attributes only.
func NewFromPool(pool Pool, databaseName string) *Client {
	return &Client{
		pool:         pool,
		tracer:       otel.Tracer(tracerName),
		databaseName: databaseName,
	}
}

// QueryRow runs a query returning at most one row. Errors surface from
// Scan; use [WrapError] to classify them.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, span := c.startSpan(ctx, "QueryRow", sql)
	defer span.End()
	return c.pool.QueryRow(ctx, sql, args...)
}

// Exec runs a statement that returns no rows.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, span := c.startSpan(ctx, "Exec", sql)
	tag, err := c.pool.Exec(ctx, sql, args...)
	finishSpan(span, err)
	if err != nil {
		return tag, WrapError(err, "postgres: exec failed")
	}
	return tag, nil
}

// Health pings the database, applying DefaultHealthTimeout when ctx has no
// deadline.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "SELECT 1")
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	err := c.pool.Ping(ctx)
	finishSpan(span, err)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"postgres: health check failed")
	}
	return nil
}

// Close releases all pool resources.
func (c *Client) Close() {
	c.pool.Close()
}

func (c *Client) startSpan(ctx context.Context, operationName, sql string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "postgres."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.name", c.databaseName),
		attribute.String("db.statement", truncateSQL(sql)),
	)
	return ctx, span
}

func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// WrapError classifies a pgx error: deadline and cancellation become
// CodeTimeoutCache, everything else CodeInternalCache.
func WrapError(err error, message string) *sserr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return sserr.Wrap(err, sserr.CodeTimeoutCache, message)
	}
	return sserr.Wrap(err, sserr.CodeInternalCache, message)
}
