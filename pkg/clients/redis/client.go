package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-keycloak/pkg/errors"
)

const tracerName = "github.com/StricklySoft/stricklysoft-keycloak/pkg/clients/redis"

// Cmdable is the subset of go-redis commands the [Client] wraps. It is
// satisfied by [*redis.Client] and by test doubles.
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

var _ Cmdable = (*redis.Client)(nil)

// Client is a traced Redis client. It is safe for concurrent use.
type Client struct {
	cmdable Cmdable
	tracer  trace.Tracer
	dbIndex int
}

// NewClient validates cfg, connects, and verifies connectivity with PING.
//
// Error codes returned:
//   - [sserr.CodeInternalConfiguration]: invalid configuration
//   - [sserr.CodeUnavailableDependency]: cannot connect to Redis
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration,
			"redis: invalid configuration")
	}

	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"redis: failed to connect to server")
	}

	return &Client{
		cmdable: rdb,
		tracer:  otel.Tracer(tracerName),
		dbIndex: opts.DB,
	}, nil
}

func (c *Config) options() (*redis.Options, error) {
	if c.URI == "" {
		opts := &redis.Options{
			Addr:         fmt.Sprintf("%s:%d", c.Host, c.Port),
			Password:     c.Password.Value(),
			DB:           c.DB,
			PoolSize:     c.PoolSize,
			MaxRetries:   c.MaxRetries,
			DialTimeout:  c.DialTimeout,
			ReadTimeout:  c.ReadTimeout,
			WriteTimeout: c.WriteTimeout,
		}
		if c.TLSEnabled {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return opts, nil
	}

	opts, err := redis.ParseURL(c.URI)
	if err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalConfiguration,
			"redis: failed to parse connection URI")
	}
	opts.PoolSize = c.PoolSize
	opts.MaxRetries = c.MaxRetries
	opts.DialTimeout = c.DialTimeout
	opts.ReadTimeout = c.ReadTimeout
	opts.WriteTimeout = c.WriteTimeout
	return opts, nil
}

// NewFromClient wraps an existing [Cmdable]. The database index is used for
// span attributes only.
func NewFromClient(cmdable Cmdable, dbIndex int) *Client {
	return &Client{
		cmdable: cmdable,
		tracer:  otel.Tracer(tracerName),
		dbIndex: dbIndex,
	}
}

// Get returns the value stored at key. A missing key is reported as
// found == false with a nil error.
func (c *Client) Get(ctx context.Context, key string) (value string, found bool, err error) {
	ctx, span := c.startSpan(ctx, "Get", "GET "+key)
	value, err = c.cmdable.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		span.SetAttributes(attribute.Bool("db.redis.hit", false))
		finishSpan(span, nil)
		return "", false, nil
	}
	finishSpan(span, err)
	if err != nil {
		return "", false, wrapError(err, "redis: get failed")
	}
	span.SetAttributes(attribute.Bool("db.redis.hit", true))
	return value, true, nil
}

// Set stores value at key with the given expiration. A zero expiration
// stores the key without expiry.
func (c *Client) Set(ctx context.Context, key, value string, expiration time.Duration) error {
	ctx, span := c.startSpan(ctx, "Set", fmt.Sprintf("SET %s EX %d", key, int64(expiration/time.Second)))
	err := c.cmdable.Set(ctx, key, value, expiration).Err()
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "redis: set failed")
	}
	return nil
}

// Del deletes keys and returns how many existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Del", fmt.Sprintf("DEL %v", keys))
	n, err := c.cmdable.Del(ctx, keys...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: del failed")
	}
	return n, nil
}

// TTL returns the remaining time to live of key. go-redis reports -2 for
// a missing key and -1 for a key without expiry.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, span := c.startSpan(ctx, "TTL", "TTL "+key)
	d, err := c.cmdable.TTL(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: ttl failed")
	}
	return d, nil
}

// Health pings the server, applying DefaultHealthTimeout when ctx has no
// deadline.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "PING")
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	err := c.cmdable.Ping(ctx).Err()
	finishSpan(span, err)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeUnavailableDependency,
			"redis: health check failed")
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.cmdable.Close()
}

func (c *Client) startSpan(ctx context.Context, operationName, statement string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "redis."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.Int("db.redis.database_index", c.dbIndex),
		attribute.String("db.statement", truncateStatement(statement)),
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

// wrapError maps deadline errors to CodeTimeoutCache and everything else to
// CodeInternalCache.
func wrapError(err error, message string) *sserr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return sserr.Wrap(err, sserr.CodeTimeoutCache, message)
	}
	return sserr.Wrap(err, sserr.CodeInternalCache, message)
}
