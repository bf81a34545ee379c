package cache

import (
	"context"
	"time"

	"github.com/StricklySoft/stricklysoft-keycloak/pkg/clients/redis"
)

// Redis is a [Cache] stored in Redis. Expiry is delegated to the server
// (SET ... PX), so entries are shared by every bridge instance pointing at
// the same database.
type Redis struct {
	client *redis.Client
}

var _ Cache = (*Redis)(nil)

// NewRedis wraps a connected client. The caller owns the client and closes
// it.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get implements [Cache]. Backend failures carry
// [sserr.CodeInternalCache] or [sserr.CodeTimeoutCache].
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	return r.client.Get(ctx, key)
}

// Set implements [Cache].
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl)
}
