// Package cache defines the key-value store the Keycloak client uses for
// cache-aside reads of access tokens and realm lists, the derivation of the
// keys it stores them under, and three backends:
//
//   - [Memory]: in-process, backed by github.com/patrickmn/go-cache
//   - [Redis]: shared, backed by pkg/clients/redis
//   - [Postgres]: shared, backed by pkg/clients/postgres
//
// Backends never interpret values. An entry whose TTL has elapsed is a miss.
// All backends are safe for concurrent use.
package cache

import (
	"context"
	"time"
)

// Cache is a string key-value store with per-entry expiry.
//
// Get reports a missing or expired key as found == false with a nil error;
// a non-nil error means the backend itself failed. Set with a ttl <= 0
// stores the entry without expiry.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}
