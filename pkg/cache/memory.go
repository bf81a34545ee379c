package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often [Memory] evicts expired entries.
const DefaultCleanupInterval = time.Minute

// Memory is an in-process [Cache]. Expired entries are invisible to Get
// immediately and are evicted in the background every cleanup interval.
type Memory struct {
	items *gocache.Cache
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an empty in-process cache. A cleanupInterval <= 0 uses
// [DefaultCleanupInterval].
func NewMemory(cleanupInterval time.Duration) *Memory {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Memory{items: gocache.New(gocache.NoExpiration, cleanupInterval)}
}

// Get implements [Cache]. It never fails.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	return s, ok, nil
}

// Set implements [Cache]. It never fails.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.items.Set(key, value, ttl)
	return nil
}

// Len returns the number of stored entries, including expired entries not
// yet evicted.
func (m *Memory) Len() int {
	return m.items.ItemCount()
}

// Flush removes every entry.
func (m *Memory) Flush() {
	m.items.Flush()
}
