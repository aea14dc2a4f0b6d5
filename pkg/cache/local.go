package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type localEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e localEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// LocalCache is an in-process Cache bounded by entry count. It is meant for
// single-instance deployments and tests.
type LocalCache struct {
	entries *lru.Cache[string, localEntry]
	now     func() time.Time
}

// NewLocalCache creates a cache holding at most size entries.
func NewLocalCache(size int) (*LocalCache, error) {
	if size < 16 {
		size = 16
	}
	entries, err := lru.New[string, localEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create lru: %w", err)
	}
	return &LocalCache{entries: entries, now: time.Now}, nil
}

// Get retrieves a value.
func (c *LocalCache) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := c.entries.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if e.expired(c.now()) {
		c.entries.Remove(key)
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a value.
func (c *LocalCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := localEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries.Add(key, e)
	return nil
}

// Delete removes keys.
func (c *LocalCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.entries.Remove(k)
	}
	return nil
}

// DeletePrefix removes every key with the prefix.
func (c *LocalCache) DeletePrefix(_ context.Context, prefix string) error {
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.entries.Remove(k)
		}
	}
	return nil
}

// Ping always succeeds.
func (c *LocalCache) Ping(context.Context) error {
	return nil
}
