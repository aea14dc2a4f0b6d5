package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/bulwark/pkg/observability"
)

// DefaultListTTL is how long list results stay cached.
const DefaultListTTL = 300 * time.Second

// Resource kinds used as list cache namespaces.
const (
	KindOrganizations = "organizations"
	KindRoles         = "roles"
	KindUsers         = "users"
)

// ResultRecorder receives cache hit/miss observations.
type ResultRecorder interface {
	RecordCacheResult(kind string, hit bool)
}

// ListCache caches paginated list results.
type ListCache struct {
	cache    Cache
	ttl      time.Duration
	group    singleflight.Group
	logger   *observability.Logger
	recorder ResultRecorder
}

// NewListCache creates a list cache over c.
func NewListCache(c Cache, ttl time.Duration, logger *observability.Logger) *ListCache {
	if ttl <= 0 {
		ttl = DefaultListTTL
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &ListCache{cache: c, ttl: ttl, logger: logger}
}

// SetRecorder installs a hit/miss recorder.
func (l *ListCache) SetRecorder(r ResultRecorder) {
	l.recorder = r
}

// Key builds the cache key for a list query. filter must marshal
// deterministically (structs do).
func Key(kind string, filter interface{}, page, limit int) (string, error) {
	data, err := json.Marshal(filter)
	if err != nil {
		return "", fmt.Errorf("failed to marshal list filter: %w", err)
	}
	return fmt.Sprintf("%s%s:%d:%d", prefix(kind), data, page, limit), nil
}

func prefix(kind string) string {
	return "list:" + kind + ":"
}

// Invalidate drops every cached list of the given kinds.
func (l *ListCache) Invalidate(ctx context.Context, kinds ...string) error {
	for _, kind := range kinds {
		if err := l.cache.DeletePrefix(ctx, prefix(kind)); err != nil {
			return fmt.Errorf("failed to invalidate %s lists: %w", kind, err)
		}
	}
	return nil
}

func (l *ListCache) record(kind string, hit bool) {
	if l.recorder != nil {
		l.recorder.RecordCacheResult(kind, hit)
	}
}

// Load returns the cached value for the query or calls load, caches and
// returns its result. Concurrent misses for the same key share one load.
// Cache failures degrade to calling load.
func Load[T any](ctx context.Context, l *ListCache, kind string, filter interface{}, page, limit int, load func(context.Context) (T, error)) (T, error) {
	var zero T

	key, err := Key(kind, filter, page, limit)
	if err != nil {
		return zero, err
	}

	if data, err := l.cache.Get(ctx, key); err == nil {
		var cached T
		if err := json.Unmarshal(data, &cached); err == nil {
			l.record(kind, true)
			return cached, nil
		}
		l.logger.WithField("key", key).Warn("discarding undecodable list cache entry")
		_ = l.cache.Delete(ctx, key)
	} else if err != ErrCacheMiss {
		l.logger.WithError(err).WithField("key", key).Warn("list cache read failed")
	}
	l.record(kind, false)

	v, err, _ := l.group.Do(key, func() (interface{}, error) {
		result, err := load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal list result: %w", err)
		}
		if err := l.cache.Set(ctx, key, data, l.ttl); err != nil {
			l.logger.WithError(err).WithField("key", key).Warn("list cache write failed")
		}
		return result, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
