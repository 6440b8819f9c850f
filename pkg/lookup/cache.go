// Package lookup provides the read-through caches fronting the ingestion
// hot path, and the subscriber that invalidates them from integration
// events.
//
// The cache is a latency optimization, never a correctness dependency: a
// missing or unreachable Redis backend degrades every operation to a direct
// read-model query, and stale entries are evicted by write-side integration
// events.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Source queries the read-model store for one natural key.  A nil value
// with a nil error means the key does not exist; that absence is not
// cached, so repeated misses re-query the read model rather than risk
// caching an absence a concurrent write is about to resolve.
type Source[V any] func(ctx context.Context, key string) (*V, error)

// Cache is a generic read-through cache over one read-model collection,
// keyed by natural lookup keys.  Safe for concurrent use.  A nil Redis
// client disables caching entirely.
type Cache[V any] struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	scanCount int64
	source    Source[V]
	logger    zerolog.Logger
}

// NewCache creates a cache whose Redis keys are namespaced by prefix.
// ttl of zero means entries live until explicitly invalidated.
func NewCache[V any](
	rdb *redis.Client,
	prefix string,
	ttl time.Duration,
	scanCount int64,
	source Source[V],
) *Cache[V] {
	if scanCount <= 0 {
		scanCount = 100
	}
	return &Cache[V]{
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		scanCount: scanCount,
		source:    source,
		logger:    log.With().Str("module", "lookup").Str("cache", prefix).Logger(),
	}
}

// Get returns the cached value for key unless absent or forceRefresh is
// set, in which case it queries the read model, stores a found result, and
// returns it.  Cache backend failures are logged and degrade to the read
// model; only read-model failures surface to the caller.
func (c *Cache[V]) Get(ctx context.Context, key string, forceRefresh bool) (*V, error) {
	if c.rdb != nil && !forceRefresh {
		data, err := c.rdb.Get(ctx, c.redisKey(key)).Bytes()
		switch {
		case err == nil:
			v := new(V)
			if jerr := json.Unmarshal(data, v); jerr == nil {
				return v, nil
			}
			// Undecodable entry, treat as a miss and overwrite below.
			c.logger.Warn().Str("key", key).Msg("Dropping undecodable cache entry")
		case !errors.Is(err, redis.Nil):
			c.logger.Warn().Err(err).Str("key", key).
				Msg("Cache read failed, falling through to read model")
		}
	}
	v, err := c.source(ctx, key)
	if err != nil {
		return nil, err
	}
	if v != nil {
		c.Set(ctx, key, v)
	}
	return v, nil
}

// Set unconditionally overwrites the cached entry.  Best effort; backend
// failures are logged and swallowed.
func (c *Cache[V]) Set(ctx context.Context, key string, v *V) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}
	if err := c.rdb.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}

// Invalidate removes one entry.  Removing an absent entry is a no-op
// success.
func (c *Cache[V]) Invalidate(ctx context.Context, key string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.redisKey(key)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache invalidation failed")
	}
}

// InvalidatePattern removes all entries whose key matches the glob-style
// pattern, used when one write affects many cached keys.
func (c *Cache[V]) InvalidatePattern(ctx context.Context, pattern string) {
	if c.rdb == nil {
		return
	}
	match := c.redisKey(pattern)
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, match, c.scanCount).Result()
		if err != nil {
			c.logger.Warn().Err(err).Str("pattern", pattern).
				Msg("Cache pattern invalidation failed")
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn().Err(err).Str("pattern", pattern).
					Msg("Cache pattern invalidation failed")
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func (c *Cache[V]) redisKey(key string) string {
	return c.prefix + ":" + key
}
