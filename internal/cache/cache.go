package cache

import (
	"context"
	"encoding/json"

	"github.com/baechuer/real-time-ressys/client-core/internal/infrastructure/kv"
	"github.com/baechuer/real-time-ressys/client-core/internal/metrics"
	zlog "github.com/rs/zerolog/log"
)

// Cache is the typed facade over the persistent store and the only writer
// of cache_* keys. Nothing here returns an error: a failed or corrupt read
// is a miss and a failed write is logged.
type Cache struct {
	store *kv.Store
}

func New(store *kv.Store) *Cache {
	return &Cache{store: store}
}

// Get decodes the stored JSON for key into dest. It reports false on a
// missing key or a value that does not parse.
func (c *Cache) Get(ctx context.Context, key Key, dest any) bool {
	raw, ok := c.store.Get(ctx, key.String())
	if !ok {
		metrics.CacheLookups.WithLabelValues(string(key.Kind()), "miss").Inc()
		zlog.Debug().Str("key", key.String()).Msg("cache miss")
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		metrics.CacheLookups.WithLabelValues(string(key.Kind()), "miss").Inc()
		zlog.Warn().Err(err).Str("key", key.String()).Msg("cache entry unreadable")
		return false
	}
	metrics.CacheLookups.WithLabelValues(string(key.Kind()), "hit").Inc()
	zlog.Debug().Str("key", key.String()).Msg("cache hit")
	return true
}

// Set stores v as JSON (best effort).
func (c *Cache) Set(ctx context.Context, key Key, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		zlog.Warn().Err(err).Str("key", key.String()).Msg("cache set failed")
		return
	}
	c.store.Set(ctx, key.String(), string(b))
}

func (c *Cache) Remove(ctx context.Context, key Key) {
	c.store.Remove(ctx, key.String())
}

// GetCached is the generic form of Get.
func GetCached[T any](ctx context.Context, c *Cache, key Key) (T, bool) {
	var v T
	if !c.Get(ctx, key, &v) {
		var zero T
		return zero, false
	}
	return v, true
}

func SetCached[T any](ctx context.Context, c *Cache, key Key, v T) {
	c.Set(ctx, key, v)
}
