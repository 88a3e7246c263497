package usecases

import (
	"context"
	"encoding/json"

	"github.com/samirrijal/geobubbles/internal/core/ports"
	"github.com/samirrijal/geobubbles/internal/pkg/metrics"
)

// readCache decodes a cached JSON value into out. It reports false on miss,
// decode failure, or when no cache is configured.
func readCache(ctx context.Context, cache ports.CacheService, op, key string, out any) bool {
	if cache == nil {
		return false
	}
	data, err := cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

// writeCache stores v as JSON. Failures are ignored; the cache is best-effort.
func writeCache(ctx context.Context, cache ports.CacheService, key string, v any, ttlSeconds int) {
	if cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = cache.Set(ctx, key, data, ttlSeconds)
	}
}

func dropCache(ctx context.Context, cache ports.CacheService, keys ...string) {
	if cache == nil {
		return
	}
	for _, k := range keys {
		_ = cache.Delete(ctx, k)
	}
}

func messageKey(id string) string { return "messages:id:" + id }
func friendsKey(id string) string { return "friends:" + id }
