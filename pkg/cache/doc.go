// Package cache provides a Redis-backed cache of generated image
// descriptions.
//
// Descriptions are keyed by the image payload digest together with the
// request parameters that shape the output (role, model, language,
// custom prompt). An identical image requested under identical
// parameters is served from the cache instead of being resubmitted to
// the vision service.
//
// Features:
//
// - Deterministic cache key generation from payload digest + parameters
// - Caller-defined TTL, enforced by Redis expiry
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	// Create Redis client
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	// Create cache manager
//	manager := cache.NewManager(redisClient)
//
//	// Create cache key
//	key := cache.NewKey(payload, "alt-text-writer", "default", "en", "")
//
//	// Get from cache
//	entry, err := manager.Get(ctx, key)
//	if err == cache.ErrCacheMiss {
//		// Cache miss - submit to the vision service
//	}
//
//	// Store a freshly generated description
//	err = manager.Set(ctx, key, &cache.Entry{
//		Text:     "A red bicycle leaning against a wall",
//		Backend:  "default",
//		CachedAt: time.Now(),
//	}, 24*time.Hour)
package cache
