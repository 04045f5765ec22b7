// Package cache stores Jikan API responses in Redis for the proxy server.
//
// Jikan itself caches responses for up to 24 hours and enforces a strict
// request budget, so repeating a request for data that cannot have changed
// only burns that budget. The proxy keeps each successful response for a
// configured TTL:
//
//   - Deterministic keys: jikan:<endpoint>:<query params sorted>
//   - Entries expire in Redis and are never served once past Expires
//   - Only 2xx bodies are stored; errors always go upstream again
//   - Prometheus metrics for hits, misses, stored bytes and errors
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient, 10*time.Minute)
//
//	key := cache.NewKey("/anime", url.Values{"q": {"naruto"}, "page": {"1"}})
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch upstream, then
//		_ = manager.Set(ctx, key, cache.NewEntry(body, http.StatusOK, "application/json", manager.TTL()))
//	}
//
// # Metrics
//
//   - jikan_cache_hits_total
//   - jikan_cache_misses_total
//   - jikan_cache_entry_bytes
//   - jikan_cache_errors_total{operation}
//
// The Fetch Client never consults this cache; it always talks to the API.
package cache
