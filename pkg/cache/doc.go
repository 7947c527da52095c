// Package cache stores API responses in Redis and revalidates them with
// conditional requests once they go stale.
//
// Freshness comes from Cache-Control max-age (falling back to Expires).
// Responses marked no-store are never cached. A response without freshness
// information is stored only if it carries an ETag or Last-Modified, and is
// always revalidated before use.
//
// Keys carry a scope (the credential that fetched the response), so a
// user-scoped page is never served to another token.
//
// # Basic Usage
//
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		URL:   "https://api.spotify.com/v1/albums/4aawyAB9vmqN3uQ7FjRGTy/tracks?offset=0&limit=20",
//		Scope: "client_credentials",
//	}
//
//	entry, err := manager.Get(ctx, key)
//	switch {
//	case errors.Is(err, cache.ErrCacheMiss):
//		// fetch, then store if cache.Cacheable(resp)
//	case err == nil && entry.IsExpired():
//		cache.AddConditionalHeaders(req, entry)
//		// on 304: manager.Refresh(ctx, key, entry, resp.Header)
//	}
//
// # Metrics
//
//   - spotify_cache_hits_total{state} - Cache hits, fresh or stale
//   - spotify_cache_misses_total - Cache misses
//   - spotify_cache_written_bytes_total - Bytes written
//   - spotify_conditional_requests_total - Requests sent with a validator
//   - spotify_304_responses_total - Revalidated entries
//   - spotify_cache_errors_total{operation} - Cache operation errors
package cache
