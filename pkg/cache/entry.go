package cache

import (
	"time"
)

// CacheEntry represents a cached API response.
type CacheEntry struct {
	// Expires is when the entry stops being fresh (from Cache-Control max-age or Expires)
	Expires time.Time `json:"expires"`

	// LastModified is when the data was last modified (from Last-Modified)
	LastModified time.Time `json:"last_modified"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`

	// ETag for conditional requests (If-None-Match)
	ETag string `json:"etag"`

	// ContentType of the cached body
	ContentType string `json:"content_type,omitempty"`

	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`
}

// IsExpired returns true if the cache entry is no longer fresh.
func (e *CacheEntry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// CanRevalidate reports whether a stale entry can be confirmed with a
// conditional request instead of being fetched again.
func (e *CacheEntry) CanRevalidate() bool {
	return e.ETag != "" || !e.LastModified.IsZero()
}
