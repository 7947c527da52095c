package cache

import (
	"net/url"
	"strings"
)

// CacheKey identifies a cached API response.
type CacheKey struct {
	// URL is the absolute request URL, query included.
	URL string

	// Scope separates credentials (e.g. the auth flow or user), so a response
	// fetched with one token is never served to another.
	Scope string
}

// String generates a deterministic cache key string.
// Format: spotify:scope:host/path:sorted-query
//
// Example:
//
//	spotify:client_credentials:api.spotify.com/v1/albums/4aawyAB9vmqN3uQ7FjRGTy/tracks:limit=20&offset=40
func (k CacheKey) String() string {
	scope := k.Scope
	if scope == "" {
		scope = "public"
	}
	parts := []string{"spotify", scope}

	u, err := url.Parse(k.URL)
	if err != nil {
		return strings.Join(append(parts, k.URL), ":")
	}

	if resource := strings.ToLower(u.Host) + strings.TrimRight(u.Path, "/"); resource != "" {
		parts = append(parts, resource)
	}

	// Encode sorts by parameter name.
	if q := u.Query(); len(q) > 0 {
		parts = append(parts, q.Encode())
	}

	return strings.Join(parts, ":")
}
