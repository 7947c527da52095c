// Package ratelimit shares 429 back-off state between client instances.
//
// The Web API enforces a rolling window per application and answers with
// 429 Too Many Requests plus a Retry-After header once it is exceeded. The
// tracker records the resulting "blocked until" instant in Redis, so every
// process using the same application credentials waits instead of hammering
// the API.
package ratelimit

import (
	"time"
)

// Redis key suffixes; the tracker prefixes them with its scope.
const (
	keyBlockedUntil = "blocked_until"
	keyRecent429s   = "recent_429s"
	keyLastUpdate   = "last_update"
)

// KeyPrefix prefixes every rate limit key.
const KeyPrefix = "spotify:rate_limit"

const (
	// Window is the length of the API's rolling rate limit window.
	Window = 30 * time.Second

	// DefaultRetryAfter is used when a 429 carries no usable Retry-After.
	DefaultRetryAfter = time.Second

	// ThrottleThreshold applies throttling once this many 429s were seen within Window.
	ThrottleThreshold = 3

	// ThrottleDelay is the pause added before each request while throttling.
	ThrottleDelay = 500 * time.Millisecond
)

// RateLimitState represents the shared rate limit state of one application.
type RateLimitState struct {
	// BlockedUntil is the earliest instant a request may be sent.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastUpdate is when a 429 was last recorded.
	LastUpdate time.Time `json:"last_update"`

	// Recent429s counts 429 responses within the current Window.
	Recent429s int `json:"recent_429s"`
}

// IsStale returns true if the state data is older than the given duration.
func (s *RateLimitState) IsStale(maxAge time.Duration) bool {
	return time.Since(s.LastUpdate) > maxAge
}

// IsBlocked returns true while a Retry-After interval is running.
func (s *RateLimitState) IsBlocked() bool {
	return time.Now().Before(s.BlockedUntil)
}

// NeedsThrottling returns true when 429s keep arriving although nothing is blocked.
func (s *RateLimitState) NeedsThrottling() bool {
	return s.Recent429s >= ThrottleThreshold && !s.IsBlocked()
}

// TimeUntilUnblocked returns the remaining Retry-After interval.
// Returns 0 if requests are allowed.
func (s *RateLimitState) TimeUntilUnblocked() time.Duration {
	d := time.Until(s.BlockedUntil)
	if d < 0 {
		return 0
	}
	return d
}

// IsHealthy reports whether requests flow without any delay.
func (s *RateLimitState) IsHealthy() bool {
	return !s.IsBlocked() && !s.NeedsThrottling()
}
