package ratelimit

import (
	"testing"
	"time"
)

func TestRateLimitState_IsStale(t *testing.T) {
	tests := []struct {
		name     string
		state    *RateLimitState
		maxAge   time.Duration
		expected bool
	}{
		{
			name:     "fresh state",
			state:    &RateLimitState{LastUpdate: time.Now()},
			maxAge:   Window,
			expected: false,
		},
		{
			name:     "stale state",
			state:    &RateLimitState{LastUpdate: time.Now().Add(-time.Minute)},
			maxAge:   Window,
			expected: true,
		},
		{
			name:     "never updated",
			state:    &RateLimitState{},
			maxAge:   Window,
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsStale(tt.maxAge); got != tt.expected {
				t.Errorf("IsStale() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRateLimitState_Gating(t *testing.T) {
	tests := []struct {
		name           string
		state          RateLimitState
		expectBlock    bool
		expectThrottle bool
		expectHealthy  bool
	}{
		{
			name:          "empty state",
			state:         RateLimitState{},
			expectHealthy: true,
		},
		{
			name:        "inside retry-after interval",
			state:       RateLimitState{BlockedUntil: time.Now().Add(10 * time.Second), Recent429s: 1},
			expectBlock: true,
		},
		{
			name:          "interval over",
			state:         RateLimitState{BlockedUntil: time.Now().Add(-time.Second), Recent429s: 1},
			expectHealthy: true,
		},
		{
			name:           "repeated 429s",
			state:          RateLimitState{BlockedUntil: time.Now().Add(-time.Second), Recent429s: ThrottleThreshold},
			expectThrottle: true,
		},
		{
			name:        "blocked wins over throttling",
			state:       RateLimitState{BlockedUntil: time.Now().Add(time.Second), Recent429s: ThrottleThreshold + 2},
			expectBlock: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsBlocked(); got != tt.expectBlock {
				t.Errorf("IsBlocked() = %v, want %v", got, tt.expectBlock)
			}
			if got := tt.state.NeedsThrottling(); got != tt.expectThrottle {
				t.Errorf("NeedsThrottling() = %v, want %v", got, tt.expectThrottle)
			}
			if got := tt.state.IsHealthy(); got != tt.expectHealthy {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.expectHealthy)
			}
		})
	}
}

func TestRateLimitState_TimeUntilUnblocked(t *testing.T) {
	s := &RateLimitState{BlockedUntil: time.Now().Add(-time.Minute)}
	if d := s.TimeUntilUnblocked(); d != 0 {
		t.Errorf("TimeUntilUnblocked() = %v, want 0", d)
	}

	s.BlockedUntil = time.Now().Add(5 * time.Second)
	if d := s.TimeUntilUnblocked(); d <= 4*time.Second || d > 5*time.Second {
		t.Errorf("TimeUntilUnblocked() = %v, want about 5s", d)
	}
}
