package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spotify_rate_limited_responses_total",
		Help: "Total number of 429 Too Many Requests responses",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spotify_rate_limit_blocks_total",
		Help: "Total number of requests delayed by a shared Retry-After interval",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spotify_rate_limit_throttles_total",
		Help: "Total number of requests throttled after repeated 429s",
	})

	rateLimitWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spotify_rate_limit_wait_seconds",
		Help:    "Time requests waited for the rate limit",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})
)

// ErrBlocked is returned by Wait when the remaining interval exceeds the caller's limit.
var ErrBlocked = errors.New("rate limited")

// extendBlock moves blocked_until forward, never backward.
var extendBlock = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local until_ms = tonumber(ARGV[1])
if until_ms > current then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
	return until_ms
end
return current
`)

// Tracker records 429 responses and gates requests while they last.
type Tracker struct {
	redis   *redis.Client
	logger  zerolog.Logger
	prefix  string
	maxWait time.Duration
}

// NewTracker creates a new rate limit tracker. scope identifies the
// application (usually its client ID); processes sharing it share the state.
func NewTracker(redisClient *redis.Client, scope string, logger zerolog.Logger) *Tracker {
	prefix := KeyPrefix
	if scope != "" {
		prefix += ":" + scope
	}
	return &Tracker{
		redis:  redisClient,
		logger: logger,
		prefix: prefix,
	}
}

// SetMaxWait makes Wait fail with ErrBlocked instead of sleeping longer than d.
// Zero waits for as long as the API asks.
func (t *Tracker) SetMaxWait(d time.Duration) {
	if t == nil {
		return
	}
	t.maxWait = d
}

// disabled reports whether there is no shared state to consult. A nil
// tracker, or one without Redis, never blocks.
func (t *Tracker) disabled() bool {
	return t == nil || t.redis == nil
}

func (t *Tracker) key(suffix string) string {
	return t.prefix + ":" + suffix
}

// GetState retrieves the current rate limit state from Redis.
// Returns an unblocked state if no data exists in Redis, or without Redis.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	if t.disabled() {
		return &RateLimitState{}, nil
	}
	vals, err := t.redis.MGet(ctx, t.key(keyBlockedUntil), t.key(keyRecent429s), t.key(keyLastUpdate)).Result()
	if err != nil {
		return nil, fmt.Errorf("get rate limit state: %w", err)
	}

	state := &RateLimitState{}
	if ms, ok := parseInt(vals[0]); ok {
		state.BlockedUntil = time.UnixMilli(ms)
	}
	if n, ok := parseInt(vals[1]); ok {
		state.Recent429s = int(n)
	}
	if ms, ok := parseInt(vals[2]); ok {
		state.LastUpdate = time.UnixMilli(ms)
	}
	return state, nil
}

func parseInt(v any) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// RecordRetryAfter stores the interval of a 429 response and returns how long
// requests are now blocked.
func (t *Tracker) RecordRetryAfter(ctx context.Context, headers http.Header) (time.Duration, error) {
	rateLimitedResponses.Inc()

	now := time.Now()
	wait, ok := ParseRetryAfter(headers, now)
	if !ok {
		wait = DefaultRetryAfter
	}
	if t.disabled() {
		return wait, nil
	}
	until := now.Add(wait)

	pipe := t.redis.TxPipeline()
	incr := pipe.Incr(ctx, t.key(keyRecent429s))
	pipe.Expire(ctx, t.key(keyRecent429s), Window)
	pipe.Set(ctx, t.key(keyLastUpdate), now.UnixMilli(), Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return wait, fmt.Errorf("store rate limit state in redis: %w", err)
	}

	blockedMS, err := extendBlock.Run(ctx, t.redis,
		[]string{t.key(keyBlockedUntil)},
		until.UnixMilli(), wait.Milliseconds()+1,
	).Int64()
	if err != nil {
		return wait, fmt.Errorf("store blocked-until in redis: %w", err)
	}

	blocked := time.Until(time.UnixMilli(blockedMS))
	if blocked < 0 {
		blocked = 0
	}

	t.logger.Warn().
		Dur("retry_after", wait).
		Int64("recent_429s", incr.Val()).
		Time("blocked_until", time.UnixMilli(blockedMS)).
		Msg("Rate limited by API")

	return blocked, nil
}

// Wait blocks until requests are allowed again or ctx is done. While 429s
// keep arriving it additionally spaces requests by ThrottleDelay.
func (t *Tracker) Wait(ctx context.Context) error {
	if t.disabled() {
		return nil
	}
	state, err := t.GetState(ctx)
	if err != nil {
		return err
	}

	var delay time.Duration
	switch {
	case state.IsBlocked():
		delay = state.TimeUntilUnblocked()
		if t.maxWait > 0 && delay > t.maxWait {
			return fmt.Errorf("%w: retry in %s", ErrBlocked, delay.Round(time.Millisecond))
		}
		rateLimitBlocksTotal.Inc()
		t.logger.Info().Dur("wait_duration", delay).Msg("Waiting for rate limit interval")
	case state.NeedsThrottling():
		delay = ThrottleDelay
		rateLimitThrottlesTotal.Inc()
		t.logger.Debug().Int("recent_429s", state.Recent429s).Msg("Throttling request")
	default:
		return nil
	}

	rateLimitWaitSeconds.Observe(delay.Seconds())

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ParseRetryAfter reads a Retry-After header given as seconds or an HTTP date.
func ParseRetryAfter(headers http.Header, now time.Time) (time.Duration, bool) {
	v := strings.TrimSpace(headers.Get("Retry-After"))
	if v == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}

	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}
