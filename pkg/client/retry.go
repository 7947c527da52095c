package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sternrassler/spotify-client/pkg/ratelimit"
	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotify_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spotify_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotify_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// RetryConfig holds the configuration for retry logic.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	MaxAttempts int

	// InitialBackoff is the initial backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigForErrorClass returns the appropriate retry configuration for an error class.
func RetryConfigForErrorClass(errorClass ErrorClass) RetryConfig {
	switch errorClass {
	case ErrorClassServer:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    1 * time.Second,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassRateLimit:
		// Retry-After usually dominates; the backoff is the floor.
		return RetryConfig{
			MaxAttempts:       4,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        60 * time.Second,
			BackoffMultiplier: 2.0,
		}
	case ErrorClassTransport:
		return RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    2 * time.Second,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
		}
	default:
		return DefaultRetryConfig()
	}
}

func (c RetryConfig) exponential() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialBackoff
	b.MaxInterval = c.MaxBackoff
	b.Multiplier = c.BackoffMultiplier
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// classBackOff keeps one exponential schedule and attempt budget per error
// class; the class of the latest failure picks which one advances.
type classBackOff struct {
	configFor func(ErrorClass) RetryConfig
	schedules map[ErrorClass]*backoff.ExponentialBackOff
	attempts  map[ErrorClass]int
	last      error
	exhausted bool
}

func newClassBackOff(configFor func(ErrorClass) RetryConfig) *classBackOff {
	b := &classBackOff{configFor: configFor}
	b.Reset()
	return b
}

// observe records the failure the next backoff is computed for.
func (b *classBackOff) observe(err error) {
	b.last = err
}

// Reset implements backoff.BackOff.
func (b *classBackOff) Reset() {
	b.schedules = make(map[ErrorClass]*backoff.ExponentialBackOff)
	b.attempts = make(map[ErrorClass]int)
	b.last = nil
	b.exhausted = false
}

// NextBackOff implements backoff.BackOff.
func (b *classBackOff) NextBackOff() time.Duration {
	class := ClassOf(b.last)
	if !shouldRetry(class) {
		return backoff.Stop
	}

	cfg := b.configFor(class)
	b.attempts[class]++
	if b.attempts[class] >= cfg.MaxAttempts {
		b.exhausted = true
		return backoff.Stop
	}

	schedule, ok := b.schedules[class]
	if !ok {
		schedule = cfg.exponential()
		b.schedules[class] = schedule
	}

	next := schedule.NextBackOff()
	var apiErr *APIError
	if errors.As(b.last, &apiErr) && apiErr.RetryAfter > next {
		next = apiErr.RetryAfter
	}
	return next
}

// retriable reports whether another attempt can succeed. A Retry-After
// beyond MaxRateLimitWait, or a local block, fails at once.
func (c *Client) retriable(err error) bool {
	if !shouldRetry(ClassOf(err)) || errors.Is(err, ratelimit.ErrBlocked) {
		return false
	}

	var apiErr *APIError
	if limit := c.config.MaxRateLimitWait; limit > 0 && errors.As(err, &apiErr) && apiErr.RetryAfter > limit {
		return false
	}
	return true
}

// retryWithBackoff runs attempt until it succeeds, fails permanently, the
// per-class budget is spent or ctx is done.
func (c *Client) retryWithBackoff(ctx context.Context, attempt func() (*http.Response, error)) (*http.Response, error) {
	schedule := newClassBackOff(c.retryConfig)
	attempts := 0
	logger := c.loggerFor(ctx)

	resp, err := backoff.RetryNotifyWithData(func() (*http.Response, error) {
		attempts++
		resp, err := attempt()
		if err == nil {
			return resp, nil
		}

		schedule.observe(err)
		if !c.retriable(err) || ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}, backoff.WithContext(schedule, ctx), func(err error, wait time.Duration) {
		class := string(ClassOf(err))
		retriesTotal.WithLabelValues(class).Inc()
		retryBackoffSeconds.WithLabelValues(class).Observe(wait.Seconds())

		logger.Warn().
			Err(err).
			Str("error_class", class).
			Int("attempt", attempts).
			Dur("backoff", wait).
			Msg("Retrying request after backoff")
	})

	if err == nil {
		if attempts > 1 {
			logger.Info().Int("attempt", attempts).Msg("Request succeeded after retry")
		}
		return resp, nil
	}

	if ClassOf(err) == "" {
		// ctx ended while waiting between attempts
		return nil, &APIError{ErrorClass: ErrorClassTransport, Message: "request cancelled", Err: err}
	}

	if schedule.exhausted {
		class := ClassOf(err)
		retryExhaustedTotal.WithLabelValues(string(class)).Inc()
		logger.Error().
			Err(err).
			Str("error_class", string(class)).
			Int("attempts", attempts).
			Msg("Retry attempts exhausted")
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, err)
	}
	return nil, err
}
