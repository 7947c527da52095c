package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/spotify-client/pkg/ratelimit"
	"github.com/cenkalti/backoff/v4"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 1*time.Second {
		t.Errorf("InitialBackoff = %v, want 1s", config.InitialBackoff)
	}
	if config.MaxBackoff != 30*time.Second {
		t.Errorf("MaxBackoff = %v, want 30s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfigForErrorClass(t *testing.T) {
	tests := []struct {
		name             string
		errorClass       ErrorClass
		expectedInitial  time.Duration
		expectedMax      time.Duration
		expectedAttempts int
	}{
		{
			name:             "server error config",
			errorClass:       ErrorClassServer,
			expectedInitial:  1 * time.Second,
			expectedMax:      10 * time.Second,
			expectedAttempts: 3,
		},
		{
			name:             "rate limit config",
			errorClass:       ErrorClassRateLimit,
			expectedInitial:  2 * time.Second,
			expectedMax:      60 * time.Second,
			expectedAttempts: 4,
		},
		{
			name:             "transport error config",
			errorClass:       ErrorClassTransport,
			expectedInitial:  2 * time.Second,
			expectedMax:      30 * time.Second,
			expectedAttempts: 3,
		},
		{
			name:             "unknown error class uses default",
			errorClass:       "",
			expectedInitial:  1 * time.Second,
			expectedMax:      30 * time.Second,
			expectedAttempts: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := RetryConfigForErrorClass(tt.errorClass)

			if config.InitialBackoff != tt.expectedInitial {
				t.Errorf("InitialBackoff = %v, want %v", config.InitialBackoff, tt.expectedInitial)
			}
			if config.MaxBackoff != tt.expectedMax {
				t.Errorf("MaxBackoff = %v, want %v", config.MaxBackoff, tt.expectedMax)
			}
			if config.MaxAttempts != tt.expectedAttempts {
				t.Errorf("MaxAttempts = %d, want %d", config.MaxAttempts, tt.expectedAttempts)
			}
		})
	}
}

func TestClient_RetryConfigOverrides(t *testing.T) {
	c := newTestClient(t, "https://api.example.com", func(cfg *Config) {
		cfg.MaxRetries = 5
		cfg.InitialBackoff = 10 * time.Millisecond
	})

	cfg := c.retryConfig(ErrorClassServer)
	if cfg.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want the class budget 3", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 10*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 10ms", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 10*time.Second {
		t.Errorf("MaxBackoff = %v, want the class default", cfg.MaxBackoff)
	}
}

func TestClient_RetryConfigCap(t *testing.T) {
	tests := []struct {
		maxRetries int
		class      ErrorClass
		want       int
	}{
		{3, ErrorClassServer, 3},
		{3, ErrorClassRateLimit, 4},
		{3, ErrorClassTransport, 3},
		{1, ErrorClassRateLimit, 2},
		{0, ErrorClassServer, 1},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.class, tt.maxRetries), func(t *testing.T) {
			c := newTestClient(t, "https://api.example.com", func(cfg *Config) { cfg.MaxRetries = tt.maxRetries })
			if got := c.retryConfig(tt.class).MaxAttempts; got != tt.want {
				t.Errorf("MaxAttempts = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDo_AttemptsPerErrorClass(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantClass ErrorClass
		wantCalls int32
	}{
		{
			name: "server",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantClass: ErrorClassServer,
			wantCalls: 3,
		},
		{
			name: "rate limit",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", "0")
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantClass: ErrorClassRateLimit,
			wantCalls: 4,
		},
		{
			name: "transport",
			handler: func(w http.ResponseWriter, r *http.Request) {
				conn, _, err := w.(http.Hijacker).Hijack()
				if err == nil {
					conn.Close()
				}
			},
			wantClass: ErrorClassTransport,
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				tt.handler(w, r)
			}))
			defer server.Close()

			c := newTestClient(t, server.URL, func(cfg *Config) {
				cfg.BreakerFailures = 100
				cfg.HTTPClient = &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
			})

			err := c.Get(context.Background(), "/albums/x/tracks", nil, nil)
			if ClassOf(err) != tt.wantClass {
				t.Errorf("ClassOf() = %q, want %q (err = %v)", ClassOf(err), tt.wantClass, err)
			}
			if !errors.Is(err, ErrRetryExhausted) {
				t.Errorf("error = %v, want ErrRetryExhausted", err)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("server calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func fixedConfig(attempts int) func(ErrorClass) RetryConfig {
	return func(ErrorClass) RetryConfig {
		return RetryConfig{
			MaxAttempts:       attempts,
			InitialBackoff:    100 * time.Millisecond,
			MaxBackoff:        time.Second,
			BackoffMultiplier: 2.0,
		}
	}
}

func TestClassBackOff_Budget(t *testing.T) {
	b := newClassBackOff(fixedConfig(3))
	b.observe(&APIError{ErrorClass: ErrorClassServer})

	for i := 0; i < 2; i++ {
		if next := b.NextBackOff(); next == backoff.Stop {
			t.Fatalf("retry %d stopped early", i+1)
		}
	}
	if next := b.NextBackOff(); next != backoff.Stop {
		t.Errorf("NextBackOff() = %v after budget, want Stop", next)
	}
	if !b.exhausted {
		t.Error("exhausted should be set")
	}

	b.Reset()
	if b.exhausted || len(b.attempts) != 0 {
		t.Error("Reset() should clear the budget")
	}
}

func TestClassBackOff_SeparateBudgets(t *testing.T) {
	b := newClassBackOff(fixedConfig(2))

	b.observe(&APIError{ErrorClass: ErrorClassServer})
	if b.NextBackOff() == backoff.Stop {
		t.Fatal("first server retry stopped")
	}

	b.observe(&APIError{ErrorClass: ErrorClassTransport})
	if b.NextBackOff() == backoff.Stop {
		t.Fatal("first transport retry should have its own budget")
	}

	b.observe(&APIError{ErrorClass: ErrorClassServer})
	if b.NextBackOff() != backoff.Stop {
		t.Error("second server retry should exceed the budget")
	}
}

func TestClassBackOff_Jitter(t *testing.T) {
	b := newClassBackOff(fixedConfig(10))
	b.observe(&APIError{ErrorClass: ErrorClassServer})

	next := b.NextBackOff()
	if next < 80*time.Millisecond || next > 120*time.Millisecond {
		t.Errorf("first backoff = %v, want 100ms ±20%%", next)
	}

	second := b.NextBackOff()
	if second < 160*time.Millisecond || second > 240*time.Millisecond {
		t.Errorf("second backoff = %v, want 200ms ±20%%", second)
	}
}

func TestClassBackOff_RetryAfterFloor(t *testing.T) {
	b := newClassBackOff(fixedConfig(3))
	b.observe(&APIError{ErrorClass: ErrorClassRateLimit, RetryAfter: 5 * time.Second})

	if next := b.NextBackOff(); next != 5*time.Second {
		t.Errorf("NextBackOff() = %v, want Retry-After 5s", next)
	}
}

func TestClassBackOff_NonRetriable(t *testing.T) {
	b := newClassBackOff(fixedConfig(3))
	b.observe(&APIError{ErrorClass: ErrorClassClient})

	if next := b.NextBackOff(); next != backoff.Stop {
		t.Errorf("NextBackOff() = %v, want Stop", next)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	c := newTestClient(t, "https://api.example.com", nil)

	calls := 0
	resp, err := c.retryWithBackoff(context.Background(), func() (*http.Response, error) {
		calls++
		if calls < 2 {
			return nil, &APIError{ErrorClass: ErrorClassServer, StatusCode: 500}
		}
		return &http.Response{StatusCode: 200}, nil
	})

	if err != nil {
		t.Fatalf("retryWithBackoff() error = %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetryWithBackoff_ClientErrorNoRetry(t *testing.T) {
	c := newTestClient(t, "https://api.example.com", nil)

	calls := 0
	_, err := c.retryWithBackoff(context.Background(), func() (*http.Response, error) {
		calls++
		return nil, &APIError{ErrorClass: ErrorClassClient, StatusCode: 404}
	})

	if ClassOf(err) != ErrorClassClient {
		t.Errorf("ClassOf() = %q, want client", ClassOf(err))
	}
	if errors.Is(err, ErrRetryExhausted) {
		t.Error("client errors are not retried, so nothing is exhausted")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_ContextCancelledDuringBackoff(t *testing.T) {
	c := newTestClient(t, "https://api.example.com", func(cfg *Config) {
		cfg.InitialBackoff = 0 // keep the class default of one second
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		return nil, &APIError{ErrorClass: ErrorClassServer, StatusCode: 500}
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if ClassOf(err) != ErrorClassTransport {
		t.Errorf("ClassOf() = %q, want transport", ClassOf(err))
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("retryWithBackoff() took %v, should stop when ctx is done", elapsed)
	}
}

func TestClient_Retriable(t *testing.T) {
	c := newTestClient(t, "https://api.example.com", func(cfg *Config) {
		cfg.MaxRateLimitWait = 10 * time.Second
	})

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server", &APIError{ErrorClass: ErrorClassServer}, true},
		{"client", &APIError{ErrorClass: ErrorClassClient}, false},
		{"short retry-after", &APIError{ErrorClass: ErrorClassRateLimit, RetryAfter: time.Second}, true},
		{"long retry-after", &APIError{ErrorClass: ErrorClassRateLimit, RetryAfter: time.Minute}, false},
		{"local block", &APIError{ErrorClass: ErrorClassRateLimit, Err: ratelimit.ErrBlocked}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.retriable(tt.err); got != tt.want {
				t.Errorf("retriable() = %v, want %v", got, tt.want)
			}
		})
	}
}
