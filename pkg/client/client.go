// Package client provides the HTTP client for the Spotify Web API with
// authentication, rate limiting, caching and error handling.
package client

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/spotify-client/pkg/auth"
	"github.com/Sternrassler/spotify-client/pkg/cache"
	"github.com/Sternrassler/spotify-client/pkg/logging"
	"github.com/Sternrassler/spotify-client/pkg/ratelimit"
	"github.com/google/go-querystring/query"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// DefaultBaseURL is the Web API root that relative paths are resolved against.
const DefaultBaseURL = "https://api.spotify.com/v1"

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotify_requests_total",
		Help: "Total API requests by route and status",
	}, []string{"route", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spotify_request_duration_seconds",
		Help:    "API request duration in seconds by route",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"route"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spotify_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})

	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spotify_circuit_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
	})
)

// Client is the Web API client. It implements pagination.Getter.
type Client struct {
	httpClient  *http.Client
	flow        auth.Flow
	baseURL     *url.URL
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	breaker     *gobreaker.CircuitBreaker
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Flow supplies the bearer token for every request (REQUIRED).
	Flow auth.Flow

	// Redis enables the response cache and the shared rate limit state.
	// Without it every request goes to the API and 429s are only retried.
	Redis *redis.Client

	// HTTPClient overrides the transport (default: 30s timeout).
	HTTPClient *http.Client

	// BaseURL defaults to DefaultBaseURL.
	BaseURL string

	// User-Agent header (REQUIRED)
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// CacheScope names a cache partition shared by every client that sets it.
	// Private responses are never stored under it. When empty, application
	// tokens share the flow name and user tokens get a scope derived from
	// the credential itself.
	CacheScope string

	// RateLimitScope identifies the application whose 429 state is shared,
	// usually the client ID.
	RateLimitScope string

	// MaxRateLimitWait fails requests instead of waiting out longer Retry-After
	// intervals. Zero waits as long as the API asks.
	MaxRateLimitWait time.Duration

	// Retry; per-class budgets come from RetryConfigForErrorClass and
	// MaxRetries caps them (0 disables retries).
	MaxRetries     int
	InitialBackoff time.Duration

	// Circuit breaker
	BreakerFailures uint32        // consecutive server/transport failures that open it
	BreakerTimeout  time.Duration // open period before a trial request
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(flow auth.Flow, userAgent string) Config {
	return Config{
		Flow:            flow,
		BaseURL:         DefaultBaseURL,
		UserAgent:       userAgent,
		MaxRetries:      3,
		InitialBackoff:  1 * time.Second,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// New creates a new API client.
func New(cfg Config) (*Client, error) {
	if cfg.Flow == nil {
		return nil, fmt.Errorf("auth flow is required")
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.BreakerFailures == 0 {
		return nil, fmt.Errorf("breaker_failures must be > 0")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || !baseURL.IsAbs() {
		return nil, fmt.Errorf("base_url must be an absolute URL (got %q)", cfg.BaseURL)
	}

	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := logging.NewLogger("spotify-client")

	c := &Client{
		httpClient: httpClient,
		flow:       cfg.Flow,
		baseURL:    baseURL,
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.rateLimiter = ratelimit.NewTracker(cfg.Redis, cfg.RateLimitScope, logger)
		c.rateLimiter.SetMaxWait(cfg.MaxRateLimitWait)
		c.cache = cache.NewManager(cfg.Redis)
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "spotify-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.Set(float64(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return c, nil
}

// breakerSuccess counts only failures that indicate an unhealthy API.
func breakerSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch ClassOf(err) {
	case ErrorClassServer, ErrorClassTransport:
		return false
	default:
		return true
	}
}

// retryConfig applies the client's overrides to the per-class defaults.
func (c *Client) retryConfig(class ErrorClass) RetryConfig {
	cfg := RetryConfigForErrorClass(class)
	cfg.MaxAttempts = min(cfg.MaxAttempts, c.config.MaxRetries+1)
	if c.config.InitialBackoff > 0 && c.config.InitialBackoff < cfg.InitialBackoff {
		cfg.InitialBackoff = c.config.InitialBackoff
	}
	return cfg
}

// Get fetches rawURL and decodes the JSON body into out. It implements
// pagination.Getter.
//
// rawURL is absolute (e.g. a page's next link) or relative to the base URL.
// params is nil, url.Values or a struct with `url` tags; its values replace
// parameters of the same name already in rawURL.
func (c *Client) Get(ctx context.Context, rawURL string, params any, out any) error {
	u, err := c.resolve(rawURL, params)
	if err != nil {
		return &APIError{ErrorClass: ErrorClassClient, Message: "build request URL", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &APIError{ErrorClass: ErrorClassClient, Message: "create request", Err: err}
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		decodeErr := NewDecodeError(fmt.Sprintf("decode %s", req.URL.Path), err)
		decodeErr.StatusCode = resp.StatusCode
		return decodeErr
	}
	return nil
}

// resolve builds the request URL from rawURL and params.
func (c *Client) resolve(rawURL string, params any) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if !u.IsAbs() {
		u, err = url.Parse(c.baseURL.String() + "/" + strings.TrimLeft(rawURL, "/"))
		if err != nil {
			return nil, err
		}
	}

	values, err := encodeParams(params)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		q := u.Query()
		for key, vals := range values {
			q[key] = vals
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func encodeParams(params any) (url.Values, error) {
	switch p := params.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return p, nil
	default:
		values, err := query.Values(params)
		if err != nil {
			return nil, fmt.Errorf("encode query parameters: %w", err)
		}
		return values, nil
	}
}

// Do performs an HTTP request with authentication, rate limiting, caching,
// retries and the circuit breaker. Every non-2xx outcome is returned as *APIError.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	route := routeOf(req.URL.Path)
	logger := c.loggerFor(ctx)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(route).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	useCache := c.cache != nil && req.Method == http.MethodGet
	var scope cacheScope
	if useCache {
		scope, useCache = c.scopeFor(ctx)
	}

	cacheKey := cache.CacheKey{URL: req.URL.String(), Scope: scope.name}
	var cachedEntry *cache.CacheEntry
	if useCache {
		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil && !entry.IsExpired():
			logger.Debug().Str("url", req.URL.String()).Dur("ttl", entry.TTL()).Msg("Serving from cache")
			requestsTotal.WithLabelValues(route, "cache").Inc()
			return cache.EntryToResponse(entry, req), nil
		case err == nil:
			cachedEntry = entry
			cache.AddConditionalHeaders(req, entry)
			logger.Debug().Str("url", req.URL.String()).Str("etag", entry.ETag).Msg("Making conditional request")
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Str("url", req.URL.String()).Msg("Cache get error")
		}
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.retryWithBackoff(ctx, func() (*http.Response, error) {
			return c.attempt(req, route)
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			errorsTotal.WithLabelValues(string(ErrorClassTransport)).Inc()
			requestsTotal.WithLabelValues(route, "circuit_open").Inc()
			return nil, &APIError{
				ErrorClass: ErrorClassTransport,
				Message:    "request rejected",
				Err:        fmt.Errorf("%w: %v", ErrCircuitOpen, err),
			}
		}
		return nil, err
	}
	resp := out.(*http.Response)

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		if cachedEntry == nil {
			return nil, &APIError{ErrorClass: ErrorClassServer, StatusCode: resp.StatusCode, Message: "304 without cached entry"}
		}

		logger.Debug().Str("url", req.URL.String()).Msg("304 Not Modified - using cache")
		if err := c.cache.Refresh(ctx, cacheKey, cachedEntry, resp.Header); err != nil {
			logger.Warn().Err(err).Msg("Failed to refresh cache entry")
		}
		return cache.EntryToResponse(cachedEntry, req), nil
	}

	if useCache && scope.cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			resp.Body.Close()
			return nil, &APIError{ErrorClass: ErrorClassTransport, StatusCode: resp.StatusCode, Message: "read response", Err: err}
		}
		if entry.TTL() > 0 || entry.CanRevalidate() {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				logger.Debug().Str("url", req.URL.String()).Dur("ttl", entry.TTL()).Msg("Cached response")
			}
		}
	}

	return resp, nil
}

// cacheScope is the cache partition of the client's credential.
type cacheScope struct {
	name string

	// perCredential is set when no other credential can share the scope.
	perCredential bool
}

func (s cacheScope) cacheable(resp *http.Response) bool {
	if s.perCredential {
		return cache.CacheablePrivate(resp)
	}
	return cache.Cacheable(resp)
}

// scopeFor resolves the partition for the next request. User tokens are
// keyed by a hash of the refresh token, or of the access token when there is
// none. It reports false when the token cannot be obtained; the request then
// bypasses the cache and fails on its own.
func (c *Client) scopeFor(ctx context.Context) (cacheScope, bool) {
	if c.config.CacheScope != "" {
		return cacheScope{name: c.config.CacheScope}, true
	}

	name := c.flow.Name()
	if name == auth.FlowClientCredentials {
		return cacheScope{name: name}, true
	}

	tok, err := c.flow.Token(ctx)
	if err != nil {
		return cacheScope{}, false
	}
	secret := tok.RefreshToken
	if secret == "" {
		secret = tok.AccessToken
	}
	sum := sha256.Sum256([]byte(secret))
	return cacheScope{name: name + ":" + hex.EncodeToString(sum[:8]), perCredential: true}, true
}

// attempt sends req once.
func (c *Client) attempt(req *http.Request, route string) (*http.Response, error) {
	ctx := req.Context()
	logger := c.loggerFor(ctx)

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			if errors.Is(err, ratelimit.ErrBlocked) {
				requestsTotal.WithLabelValues(route, "rate_limited").Inc()
				return nil, c.fail(ctx, &APIError{ErrorClass: ErrorClassRateLimit, StatusCode: http.StatusTooManyRequests, Message: "blocked by shared rate limit", Err: err}, route)
			}
			if ctx.Err() != nil {
				return nil, &APIError{ErrorClass: ErrorClassTransport, Message: "request cancelled", Err: err}
			}
			logger.Warn().Err(err).Msg("Rate limit check failed")
		}
	}

	tok, err := c.flow.Token(ctx)
	if err != nil {
		return nil, c.fail(ctx, tokenError(err), route)
	}

	attemptReq := req.Clone(ctx)
	tok.SetAuthHeader(attemptReq)

	logger.Debug().
		Str("url", req.URL.String()).
		Str("method", req.Method).
		Msg("Executing API request")

	resp, err := c.httpClient.Do(attemptReq)
	if err != nil {
		requestsTotal.WithLabelValues(route, "network_error").Inc()
		return nil, c.fail(ctx, &APIError{ErrorClass: ErrorClassTransport, Message: "send request", Err: err}, route)
	}

	requestsTotal.WithLabelValues(route, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 400 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()

	apiErr := &APIError{
		ErrorClass: classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    parseErrorMessage(resp.StatusCode, body),
	}

	switch apiErr.ErrorClass {
	case ErrorClassAuth:
		apiErr.Err = auth.ErrTokenInvalid
	case ErrorClassRateLimit:
		if wait, ok := ratelimit.ParseRetryAfter(resp.Header, time.Now()); ok {
			apiErr.RetryAfter = wait
		}
		if c.rateLimiter != nil {
			if _, err := c.rateLimiter.RecordRetryAfter(ctx, resp.Header); err != nil {
				logger.Warn().Err(err).Msg("Failed to record rate limit")
			}
		}
	}

	return nil, c.fail(ctx, apiErr, route)
}

// fail counts and logs a failed attempt.
func (c *Client) fail(ctx context.Context, err *APIError, route string) *APIError {
	errorsTotal.WithLabelValues(string(err.ErrorClass)).Inc()
	logger := c.loggerFor(ctx)
	logger.Warn().
		Str("route", route).
		Int("status_code", err.StatusCode).
		Str("error_class", string(err.ErrorClass)).
		Msg(err.Error())
	return err
}

// loggerFor prefers the logger attached to ctx, e.g. one carrying the
// proxy's request ID.
func (c *Client) loggerFor(ctx context.Context) *zerolog.Logger {
	logger := logging.ForComponent(ctx, "spotify-client", c.logger)
	return &logger
}

// tokenError maps a failed token lookup to an APIError.
func tokenError(err error) *APIError {
	if errors.Is(err, auth.ErrTokenMissing) || errors.Is(err, auth.ErrTokenInvalid) {
		return &APIError{ErrorClass: ErrorClassAuth, Message: "obtain token", Err: err}
	}
	return &APIError{ErrorClass: ErrorClassTransport, Message: "obtain token", Err: err}
}

// idSegments are path segments followed by a resource ID.
var idSegments = map[string]bool{
	"albums": true, "artists": true, "audiobooks": true, "chapters": true, "episodes": true,
	"playlists": true, "shows": true, "tracks": true, "users": true,
}

// routeOf replaces resource IDs in path so metrics stay low-cardinality.
func routeOf(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(segments); i++ {
		if idSegments[segments[i-1]] && segments[i] != "" {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetCache returns the cache manager, nil without Redis.
func (c *Client) GetCache() *cache.Manager {
	return c.cache
}
