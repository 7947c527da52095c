// Package metrics exposes the Prometheus metrics of the Spotify client.
// All metrics are defined in their respective packages (auth, client, cache,
// ratelimit, pagination) to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP handler and a reference of all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the Spotify client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source Handler serves.
var Gatherer = prometheus.DefaultGatherer

// Handler serves all registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Auth Metrics (pkg/auth):
//   - spotify_tokens_issued_total{flow} (Counter): Access tokens obtained by grant or refresh
//
// Request Metrics (pkg/client):
//   - spotify_requests_total{route, status} (Counter): Requests by route and HTTP status
//   - spotify_request_duration_seconds{route} (Histogram): Request duration by route
//   - spotify_errors_total{class} (Counter): Errors by class (transport, auth, decode, client, server, rate_limit)
//   - spotify_circuit_breaker_state (Gauge): 0 closed, 1 half-open, 2 open
//
// Retry Metrics (pkg/client):
//   - spotify_retries_total{error_class} (Counter): Retry attempts by error class
//   - spotify_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - spotify_retry_exhausted_total{error_class} (Counter): Requests that exhausted their retries
//
// Rate Limit Metrics (pkg/ratelimit):
//   - spotify_rate_limited_responses_total (Counter): 429 responses recorded
//   - spotify_rate_limit_blocks_total (Counter): Requests held back by the shared block
//   - spotify_rate_limit_throttles_total (Counter): Requests delayed after repeated 429s
//   - spotify_rate_limit_wait_seconds (Histogram): Time spent waiting for the limiter
//
// Cache Metrics (pkg/cache):
//   - spotify_cache_hits_total{state} (Counter): Cache hits, fresh or stale
//   - spotify_cache_misses_total (Counter): Cache misses
//   - spotify_cache_written_bytes_total (Counter): Bytes written to the cache
//   - spotify_conditional_requests_total (Counter): Requests sent with If-None-Match
//   - spotify_304_responses_total (Counter): 304 Not Modified responses
//   - spotify_cache_errors_total{operation} (Counter): Cache operation errors
//
// Pagination Metrics (pkg/pagination):
//   - spotify_pages_fetched_total{kind} (Counter): Pages fetched through next/previous links
//   - spotify_page_fetch_errors_total{kind} (Counter): Failed page fetches
//   - spotify_page_drains_total{kind, result} (Counter): Eager drains of a page chain
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(spotify_cache_hits_total[5m])) /
//   (sum(rate(spotify_cache_hits_total[5m])) + sum(rate(spotify_cache_misses_total[5m])))
//
//   # Rate Limited Share
//   rate(spotify_rate_limited_responses_total[5m]) / sum(rate(spotify_requests_total[5m]))
//
//   # Request Error Rate
//   rate(spotify_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(spotify_request_duration_seconds_bucket[5m]))
//
//   # Pages per Drain
//   rate(spotify_pages_fetched_total[5m]) / rate(spotify_page_drains_total[5m])
