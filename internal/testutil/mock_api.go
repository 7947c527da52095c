// Package testutil provides testing utilities for the Spotify client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock API endpoint response.
type MockResponse struct {
	Headers    map[string]string
	Body       string
	StatusCode int
	Delay      time.Duration
}

// MockAPI is a configurable mock Web API server for testing. Besides canned
// responses it serves offset and cursor page chains built from an item list.
type MockAPI struct {
	server   *httptest.Server
	handlers map[string]http.HandlerFunc
	failures map[string][]MockResponse
	paths    map[string]int
	headers  http.Header

	// Tracking
	LastRequestHeader http.Header
	RequestCount      int
	ConditionalCount  int

	mu sync.RWMutex
}

// NewMockAPI creates a new mock API server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		failures: make(map[string][]MockResponse),
		paths:    make(map[string]int),
		headers:  make(http.Header),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.paths[r.URL.Path]++
		mock.LastRequestHeader = r.Header.Clone()

		if r.Header.Get("If-None-Match") != "" {
			mock.ConditionalCount++
		}

		// queued failures are served before the regular handler
		var failure *MockResponse
		if queue := mock.failures[r.URL.Path]; len(queue) > 0 {
			failure = &queue[0]
			mock.failures[r.URL.Path] = queue[1:]
		}
		handler, exists := mock.handlers[r.URL.Path]
		for key, values := range mock.headers {
			w.Header()[key] = values
		}
		mock.mu.Unlock()

		switch {
		case failure != nil:
			writeResponse(w, *failure)
		case exists:
			handler(w, r)
		default:
			writeResponse(w, NewNotFoundResponse())
		}
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking counters and queued failures.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.ConditionalCount = 0
	m.LastRequestHeader = nil
	m.paths = make(map[string]int)
	m.failures = make(map[string][]MockResponse)
}

// SetHandler sets a custom handler for a specific path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetDefaultHeader adds a header to every response, e.g. Cache-Control to
// make page chains cacheable.
func (m *MockAPI) SetDefaultHeader(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers.Set(key, value)
}

// FailNext makes the next len(resps) requests to path return resps in order.
func (m *MockAPI) FailNext(path string, resps ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = append(m.failures[path], resps...)
}

// SetOffsetPages serves items at path as an offset-paginated list. The
// offset and limit query parameters select the window; limit defaults to pageSize.
func (m *MockAPI) SetOffsetPages(path string, pageSize int, items []any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", pageSize)

		end := min(offset+limit, len(items))
		start := min(offset, end)

		page := map[string]any{
			"href":     m.link(path, "offset", offset, limit),
			"limit":    limit,
			"offset":   offset,
			"total":    len(items),
			"items":    items[start:end],
			"next":     nil,
			"previous": nil,
		}
		if end < len(items) {
			page["next"] = m.link(path, "offset", end, limit)
		}
		if offset > 0 {
			page["previous"] = m.link(path, "offset", max(offset-limit, 0), limit)
		}
		writeJSON(w, page)
	})
}

// SetCursorPages serves items at path as a cursor-paginated list. The after
// cursor is the index of the next item. When wrap is set the page is nested
// under that key, as the followed artists endpoint does.
func (m *MockAPI) SetCursorPages(path string, pageSize int, items []any, wrap string) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		after := queryInt(r, "after", 0)
		limit := queryInt(r, "limit", pageSize)

		end := min(after+limit, len(items))
		start := min(after, end)

		cursors := map[string]any{"after": nil}
		page := map[string]any{
			"href":    m.link(path, "after", after, limit),
			"limit":   limit,
			"total":   len(items),
			"items":   items[start:end],
			"next":    nil,
			"cursors": cursors,
		}
		if end < len(items) {
			page["next"] = m.link(path, "after", end, limit)
			cursors["after"] = strconv.Itoa(end)
		}

		if wrap != "" {
			writeJSON(w, map[string]any{wrap: page})
			return
		}
		writeJSON(w, page)
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockAPI) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetPathCount returns the number of requests made to path.
func (m *MockAPI) GetPathCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths[path]
}

// GetConditionalCount returns the number of conditional requests.
func (m *MockAPI) GetConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ConditionalCount
}

func (m *MockAPI) link(path, param string, position, limit int) string {
	return fmt.Sprintf("%s%s?%s=%d&limit=%d", m.server.URL, path, param, position, limit)
}

func queryInt(r *http.Request, name string, fallback int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// NewHealthyResponse creates a standard 200 OK response with a validator.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			"ETag":          `"test-etag-123"`,
			"Cache-Control": "public, max-age=300",
			"Content-Type":  "application/json; charset=utf-8",
		},
	}
}

// NewNotFoundResponse creates a 404 response in the Web API error format.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": {"status": 404, "message": "Non existing id"}}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse(retryAfter string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": {"status": 429, "message": "API rate limit exceeded"}}`,
		Headers: map[string]string{
			"Retry-After":  retryAfter,
			"Content-Type": "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": {"status": 500, "message": "Internal server error"}}`,
		Headers:    map[string]string{"Content-Type": "application/json; charset=utf-8"},
	}
}

// NewConditionalHandler creates a handler that responds with 304 for conditional requests.
func NewConditionalHandler(etag string, data string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=0")

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
