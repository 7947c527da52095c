package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/spotify-client/pkg/client"
	"github.com/Sternrassler/spotify-client/pkg/logging"
	"github.com/Sternrassler/spotify-client/pkg/metrics"
	"github.com/Sternrassler/spotify-client/pkg/pagination"
	"github.com/Sternrassler/spotify-client/pkg/spotify"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type server struct {
	spotify *spotify.Service
	redis   *redis.Client
	market  string
	timeout time.Duration
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID, chimiddleware.RealIP, requestLogger, chimiddleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(s.redis))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/albums/{id}/tracks", listHandler(s, s.spotify.AlbumTracks))
	r.Get("/playlists/{id}/items", listHandler(s, s.spotify.PlaylistItems))
	return r
}

// requestLogger attaches a request-scoped logger and logs a summary of every request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger := log.Logger.With().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Logger()

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(logging.WithContext(r.Context(), logger)))

		logger.Info().
			Str("method", r.Method).
			Str("url", r.URL.Path).
			Int("status_code", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("Request completed")
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

type listResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

// listHandler serves a whole list: as one JSON document, or with ?stream=true
// as NDJSON read window by window. A failed window ends the stream with an
// {"error": "..."} line.
func listHandler[T any](s *server, first func(context.Context, string, *spotify.PageOptions) (*pagination.Page[T], error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context())

		opts, err := s.pageOptions(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()

		page, err := first(ctx, chi.URLParam(r, "id"), opts)
		if err != nil {
			logger.Warn().Err(err).Msg("First page request failed")
			writeError(w, statusFor(err), err)
			return
		}

		getter := s.spotify.Getter()

		if stream, _ := strconv.ParseBool(r.URL.Query().Get("stream")); !stream {
			items, err := page.FetchAll(ctx, getter)
			if err != nil {
				logger.Warn().Err(err).Msg("Fetching list failed")
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusOK, listResponse[T]{Items: items, Total: len(items)})
			return
		}

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		enc := json.NewEncoder(w)

		count := 0
		for item, err := range page.Iter(getter).All(ctx) {
			if err != nil {
				logger.Warn().Err(err).Int("items", count).Msg("Stream ended by failed window")
				enc.Encode(map[string]string{"error": err.Error()})
				return
			}
			if err := enc.Encode(item); err != nil {
				logger.Debug().Err(err).Msg("Client went away")
				return
			}
			count++
			if flusher != nil {
				flusher.Flush()
			}
		}
		logger.Debug().Int("items", count).Msg("Stream complete")
	}
}

func (s *server) pageOptions(r *http.Request) (*spotify.PageOptions, error) {
	q := r.URL.Query()
	opts := &spotify.PageOptions{Market: s.market}

	if m := q.Get("market"); m != "" {
		opts.Market = m
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid limit %q", v)
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid offset %q", v)
		}
		opts.Offset = n
	}
	return opts, nil
}

// statusFor maps a client error to the status the proxy answers with.
func statusFor(err error) int {
	if errors.Is(err, spotify.ErrInvalidOptions) {
		return http.StatusBadRequest
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}

	switch client.ClassOf(err) {
	case client.ErrorClassClient:
		if status := client.StatusOf(err); status == http.StatusNotFound || status == http.StatusBadRequest {
			return status
		}
		return http.StatusBadGateway
	case client.ErrorClassRateLimit:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
