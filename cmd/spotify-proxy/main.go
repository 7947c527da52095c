package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/spotify-client/pkg/auth"
	"github.com/Sternrassler/spotify-client/pkg/client"
	"github.com/Sternrassler/spotify-client/pkg/logging"
	"github.com/Sternrassler/spotify-client/pkg/spotify"
	"github.com/caarlos0/env/v7"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type config struct {
	Log            logging.Config
	Port           string        `env:"PORT"                  envDefault:"8080"`
	RedisURL       string        `env:"REDIS_URL"`
	UserAgent      string        `env:"USER_AGENT"            envDefault:"spotify-proxy/0.1.0"`
	ClientID       string        `env:"SPOTIFY_CLIENT_ID,required"`
	ClientSecret   string        `env:"SPOTIFY_CLIENT_SECRET,required"`
	Market         string        `env:"SPOTIFY_MARKET"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT"       envDefault:"30s"`
}

func main() {
	// a missing .env is fine, the environment may be set otherwise
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("redis", cfg.RedisURL).Msg("Failed to connect to Redis")
		}
		defer redisClient.Close()
		logger.Info().Str("redis", cfg.RedisURL).Msg("Connected to Redis")
	}

	flow := auth.NewClientCredentials(auth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
	})

	clientCfg := client.DefaultConfig(flow, cfg.UserAgent)
	clientCfg.Redis = redisClient
	clientCfg.RateLimitScope = cfg.ClientID
	apiClient, err := client.New(clientCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create API client")
	}
	defer apiClient.Close()

	srv := &server{
		spotify: spotify.New(apiClient),
		redis:   redisClient,
		market:  cfg.Market,
		timeout: cfg.RequestTimeout,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Str("user_agent", cfg.UserAgent).Msg("Starting Spotify proxy server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("Server failed")
		os.Exit(1)
	}
}
