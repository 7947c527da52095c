package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sternrassler/spotify-client/pkg/auth"
	"github.com/Sternrassler/spotify-client/pkg/client"
	"github.com/Sternrassler/spotify-client/pkg/logging"
	"github.com/Sternrassler/spotify-client/pkg/spotify"
	"github.com/caarlos0/env/v7"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// scopes covers every command of the tool.
var scopes = []string{
	"user-library-read",
	"user-read-recently-played",
	"user-follow-read",
	"playlist-read-private",
}

type config struct {
	Log          logging.Config
	ClientID     string `env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
	RedirectURL  string `env:"SPOTIFY_REDIRECT_URL" envDefault:"http://127.0.0.1:8888/callback"`
	AccessToken  string `env:"SPOTIFY_ACCESS_TOKEN"`
	RedisURL     string `env:"REDIS_URL"`
	TokenDir     string `env:"SPOTIFY_TOKEN_DIR"`
	APIURL       string `env:"SPOTIFY_API_URL"      envDefault:"https://api.spotify.com/v1"`
	Market       string `env:"SPOTIFY_MARKET"`
	UserAgent    string `env:"USER_AGENT"           envDefault:"spotify-cli/0.1.0"`
}

// app holds what the commands share. It is filled in PersistentPreRunE.
type app struct {
	config config
	redis  *redis.Client
}

func (a *app) load(cmd *cobra.Command) error {
	if err := env.Parse(&a.config); err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	flags := cmd.Flags()
	if v, _ := flags.GetString("token"); v != "" {
		a.config.AccessToken = v
	}
	if v, _ := flags.GetString("api-url"); v != "" {
		a.config.APIURL = v
	}
	if v, _ := flags.GetString("market"); v != "" {
		a.config.Market = v
	}

	a.config.Log.Output = cmd.ErrOrStderr()
	logging.Setup(a.config.Log)

	if a.config.RedisURL != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: a.config.RedisURL})
	}
	return nil
}

func (a *app) close() {
	if a.redis != nil {
		a.redis.Close()
	}
}

// store keeps user tokens in Redis when configured, on disk otherwise.
func (a *app) store() (auth.TokenStore, error) {
	if a.redis != nil {
		return auth.NewRedisTokenStore(a.redis), nil
	}

	dir := a.config.TokenDir
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locate token directory: %w", err)
		}
		dir = filepath.Join(base, "spotify-cli")
	}
	return auth.NewFileTokenStore(dir), nil
}

func (a *app) authorizationCode(verifier auth.Verifier) (*auth.AuthorizationCode, error) {
	if a.config.ClientID == "" {
		return nil, errors.New("SPOTIFY_CLIENT_ID is not set")
	}

	store, err := a.store()
	if err != nil {
		return nil, err
	}

	return auth.NewAuthorizationCode(auth.Config{
		ClientID:     a.config.ClientID,
		ClientSecret: a.config.ClientSecret,
		RedirectURL:  a.config.RedirectURL,
		Scopes:       scopes,
	}, verifier, store), nil
}

// flow returns the static token when one is given, otherwise the user
// session saved by the login command.
func (a *app) flow(ctx context.Context) (auth.Flow, error) {
	if a.config.AccessToken != "" {
		return auth.NewStaticAccessToken(a.config.AccessToken), nil
	}

	flow, err := a.authorizationCode(auth.NoVerifier{})
	if err != nil {
		return nil, err
	}
	if err := flow.Restore(ctx); err != nil {
		if errors.Is(err, auth.ErrTokenMissing) {
			return nil, errors.New("not logged in, run the login command first")
		}
		return nil, err
	}
	return flow, nil
}

func (a *app) service(ctx context.Context) (*spotify.Service, func(), error) {
	flow, err := a.flow(ctx)
	if err != nil {
		return nil, nil, err
	}

	cfg := client.DefaultConfig(flow, a.config.UserAgent)
	cfg.BaseURL = a.config.APIURL
	cfg.Redis = a.redis
	cfg.RateLimitScope = a.config.ClientID

	c, err := client.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return spotify.New(c), func() { c.Close() }, nil
}
