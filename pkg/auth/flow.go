// Package auth supplies credentials to the API client.
//
// A Flow is one grant type (client credentials, authorization code, a static
// token). The client is built with exactly one Flow and asks it for a valid
// token before every request; acquiring and refreshing tokens stays behind
// this interface.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/Sternrassler/spotify-client/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

var (
	// ErrTokenMissing is returned when no credential has been obtained yet.
	ErrTokenMissing = errors.New("no token available")

	// ErrTokenInvalid is returned when a credential is expired, revoked or could not be refreshed.
	ErrTokenInvalid = errors.New("token invalid or expired")

	// ErrStateMismatch is returned when an authorization callback carries an unexpected state.
	ErrStateMismatch = errors.New("oauth2 state mismatch")
)

var tokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "spotify_tokens_issued_total",
	Help: "Total access tokens obtained (initial grant or refresh) by flow",
}, []string{"flow"})

// Flow names.
const (
	FlowClientCredentials = "client_credentials"
	FlowAuthorizationCode = "authorization_code"
	FlowStatic            = "static"
)

// Flow yields the token to put on the next request.
type Flow interface {
	// Name identifies the flow in logs, metrics and cache keys.
	Name() string

	// Token returns a valid token, refreshing it when needed.
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Config holds the application credentials shared by the OAuth2 flows.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// Endpoint defaults to the Spotify accounts service.
	Endpoint oauth2.Endpoint

	// HTTPClient is used for token requests (default: http.DefaultClient).
	HTTPClient *http.Client
}

func (c Config) endpoint() oauth2.Endpoint {
	if c.Endpoint.TokenURL == "" {
		return endpoints.Spotify
	}
	return c.Endpoint
}

// tokenContext is the context token sources keep for their refresh requests.
func (c Config) tokenContext() context.Context {
	ctx := context.Background()
	if c.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTPClient)
	}
	return ctx
}

// classifyTokenError marks every token failure except an unreachable token
// endpoint as ErrTokenInvalid (rejected grant, revoked or missing refresh token).
func classifyTokenError(err error) error {
	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return fmt.Errorf("obtain token: %w", err)
	}
	return fmt.Errorf("%w: %w", ErrTokenInvalid, err)
}

// observedSource counts newly issued tokens and hands them to an optional store.
type observedSource struct {
	src    oauth2.TokenSource
	flow   string
	store  TokenStore
	key    string
	logger zerolog.Logger

	mu   sync.Mutex
	last string
}

func newObservedSource(src oauth2.TokenSource, flow string, store TokenStore, key string) *observedSource {
	return &observedSource{
		src:    src,
		flow:   flow,
		store:  store,
		key:    key,
		logger: logging.NewLogger("auth").With().Str("flow", flow).Logger(),
	}
}

// seed records tok as already known, so it is not counted or stored again.
func (o *observedSource) seed(tok *oauth2.Token) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.last = tok.AccessToken
}

func (o *observedSource) Token() (*oauth2.Token, error) {
	tok, err := o.src.Token()
	if err != nil {
		return nil, classifyTokenError(err)
	}

	o.mu.Lock()
	fresh := tok.AccessToken != o.last
	o.last = tok.AccessToken
	o.mu.Unlock()

	if !fresh {
		return tok, nil
	}

	tokensIssued.WithLabelValues(o.flow).Inc()
	o.logger.Debug().Time("expiry", tok.Expiry).Msg("Obtained new access token")

	if o.store != nil {
		if err := o.store.Save(context.Background(), o.key, tok); err != nil {
			o.logger.Warn().Err(err).Msg("Failed to persist token")
		}
	}
	return tok, nil
}
