package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
)

// AuthorizationCode acts on behalf of a user who granted access in the browser.
//
// The flow starts without a token: send the user to AuthURL, then pass the
// returned code to Exchange. Alternatively Restore loads a token saved by an
// earlier session. Refreshed tokens are written back to the store.
type AuthorizationCode struct {
	config   oauth2.Config
	verifier Verifier
	store    TokenStore
	base     context.Context

	mu     sync.RWMutex
	source *observedSource
}

// NewAuthorizationCode creates the flow. verifier may be NoVerifier{} for
// confidential clients; store may be nil.
func NewAuthorizationCode(cfg Config, verifier Verifier, store TokenStore) *AuthorizationCode {
	if verifier == nil {
		verifier = NoVerifier{}
	}

	return &AuthorizationCode{
		config: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.endpoint(),
		},
		verifier: verifier,
		store:    store,
		base:     cfg.tokenContext(),
	}
}

// Name implements Flow.
func (a *AuthorizationCode) Name() string { return FlowAuthorizationCode }

// StoreKey is the key tokens of this application are saved under.
func (a *AuthorizationCode) StoreKey() string {
	return "spotify:token:" + a.config.ClientID
}

// AuthURL returns the URL the user must visit to grant access.
func (a *AuthorizationCode) AuthURL(state string) string {
	return a.config.AuthCodeURL(state, a.verifier.AuthOptions()...)
}

// Exchange trades an authorization code for a token and installs it.
func (a *AuthorizationCode) Exchange(ctx context.Context, code string) error {
	if v := ctx.Value(oauth2.HTTPClient); v == nil {
		if hc := a.base.Value(oauth2.HTTPClient); hc != nil {
			ctx = context.WithValue(ctx, oauth2.HTTPClient, hc)
		}
	}

	tok, err := a.config.Exchange(ctx, code, a.verifier.ExchangeOptions()...)
	if err != nil {
		return classifyTokenError(err)
	}

	a.install(tok)
	tokensIssued.WithLabelValues(FlowAuthorizationCode).Inc()

	if a.store != nil {
		if err := a.store.Save(ctx, a.StoreKey(), tok); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
	}
	return nil
}

// Restore installs the token saved by a previous session.
// It returns ErrTokenMissing when the store holds none.
func (a *AuthorizationCode) Restore(ctx context.Context) error {
	if a.store == nil {
		return ErrTokenMissing
	}

	tok, err := a.store.Load(ctx, a.StoreKey())
	if err != nil {
		return err
	}

	a.install(tok)
	return nil
}

// CompleteCallback checks the state returned to the redirect URL and exchanges the code.
func (a *AuthorizationCode) CompleteCallback(ctx context.Context, wantState, gotState, code string) error {
	if wantState != gotState {
		return ErrStateMismatch
	}
	if code == "" {
		return errors.New("authorization callback without code")
	}
	return a.Exchange(ctx, code)
}

func (a *AuthorizationCode) install(tok *oauth2.Token) {
	src := newObservedSource(a.config.TokenSource(a.base, tok), FlowAuthorizationCode, a.store, a.StoreKey())
	src.seed(tok)

	a.mu.Lock()
	a.source = src
	a.mu.Unlock()
}

// Token implements Flow. It returns ErrTokenMissing before Exchange or Restore.
func (a *AuthorizationCode) Token(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	src := a.source
	a.mu.RUnlock()

	if src == nil {
		return nil, ErrTokenMissing
	}
	return src.Token()
}
