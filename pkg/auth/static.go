package auth

import (
	"context"

	"golang.org/x/oauth2"
)

// Static serves a token obtained elsewhere. It never refreshes.
type Static struct {
	token *oauth2.Token
}

// NewStatic wraps an access token. A zero expiry means the token never expires locally.
func NewStatic(tok *oauth2.Token) *Static {
	return &Static{token: tok}
}

// NewStaticAccessToken wraps a bare bearer token.
func NewStaticAccessToken(accessToken string) *Static {
	return NewStatic(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

// Name implements Flow.
func (s *Static) Name() string { return FlowStatic }

// Token implements Flow.
func (s *Static) Token(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.token == nil || s.token.AccessToken == "" {
		return nil, ErrTokenMissing
	}
	if !s.token.Valid() {
		return nil, ErrTokenInvalid
	}
	return s.token, nil
}
