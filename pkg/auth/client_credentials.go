package auth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials authenticates the application itself. Tokens carry no user
// scopes and are requested again when they expire.
type ClientCredentials struct {
	source *observedSource
}

// NewClientCredentials creates the flow. No request is made until the first Token call.
func NewClientCredentials(cfg Config) *ClientCredentials {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.endpoint().TokenURL,
		Scopes:       cfg.Scopes,
		AuthStyle:    cfg.endpoint().AuthStyle,
	}

	return &ClientCredentials{
		source: newObservedSource(cc.TokenSource(cfg.tokenContext()), FlowClientCredentials, nil, ""),
	}
}

// Name implements Flow.
func (c *ClientCredentials) Name() string { return FlowClientCredentials }

// Token implements Flow.
func (c *ClientCredentials) Token(ctx context.Context) (*oauth2.Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.source.Token()
}
