package auth

import "golang.org/x/oauth2"

// Verifier adds proof-of-possession parameters to the authorization code flow.
type Verifier interface {
	// AuthOptions are added to the authorization URL.
	AuthOptions() []oauth2.AuthCodeOption

	// ExchangeOptions are added to the code exchange request.
	ExchangeOptions() []oauth2.AuthCodeOption
}

// PKCE is an RFC 7636 verifier using the S256 challenge method.
type PKCE struct {
	verifier string
}

// NewPKCE generates a fresh random verifier.
func NewPKCE() *PKCE {
	return &PKCE{verifier: oauth2.GenerateVerifier()}
}

// NewPKCEFromVerifier uses an existing verifier, e.g. one kept across a redirect.
func NewPKCEFromVerifier(verifier string) *PKCE {
	return &PKCE{verifier: verifier}
}

// Verifier returns the raw code verifier.
func (p *PKCE) Verifier() string { return p.verifier }

// AuthOptions implements Verifier.
func (p *PKCE) AuthOptions() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{oauth2.S256ChallengeOption(p.verifier)}
}

// ExchangeOptions implements Verifier.
func (p *PKCE) ExchangeOptions() []oauth2.AuthCodeOption {
	return []oauth2.AuthCodeOption{oauth2.VerifierOption(p.verifier)}
}

// NoVerifier is used by confidential clients that authenticate with their secret.
type NoVerifier struct{}

// AuthOptions implements Verifier.
func (NoVerifier) AuthOptions() []oauth2.AuthCodeOption { return nil }

// ExchangeOptions implements Verifier.
func (NoVerifier) ExchangeOptions() []oauth2.AuthCodeOption { return nil }
