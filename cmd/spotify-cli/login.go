package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/Sternrassler/spotify-client/pkg/auth"
	"github.com/Sternrassler/spotify-client/pkg/logging"
	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize the tool for your account (authorization code with PKCE)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := a.authorizationCode(auth.NewPKCE())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if err := login(ctx, flow, a.config.RedirectURL, func(authURL string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser to log in:\n\n  %s\n\n", authURL)
			}); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "How long to wait for the browser callback")
	return cmd
}

// login serves the redirect URL locally, shows the authorization URL and
// waits for the callback that completes the exchange.
func login(ctx context.Context, flow *auth.AuthorizationCode, redirectURL string, show func(authURL string)) error {
	redirect, err := url.Parse(redirectURL)
	if err != nil {
		return fmt.Errorf("parse redirect URL: %w", err)
	}

	state, err := randomState()
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", redirect.Host, err)
	}

	results := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle(redirect.Path, callbackHandler(flow, state, results))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go srv.Serve(listener)
	defer srv.Close()

	show(flow.AuthURL(state))

	select {
	case err := <-results:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}
}

// callbackHandler completes the flow and reports the outcome on results.
// Requests that do not carry the expected state, or carry neither a code nor
// a provider error, are answered with 400 and login keeps waiting.
func callbackHandler(flow *auth.AuthorizationCode, state string, results chan<- error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := logging.FromContext(r.Context())
		q := r.URL.Query()

		if q.Get("state") != state {
			logger.Warn().Err(auth.ErrStateMismatch).Msg("Ignoring authorization callback")
			http.Error(w, "Login failed: "+auth.ErrStateMismatch.Error(), http.StatusBadRequest)
			return
		}

		var err error
		switch reason, code := q.Get("error"), q.Get("code"); {
		case reason != "":
			err = fmt.Errorf("authorization denied: %s", reason)
			http.Error(w, "Login failed: "+err.Error(), http.StatusBadRequest)
		case code == "":
			logger.Warn().Msg("Ignoring authorization callback without code")
			http.Error(w, "Login failed: callback without code", http.StatusBadRequest)
			return
		default:
			err = flow.CompleteCallback(r.Context(), state, q.Get("state"), code)
			if err != nil {
				http.Error(w, "Login failed: "+err.Error(), http.StatusBadGateway)
			} else {
				fmt.Fprintln(w, "Login complete, you can close this window.")
			}
		}

		if err != nil {
			logger.Warn().Err(err).Msg("Authorization callback failed")
		}

		select {
		case results <- err:
		default:
		}
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
