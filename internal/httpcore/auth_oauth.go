package httpcore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"golang.org/x/oauth2"

	"github.com/latticeiam/aclnet/internal/tokenfile"
)

// OAuthOptions configures the OAuth2 authenticator (spec.md §3's "OAuth
// options"): client registration plus the endpoint to hit.
type OAuthOptions struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	// TokenPath is where the refresh/access token is persisted between runs.
	TokenPath string
}

// OAuthAuthenticator is the OAuth variant from spec.md §4.5: authorize sets
// a bearer header when a token is cached, login fetches a fresh token
// (browser flow if interactive, cached refresh token otherwise), logout
// clears the cached token and purges the on-disk file.
type OAuthAuthenticator struct {
	lockedSlot

	Host    string
	Opts    OAuthOptions
	OpenURL func(string) error
	Logger  *slog.Logger

	token *oauth2.Token
}

// NewOAuthAuthenticator builds an OAuth authenticator for host. If a token
// already exists on disk at opts.TokenPath, it is loaded eagerly so the
// first Authorize call doesn't require a Login.
func NewOAuthAuthenticator(host string, opts OAuthOptions, openURL func(string) error, logger *slog.Logger) *OAuthAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}

	a := &OAuthAuthenticator{Host: host, Opts: opts, OpenURL: openURL, Logger: logger}

	if opts.TokenPath != "" {
		if tok, _, err := tokenfile.Load(opts.TokenPath); err == nil && tok != nil {
			a.token = tok
		}
	}

	return a
}

func (a *OAuthAuthenticator) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     a.Opts.ClientID,
		ClientSecret: a.Opts.ClientSecret,
		Scopes:       a.Opts.Scopes,
		Endpoint:     oauth2.Endpoint{AuthURL: a.Opts.AuthURL, TokenURL: a.Opts.TokenURL},
		// Persist every silently-refreshed token, matching the teacher's
		// OnTokenChange wiring in auth.go.
		OnTokenChange: func(tok *oauth2.Token) {
			a.persist(tok)
		},
	}
}

// Authorize sets Authorization: Bearer <token> if a token is cached.
// Idempotent: repeated calls just re-set the same header value.
func (a *OAuthAuthenticator) Authorize(req *HttpRequest) {
	a.mu.Lock()
	tok := a.token
	a.mu.Unlock()

	if tok == nil || tok.AccessToken == "" {
		return
	}

	if req.Headers == nil {
		req.Headers = Header{}
	}

	req.Headers.Set("Authorization", "Bearer "+tok.AccessToken)
}

// Login refreshes the access token from the cached refresh token via
// oauth2's TokenSource (silent refresh) and reports true on success. When
// that fails, interactive calls open the authorization URL through OpenURL
// and report false: Login itself never obtains a token from the browser
// flow; only ExchangeCode installs one.
func (a *OAuthAuthenticator) Login(interactive bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != nil && a.token.RefreshToken != "" {
		cfg := a.config()
		src := cfg.TokenSource(context.Background(), a.token)

		if fresh, err := src.Token(); err == nil {
			a.token = fresh
			a.persist(fresh)

			return true
		}
	}

	if !interactive {
		return false
	}

	if a.OpenURL == nil {
		a.Logger.Warn("interactive oauth login requires an OpenURL callback", slog.String("host", a.Host))
		return false
	}

	return a.interactiveLoginLocked()
}

// interactiveLoginLocked presents the authorization-code URL through
// OpenURL (printing it to stderr if that fails). It starts no callback
// listener and captures no code, so it always reports false; a token is
// installed only when a caller passes the resulting code to ExchangeCode.
func (a *OAuthAuthenticator) interactiveLoginLocked() bool {
	authURL := a.config().AuthCodeURL("state", oauth2.AccessTypeOffline)

	if err := a.OpenURL(authURL); err != nil {
		a.Logger.Warn("opening browser for oauth login failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "Open this URL to authorize: %s\n", authURL)
	}

	// Login(true) cannot block on a network callback without a receiver,
	// so it reports the URL was presented and leaves token installation to
	// ExchangeCode.
	return false
}

// ExchangeCode completes an interactive login once the caller has captured
// an authorization code (e.g. from a local HTTP callback in the CLI).
func (a *OAuthAuthenticator) ExchangeCode(ctx context.Context, code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tok, err := a.config().Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("httpcore: exchanging oauth code: %w", err)
	}

	a.token = tok
	a.persist(tok)

	return nil
}

// Logout clears the cached token and purges the on-disk file (spec.md §4.5).
func (a *OAuthAuthenticator) Logout() {
	a.mu.Lock()
	a.token = nil
	a.mu.Unlock()

	if a.Opts.TokenPath == "" {
		return
	}

	if err := os.Remove(a.Opts.TokenPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.Logger.Warn("removing oauth token file", slog.String("path", a.Opts.TokenPath), slog.String("error", err.Error()))
	}
}

func (a *OAuthAuthenticator) persist(tok *oauth2.Token) {
	if a.Opts.TokenPath == "" {
		return
	}

	if err := tokenfile.Save(a.Opts.TokenPath, tok, map[string]string{"host": a.Host}); err != nil {
		a.Logger.Warn("persisting oauth token", slog.String("error", err.Error()))
		return
	}

	a.Logger.Debug("persisted oauth token", slog.String("path", a.Opts.TokenPath), slog.Time("expiry", tok.Expiry))
}
