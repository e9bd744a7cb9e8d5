package httpcore

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// KeyringHandle abstracts the system keyring lookup for cached interactive
// credentials (spec.md §4.5: "Credentials may be sourced from a system
// keyring"). Kept as a narrow interface so tests substitute an in-memory
// fake instead of touching the real OS keyring.
type KeyringHandle interface {
	Credentials(host string) (email, password string, ok bool)
}

// InteractiveLoginFunc performs the cookie-issuing handshake for host and
// returns the cookies to install, or an error. Implementations MUST NOT
// follow HTTP 302 redirects — the redirect carries the auth state itself
// (spec.md §4.5).
type InteractiveLoginFunc func(ctx context.Context, host string, email, password string) ([]*http.Cookie, error)

// CookieAuthenticator is the Cookie variant from spec.md §4.5: authorize
// copies jar cookies onto the request; login(false) never succeeds on its
// own (there is no silent cookie refresh); login(true) runs an interactive
// handshake gated by isInteractive so CI/cron callers fail fast instead of
// hanging on a prompt.
type CookieAuthenticator struct {
	lockedSlot

	Host    string
	Jar     *PersistentCookieJar
	Keyring KeyringHandle
	Login2  InteractiveLoginFunc
	Logger  *slog.Logger

	email, password string
	haveCreds       bool
}

// NewCookieAuthenticator builds a Cookie authenticator bound to host and jar.
func NewCookieAuthenticator(host string, jar *PersistentCookieJar, keyring KeyringHandle, login InteractiveLoginFunc, logger *slog.Logger) *CookieAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}

	return &CookieAuthenticator{Host: host, Jar: jar, Keyring: keyring, Login2: login, Logger: logger}
}

// Authorize copies all applicable jar cookies into req's per-request cookie
// container. Idempotent: re-running on the same request just re-copies the
// current jar contents.
func (c *CookieAuthenticator) Authorize(req *HttpRequest) {
	cookies := c.Jar.CookiesFor(c.Host)

	u, err := url.Parse("https://" + c.Host + "/")
	if err != nil {
		return
	}

	req.Cookies().SetCookies(u, cookies)
}

// Login never refreshes silently; non-interactive calls always report
// failure (spec.md §4.5: "login(interactive=false) returns false
// immediately"). Interactive calls run the keyring-backed handshake, but
// refuse to prompt when stdin/stdout aren't a terminal (DOMAIN STACK:
// go-isatty), matching how the rest of the pack gates interactive UX.
func (c *CookieAuthenticator) Login(interactive bool) bool {
	if !interactive {
		return false
	}

	if !isInteractiveTerminal() {
		c.Logger.Warn("cookie login requires an interactive terminal", slog.String("host", c.Host))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	email, password, ok := c.credentialsLocked()
	if !ok {
		c.Logger.Warn("no cached credentials for interactive cookie login", slog.String("host", c.Host))
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cookies, err := c.Login2(ctx, c.Host, email, password)
	if err != nil {
		c.Logger.Warn("interactive cookie login failed", slog.String("host", c.Host), slog.String("error", err.Error()))
		return false
	}

	c.Jar.SetCookies(c.Host, cookies)

	if err := c.Jar.Save(); err != nil {
		c.Logger.Warn("saving cookie jar after login", slog.String("error", err.Error()))
	}

	return true
}

// Logout clears cookies for this authenticator's host domain (spec.md §4.5).
func (c *CookieAuthenticator) Logout() {
	c.Jar.ClearDomain(c.Host)

	if err := c.Jar.Save(); err != nil {
		c.Logger.Warn("saving cookie jar after logout", slog.String("error", err.Error()))
	}
}

func (c *CookieAuthenticator) credentialsLocked() (string, string, bool) {
	if c.haveCreds {
		return c.email, c.password, true
	}

	if c.Keyring == nil {
		return "", "", false
	}

	email, password, ok := c.Keyring.Credentials(c.Host)
	if ok {
		c.email, c.password, c.haveCreds = email, password, true
	}

	return email, password, ok
}

// isInteractiveTerminal reports whether both stdin and stdout are terminals.
func isInteractiveTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) && isatty.IsTerminal(os.Stdout.Fd())
}
