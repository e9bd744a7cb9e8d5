package httpcore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// AuthMethod selects which Authenticator variant a host uses.
type AuthMethod string

const (
	AuthOAuth  AuthMethod = "oauth"
	AuthCookie AuthMethod = "cookie"
	AuthBot    AuthMethod = "bot" // bearer-token service account, modeled as OAuth with a pre-seeded token
	AuthNone   AuthMethod = "none"
)

// signedURLHostPattern matches spec.md §6/§9's signed-cloud-storage bypass:
// "*.storage.googleapis.com". Kept as a package var (not a const) so tests
// can substitute alternative cloud hosts per the §9 design note.
var signedURLHostPattern = regexp.MustCompile(`^[a-z0-9.-]+\.storage\.googleapis\.com$`)

// IsSignedURLHost reports whether host carries its own auth in the query
// string (spec.md Glossary: "Signed URL host"). Such hosts get no
// authenticator and no retry-count query parameter.
func IsSignedURLHost(host string) bool {
	return signedURLHostPattern.MatchString(strings.ToLower(host))
}

// ClientContext is the explicit, non-global carrier for every per-process
// registry spec.md §3/§9 describes (host→service map, cookie jar, CA bundle,
// auth config). Per the §9 design note, this removes global mutable state
// while the package-level url_open/url_read/ConfigureAuth helpers retain
// call-site ergonomics over a process-default instance.
type ClientContext struct {
	Logger *slog.Logger

	enginesMu sync.Mutex
	engines   map[string]*Engine // one shared engine, stored under key ""

	networkMu   sync.Mutex
	networkOpts EngineOptions

	servicesMu sync.Mutex
	services   map[string]*Service
	inflight   singleflight.Group

	jarOnce sync.Once
	jar     *PersistentCookieJar
	jarPath string

	authMu      sync.Mutex // serializes interactive logins process-wide
	defaultAuth AuthMethod
	perHostAuth map[string]AuthMethod
	oauthOpts   OAuthOptions
	keyring     KeyringHandle
	openURL     func(string) error
	cookieLogin InteractiveLoginFunc
}

// NewClientContext builds an empty context. cookiePath is typically
// DefaultCookiePath(); pass "" to disable the persistent jar (e.g. tests).
func NewClientContext(cookiePath string, logger *slog.Logger) *ClientContext {
	if logger == nil {
		logger = slog.Default()
	}

	return &ClientContext{
		Logger:      logger,
		engines:     make(map[string]*Engine),
		services:    make(map[string]*Service),
		perHostAuth: make(map[string]AuthMethod),
		defaultAuth: AuthNone,
		jarPath:     cookiePath,
	}
}

// NormalizeHost lowercases and strips trailing slashes, giving Service
// identity per spec.md §3.
func NormalizeHost(host string) string {
	return strings.TrimRight(strings.ToLower(host), "/")
}

// CookieJar lazily initializes the singleton persistent cookie jar, guarded
// by its own once (spec.md §5: "Cookie jar ... singletons: lazily
// initialized under their own mutexes").
func (c *ClientContext) CookieJar() *PersistentCookieJar {
	c.jarOnce.Do(func() {
		c.jar = NewPersistentCookieJar(c.jarPath)
		if err := c.jar.Load(); err != nil {
			c.Logger.Warn("loading cookie jar", slog.String("error", err.Error()))
		}
	})

	return c.jar
}

// ConfigureAuth installs the auth policy (spec.md §6): default method,
// per-host overrides, and OAuth client options. Last write wins per host;
// configuring distinct hosts is commutative (spec.md §8).
func (c *ClientContext) ConfigureAuth(defaultMethod AuthMethod, perHost map[string]AuthMethod, oauthOpts OAuthOptions) {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if defaultMethod != "" {
		c.defaultAuth = defaultMethod
	}

	for host, method := range perHost {
		c.perHostAuth[NormalizeHost(host)] = method
	}

	c.oauthOpts = oauthOpts
}

// Login drives auth.Login(interactive), serializing interactive logins
// process-wide via authMu (spec.md §4.5: "A process-global auth lock
// serializes all interactive logins across all services so the user sees
// at most one prompt at a time"). Non-interactive (opportunistic) logins
// bypass the lock entirely — per spec.md §5/§9's design note, the lock is
// held only around the interactive refresh, not every reauth attempt, so
// concurrent requests can each retry their own silent refresh without
// blocking on one another.
func (c *ClientContext) Login(auth Authenticator, interactive bool) bool {
	if interactive {
		c.authMu.Lock()
		defer c.authMu.Unlock()
	}

	return auth.Login(interactive)
}

// SetKeyring and SetOpenURL / SetCookieLogin wire the interactive
// collaborators used by the Cookie/OAuth authenticators. Optional; a
// Service built without them simply can't complete an interactive login.
func (c *ClientContext) SetKeyring(k KeyringHandle)              { c.keyring = k }
func (c *ClientContext) SetOpenURL(f func(string) error)         { c.openURL = f }
func (c *ClientContext) SetCookieLogin(f InteractiveLoginFunc)   { c.cookieLogin = f }

// GetService returns the cached Service for host, building it on first
// lookup (spec.md §3: "created on first lookup for its host and retained
// for the process", §8: "idempotent"). Concurrent first lookups for the
// same uninitialized host are collapsed via singleflight so only one
// Service/Engine pair is constructed under contention.
func (c *ClientContext) GetService(host string) (*Service, error) {
	host = NormalizeHost(host)

	c.servicesMu.Lock()
	if svc, ok := c.services[host]; ok {
		c.servicesMu.Unlock()
		return svc, nil
	}
	c.servicesMu.Unlock()

	result, err, _ := c.inflight.Do(host, func() (any, error) {
		return c.buildService(host)
	})
	if err != nil {
		return nil, err
	}

	return result.(*Service), nil
}

func (c *ClientContext) buildService(host string) (*Service, error) {
	c.servicesMu.Lock()
	if svc, ok := c.services[host]; ok {
		c.servicesMu.Unlock()
		return svc, nil
	}
	c.servicesMu.Unlock()

	engine, err := c.engineFor(host)
	if err != nil {
		return nil, err
	}

	signedURL := IsSignedURLHost(host)

	var auth Authenticator

	useCountKey := !signedURL

	if signedURL {
		auth = NoneAuthenticator{}
	} else {
		auth = c.authenticatorFor(host)
	}

	svc := NewService(host, engine, auth, useCountKey, c.Logger)

	c.servicesMu.Lock()
	c.services[host] = svc
	c.servicesMu.Unlock()

	return svc, nil
}

func (c *ClientContext) engineFor(host string) (*Engine, error) {
	_ = host // engines are currently keyed by CA bundle only, not per host

	c.enginesMu.Lock()
	defer c.enginesMu.Unlock()

	if e, ok := c.engines[""]; ok {
		return e, nil
	}

	c.networkMu.Lock()
	opts := c.networkOpts
	c.networkMu.Unlock()

	e, err := NewEngine(opts)
	if err != nil {
		return nil, err
	}

	c.engines[""] = e

	return e, nil
}

func (c *ClientContext) authenticatorFor(host string) Authenticator {
	c.authMu.Lock()
	method := c.defaultAuth
	if m, ok := c.perHostAuth[host]; ok {
		method = m
	}
	oauthOpts := c.oauthOpts
	c.authMu.Unlock()

	switch method {
	case AuthCookie:
		return NewCookieAuthenticator(host, c.CookieJar(), c.keyring, c.cookieLogin, c.Logger)
	case AuthOAuth, AuthBot:
		opts := oauthOpts
		if opts.TokenPath == "" {
			opts.TokenPath = defaultTokenPathFor(host)
		}

		return NewOAuthAuthenticator(host, opts, c.openURL, c.Logger)
	default:
		return NoneAuthenticator{}
	}
}

// ServiceStatus is a read-only snapshot of one cached Service, for the
// diagnostic CLI endpoint.
type ServiceStatus struct {
	Host        string
	UseCountKey bool
}

// Snapshot lists every Service built so far in this context, for the
// /status page of "aclnetctl serve".
func (c *ClientContext) Snapshot() []ServiceStatus {
	c.servicesMu.Lock()
	defer c.servicesMu.Unlock()

	out := make([]ServiceStatus, 0, len(c.services))
	for host, svc := range c.services {
		out = append(out, ServiceStatus{Host: host, UseCountKey: svc.UseCountKey})
	}

	return out
}

func defaultTokenPathFor(host string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return home + "/.aclnet/tokens/" + host + ".json"
}

// URLOpenBuffered is the ClientContext-scoped counterpart of the
// package-level URLRead convenience function, for callers (like the CLI)
// that hold an explicit ClientContext instead of using the process default.
func (c *ClientContext) URLOpenBuffered(ctx context.Context, rawURL string, opts RequestOptions) ([]byte, error) {
	opts.HasStream = true
	opts.Stream = false

	resp, err := c.urlOpen(ctx, rawURL, opts)
	if err != nil {
		return nil, err
	}

	if resp == nil {
		return nil, nil //nolint:nilnil // "None" on failure is the spec'd contract
	}

	defer resp.Close()

	return resp.Read(0)
}

// urlOpen is the shared implementation of the package-level url_open
// convenience function and URLOpenBuffered: it splits the URL, looks up the
// host's Service and calls Service.Request (spec.md §6's "split URL ->
// get_http_service(host)").
func (c *ClientContext) urlOpen(ctx context.Context, rawURL string, opts RequestOptions) (*HttpResponse, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("httpcore: parsing url %q: %w", rawURL, err)
	}

	svc, err := c.GetService(u.Host)
	if err != nil {
		return nil, err
	}

	path := u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	return svc.Request(ctx, path, opts), nil
}
