package httpcore

import (
	"context"
	"sync"
)

var (
	defaultCtxOnce sync.Once
	defaultCtx     *ClientContext
)

// DefaultContext returns the process-default ClientContext, created lazily
// on first use with the standard cookie path (spec.md §9: "the convenience
// top-level functions retain a default context").
func DefaultContext() *ClientContext {
	defaultCtxOnce.Do(func() {
		path, _ := DefaultCookiePath()
		defaultCtx = NewClientContext(path, nil)
	})

	return defaultCtx
}

// URLOpen is the package-level url_open convenience function (spec.md §6).
func URLOpen(ctx context.Context, rawURL string, opts RequestOptions) (*HttpResponse, error) {
	return DefaultContext().urlOpen(ctx, rawURL, opts)
}

// URLRead is the buffered convenience wrapper: url_read(url, **kw).
func URLRead(ctx context.Context, rawURL string, opts RequestOptions) ([]byte, error) {
	return DefaultContext().URLOpenBuffered(ctx, rawURL, opts)
}

// ConfigureAuth installs the process-default auth policy (spec.md §6).
func ConfigureAuth(defaultMethod AuthMethod, perHost map[string]AuthMethod, oauthOpts OAuthOptions) {
	DefaultContext().ConfigureAuth(defaultMethod, perHost, oauthOpts)
}
