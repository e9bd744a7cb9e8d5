package httpcore

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultPoolSize is the connection pool size absent explicit config
	// (spec.md §4.4).
	DefaultPoolSize = 64
	defaultDialTimeout = 30 * time.Second
)

// EngineOptions configures a Transport Engine (spec.md §4.4).
type EngineOptions struct {
	// CABundlePath, if set, pins peer verification to this PEM bundle instead
	// of the system trust store.
	CABundlePath string
	// PoolSize caps idle connections per host. Zero means DefaultPoolSize.
	PoolSize int
}

// Engine is a thin adapter over net/http: one pooled client per instance,
// trust_env=false (no proxy/CA inheritance from the environment), the
// library's own retries disabled — the core owns retry semantics entirely
// in Service.Request.
type Engine struct {
	client *http.Client
}

// NewEngine builds an Engine per opts. A CA bundle load failure is returned
// immediately rather than silently falling back to system trust, since that
// would weaken the caller's explicit pinning intent.
func NewEngine(opts EngineOptions) (*Engine, error) {
	poolSize := opts.PoolSize
	if poolSize <= 0 {
		poolSize = DefaultPoolSize
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

	if opts.CABundlePath != "" {
		pem, err := os.ReadFile(opts.CABundlePath)
		if err != nil {
			return nil, fmt.Errorf("httpcore: reading CA bundle %s: %w", opts.CABundlePath, err)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("httpcore: no certificates parsed from CA bundle %s", opts.CABundlePath)
		}

		tlsConfig.RootCAs = pool
	}

	transport := &http.Transport{
		// Proxy intentionally omitted: trust_env=false, no ambient
		// HTTP_PROXY/HTTPS_PROXY inheritance (spec.md §4.4, Non-goals §1).
		DialContext: (&net.Dialer{
			Timeout: defaultDialTimeout,
		}).DialContext,
		TLSClientConfig:     tlsConfig,
		MaxIdleConns:        poolSize,
		MaxIdleConnsPerHost: poolSize,
		MaxConnsPerHost:     poolSize,
	}

	return &Engine{
		client: &http.Client{
			Transport: transport,
			// No CheckRedirect override here: redirects are followed (cap
			// 10). The Cookie authenticator's login handshake does not go
			// through the Engine; its InteractiveLoginFunc is what must not
			// follow the 302 that carries auth state (spec.md §4.5).
		},
	}, nil
}

// PerformRequest sends req and classifies the outcome per spec.md §4.4:
// library timeout -> Timeout, connection/TLS failure before any response ->
// Connection, status >= 400 -> Http(status) wrapped as *NetError, otherwise
// an *HttpResponse streaming or buffering the body per req.Stream.
func (e *Engine) PerformRequest(ctx context.Context, req *HttpRequest) (*HttpResponse, error) {
	if req.HasReadTimeout && req.ReadTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, req.ReadTimeout)
		defer cancel()
	}

	httpReq, err := e.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, classifyTransportErr(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		return nil, &NetError{Kind: KindHTTP, StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	}

	if req.Stream {
		return &HttpResponse{URL: req.URL, StatusCode: resp.StatusCode, Header: resp.Header, body: resp.Body}, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()

	if err != nil {
		if isTimeoutErr(err) {
			return nil, &NetError{Kind: KindTimeout, Cause: err}
		}

		return nil, &NetError{Kind: KindConnection, Cause: err}
	}

	return &HttpResponse{URL: req.URL, StatusCode: resp.StatusCode, Header: resp.Header, buffered: body}, nil
}

func (e *Engine) buildRequest(ctx context.Context, req *HttpRequest) (*http.Request, error) {
	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = newSeekableReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.FullURL(), bodyReader)
	if err != nil {
		return nil, &NetError{Kind: KindConnection, Cause: err}
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	// Correlation id for cross-attempt log correlation (DOMAIN STACK: uuid).
	httpReq.Header.Set("X-Request-Id", uuid.NewString())

	if req.cookies != nil {
		for _, c := range req.cookies.Cookies(httpReq.URL) {
			httpReq.AddCookie(c)
		}
	}

	return httpReq, nil
}

// classifyTransportErr maps a net/http transport-level error (returned by
// http.Client.Do) into Timeout or Connection, per spec.md §4.4.
func classifyTransportErr(err error) error {
	if isTimeoutErr(err) {
		return &NetError{Kind: KindTimeout, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &NetError{Kind: KindTimeout, Cause: err}
	}

	return &NetError{Kind: KindConnection, Cause: err}
}

// seekableReader lets the transport send a []byte body; req.Body is always
// fully available (no streaming request bodies in this core per Non-goals).
type seekableReader struct {
	data []byte
	pos  int
}

func newSeekableReader(data []byte) *seekableReader { return &seekableReader{data: data} }

func (s *seekableReader) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}

	n := copy(p, s.data[s.pos:])
	s.pos += n

	return n, nil
}
