package httpcore

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Defaults from spec.md §4.6.
const (
	DefaultMaxAttempts = 30
	DefaultTimeoutSecs = 360
)

// RequestOptions configures a single Service.Request/JSONRequest call
// (spec.md §4.6/§4.7). Zero value picks the spec's defaults.
type RequestOptions struct {
	Method      string
	Body        any
	ContentType string
	Headers     Header
	Params      []KV

	MaxAttempts int  // 0 -> DefaultMaxAttempts
	HasTimeout  bool
	TimeoutSecs float64 // valid iff HasTimeout; 0 value with HasTimeout=false -> DefaultTimeoutSecs
	ReadTimeoutSecs float64
	HasReadTimeout  bool

	Retry404 bool
	Retry50x bool
	HasRetry50x bool // if false, defaults to true per spec

	Stream     bool
	HasStream  bool // if false, defaults to true per spec
}

// Service is the per-host façade described in spec.md §3/§4.6: wires an
// Engine + Authenticator + UseCountKey policy and implements the
// retry/auth/transient-error loop.
type Service struct {
	Host         string // normalized: lowercased, trailing slashes stripped
	Engine       *Engine
	Auth         Authenticator
	UseCountKey  bool // signed-URL hosts must set this false
	Logger       *slog.Logger
}

// NewService builds a Service for the given normalized host.
func NewService(host string, engine *Engine, auth Authenticator, useCountKey bool, logger *slog.Logger) *Service {
	if auth == nil {
		auth = NoneAuthenticator{}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{Host: host, Engine: engine, Auth: auth, UseCountKey: useCountKey, Logger: logger}
}

// Request runs the retry/auth/transient-error loop against path and returns
// the response, or nil if the call could not succeed (spec.md §4.6).
// Programmer errors (GET with a body, an unrecognized content type, a
// header supplied twice with different casing) panic synchronously per
// spec.md §7 rather than being returned here.
func (s *Service) Request(ctx context.Context, path string, opts RequestOptions) *HttpResponse {
	opts = applyDefaults(opts)

	for k := range opts.Headers {
		for k2 := range opts.Headers {
			if k != k2 && strings.EqualFold(k, k2) {
				panicProgrammer("header %q supplied more than once with different casing", k)
			}
		}
	}

	body, method := s.resolveMethodAndBody(opts)

	controller := NewRetryController(opts.MaxAttempts, timeoutDuration(opts), NewBackoff())

	var (
		prev        *RetryAttempt
		loginTried  bool
		lastErr     *NetError
	)

	for {
		attempt, ok := controller.Next(ctx, prev)
		if !ok {
			break
		}

		req := s.buildRequest(method, path, body, opts, attempt.Index)

		if s.Auth != nil {
			s.Auth.Authorize(req)
		}

		resp, reqErr := s.Engine.PerformRequest(ctx, req)
		if reqErr == nil {
			return resp
		}

		netErr, _ := reqErr.(*NetError)
		if netErr == nil {
			netErr = &NetError{Kind: KindConnection, Cause: reqErr}
		}

		lastErr = netErr

		outcome := s.classify(netErr, opts, &loginTried)
		attempt.SkipSleep = outcome == outcomeRetrySkipSleep

		prevCopy := attempt
		prev = &prevCopy

		switch outcome {
		case outcomeRetry, outcomeRetrySkipSleep:
			s.Logger.Debug("request attempt failed, retrying",
				slog.String("host", s.Host),
				slog.String("path", path),
				slog.Int("attempt", attempt.Index),
				slog.Bool("reauthenticated", outcome == outcomeRetrySkipSleep),
				slog.String("error", netErr.Error()),
			)

			continue
		case outcomeTerminal:
			s.logTerminal(path, netErr)
			return nil
		}
	}

	if lastErr != nil {
		s.logTerminal(path, lastErr)
	}

	return nil
}

type requestOutcome int

const (
	outcomeRetry requestOutcome = iota
	outcomeRetrySkipSleep
	outcomeTerminal
)

// classify implements spec.md §4.6 step 4's decision table.
func (s *Service) classify(netErr *NetError, opts RequestOptions, loginTried *bool) requestOutcome {
	switch netErr.Kind {
	case KindConnection, KindTimeout:
		return outcomeRetry
	case KindHTTP:
		return s.classifyHTTP(netErr.StatusCode, opts, loginTried)
	default:
		return outcomeTerminal
	}
}

func (s *Service) classifyHTTP(code int, opts RequestOptions, loginTried *bool) requestOutcome {
	if (code == http.StatusUnauthorized || code == http.StatusForbidden) && s.Auth != nil {
		if !*loginTried {
			*loginTried = true

			if s.Auth.Login(false) {
				return outcomeRetrySkipSleep
			}
		}

		return outcomeTerminal
	}

	if isTransient(code, opts.Retry404, opts.Retry50x) {
		return outcomeRetry
	}

	return outcomeTerminal
}

// isTransient implements spec.md §4.6's is_transient predicate.
func isTransient(code int, retry404, retry50x bool) bool {
	switch {
	case code == http.StatusRequestTimeout:
		return true
	case code == http.StatusNotFound:
		return retry404
	case code >= 400 && code < 500:
		return false
	case code >= 500:
		return retry50x
	default:
		return false
	}
}

func (s *Service) logTerminal(path string, err *NetError) {
	s.Logger.Error("request failed",
		slog.String("host", s.Host),
		slog.String("path", path),
		slog.String("detail", err.Verbose()),
	)
}

func (s *Service) resolveMethodAndBody(opts RequestOptions) ([]byte, string) {
	hasBody := opts.Body != nil

	method := opts.Method
	if method == "" {
		if hasBody {
			method = http.MethodPost
		} else {
			method = http.MethodGet
		}
	}

	if method == http.MethodGet && hasBody {
		panicProgrammer("GET requests cannot carry a body")
	}

	if !hasBody {
		return nil, method
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = ContentTypeForm
	}

	return EncodeBody(opts.Body, contentType), method
}

// buildRequest constructs a fresh HttpRequest for one attempt (spec.md
// §4.6 step 1-2): state never carries between attempts, and the retry-count
// query parameter is appended only when UseCountKey is set and this isn't
// the first attempt.
func (s *Service) buildRequest(method, path string, body []byte, opts RequestOptions, attemptIndex int) *HttpRequest {
	req := &HttpRequest{
		Method:  method,
		URL:     s.urlFor(path),
		Headers: cloneHeaders(opts.Headers),
		Stream:  opts.Stream,
	}

	if opts.HasReadTimeout {
		req.HasReadTimeout = true
		req.ReadTimeout = secondsToDuration(opts.ReadTimeoutSecs)
	}

	if len(body) > 0 {
		contentType := opts.ContentType
		if contentType == "" {
			contentType = ContentTypeForm
		}

		req.SetBody(body, contentType)
	}

	req.Params = append([]KV(nil), opts.Params...)

	if s.UseCountKey && attemptIndex > 0 {
		req.Params = append(req.Params, KV{Key: "UrlOpenAttempt", Value: itoa(attemptIndex)})
	}

	return req
}

func (s *Service) urlFor(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}

	return "https://" + s.Host + path
}

func applyDefaults(opts RequestOptions) RequestOptions {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	if !opts.HasTimeout {
		opts.HasTimeout = true
		opts.TimeoutSecs = DefaultTimeoutSecs
	}

	if !opts.HasRetry50x {
		opts.Retry50x = true
	}

	if !opts.HasStream {
		opts.Stream = true
	}

	return opts
}

func timeoutDuration(opts RequestOptions) time.Duration {
	if !opts.HasTimeout {
		return 0
	}

	return secondsToDuration(opts.TimeoutSecs)
}

func secondsToDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

func itoa(n int) string { return strconv.Itoa(n) }

// JSONRequest is the JSON-in/JSON-out convenience described in spec.md §4.7:
// body (if non-nil) is serialized as canonical JSON, stream/retry_404 are
// forced off, retry_50x is forced on, and the response body is decoded into
// out. Any network error, timeout, or JSON decode failure yields false —
// callers cannot distinguish the cause, by design.
func (s *Service) JSONRequest(ctx context.Context, method, path string, body any, out any) bool {
	opts := RequestOptions{
		Method:      method,
		ContentType: ContentTypeJSON,
		HasStream:   true,
		Stream:      false,
		Retry404:    false,
		HasRetry50x: true,
		Retry50x:    true,
	}

	if body != nil {
		opts.Body = body
	}

	resp := s.Request(ctx, path, opts)
	if resp == nil {
		return false
	}

	defer resp.Close()

	data, err := resp.Read(0)
	if err != nil {
		return false
	}

	if out == nil {
		return true
	}

	return DecodeJSON(data, out) == nil
}

func cloneHeaders(h Header) Header {
	if h == nil {
		return Header{}
	}

	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}

	return out
}
