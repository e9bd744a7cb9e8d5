// Package httpcore is a thread-safe, retrying, pluggable-authentication HTTP
// client core. It sits between callers (the CLI, the audit ledger, any RPC
// layer built on top) and the standard library's net/http transport, and
// owns retry policy, backoff, authentication, and cookie persistence so that
// none of those concerns leak into callers.
package httpcore

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrKind classifies a NetError. Distinguishing these from one another is
// what lets the retry loop in Service.Request decide retry vs. terminate.
type ErrKind int

const (
	// KindConnection is a TCP/TLS failure before any response was received.
	KindConnection ErrKind = iota
	// KindTimeout is a read or overall-deadline timeout.
	KindTimeout
	// KindHTTP is a server response with status >= 400.
	KindHTTP
)

func (k ErrKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTimeout:
		return "timeout"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Sentinel errors for errors.Is classification. NetError.Unwrap returns one
// of these regardless of the specific status code, so callers can test
// "was this a timeout" without switching on Kind directly.
var (
	ErrConnection = errors.New("httpcore: connection failed")
	ErrTimeout    = errors.New("httpcore: timeout")
	ErrHTTP       = errors.New("httpcore: http error")
)

// NetError is the taxonomy described in spec.md §7: every network outcome
// Service.Request classifies is one of these, never a raw net/http error.
type NetError struct {
	Kind       ErrKind
	StatusCode int // valid only when Kind == KindHTTP
	Header     http.Header
	Body       []byte
	Cause      error
}

func (e *NetError) Error() string {
	switch e.Kind {
	case KindHTTP:
		return fmt.Sprintf("httpcore: http %d", e.StatusCode)
	case KindTimeout:
		return "httpcore: timeout"
	default:
		if e.Cause != nil {
			return fmt.Sprintf("httpcore: connection failed: %v", e.Cause)
		}

		return "httpcore: connection failed"
	}
}

func (e *NetError) Unwrap() error {
	switch e.Kind {
	case KindHTTP:
		return ErrHTTP
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrConnection
	}
}

// Verbose formats the error with non-"x-" response headers and body, for
// diagnostic logging on loop exhaustion (spec.md §4.6's "log the last error
// with its headers/body (non-x- headers only)").
func (e *NetError) Verbose() string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s", e.Error())

	if len(e.Header) > 0 {
		keys := make([]string, 0, len(e.Header))
		for k := range e.Header {
			if strings.HasPrefix(strings.ToLower(k), "x-") {
				continue
			}

			keys = append(keys, k)
		}

		sort.Strings(keys)

		for _, k := range keys {
			fmt.Fprintf(&b, "\n  %s: %s", k, strings.Join(e.Header[k], ", "))
		}
	}

	if len(e.Body) > 0 {
		fmt.Fprintf(&b, "\n  body: %s", string(e.Body))
	}

	return b.String()
}

// ProgrammerError signals caller misuse (GET with a body, an unrecognized
// content type for a non-bytes body, a form body that is neither []KV nor
// map[string]string, duplicate headers supplied as a map with ambiguous
// casing). A body with no content type is not an error: Service.Request
// form-encodes it. Per spec.md §7 these are raised synchronously and are
// never caught by the retry loop.
type ProgrammerError struct {
	Msg string
}

func (e *ProgrammerError) Error() string { return "httpcore: " + e.Msg }

func panicProgrammer(format string, args ...any) {
	panic(&ProgrammerError{Msg: fmt.Sprintf(format, args...)})
}
