package httpcore

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Content-type tags the codec recognizes (spec.md §4.3).
const (
	ContentTypeForm = "application/x-www-form-urlencoded"
	ContentTypeJSON = "application/json; charset=UTF-8"
)

// KV is an ordered key/value pair, used for form encoding where duplicate
// keys and caller-supplied order must be preserved.
type KV struct {
	Key   string
	Value string
}

// EncodeBody converts value into a byte payload for the given content-type
// tag. []byte and nil/empty values pass through verbatim. Any other value
// requires a recognized contentType; an unrecognized tag is a programmer
// error (spec.md §4.3: "unknown types are a programmer error").
func EncodeBody(value any, contentType string) []byte {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return v
	case string:
		return []byte(v)
	}

	switch contentType {
	case ContentTypeForm:
		return encodeForm(value)
	case ContentTypeJSON:
		return encodeCanonicalJSON(value)
	default:
		panicProgrammer("unrecognized content type %q for non-bytes body", contentType)
		return nil
	}
}

// encodeForm RFC-3986-encodes key/value pairs. Accepts []KV (preserves
// caller order and duplicate keys) or map[string]string (insertion order is
// not recoverable from a Go map, so callers that need stable form ordering
// should pass []KV).
func encodeForm(value any) []byte {
	switch v := value.(type) {
	case []KV:
		// url.Values is a map, so build the encoded string manually to
		// preserve duplicate-key order exactly as supplied.
		parts := make([]string, 0, len(v))
		for _, kv := range v {
			parts = append(parts, url.QueryEscape(kv.Key)+"="+url.QueryEscape(kv.Value))
		}

		return []byte(strings.Join(parts, "&"))
	case map[string]string:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		// Go map iteration has no stable insertion order; sort for
		// deterministic output since the caller didn't supply one.
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v[k]))
		}

		return []byte(strings.Join(parts, "&"))
	default:
		panicProgrammer("form encoding requires []KV or map[string]string, got %T", value)
		return nil
	}
}

// encodeCanonicalJSON produces byte-deterministic JSON: lexicographically
// sorted object keys and minimal separators (spec.md §4.3). encoding/json
// already emits minimal separators for Marshal; key ordering for map types
// is already sorted by the standard library, but struct field order is
// source order, so canonicalization round-trips through a generic
// representation to guarantee sorted keys regardless of input shape.
func encodeCanonicalJSON(value any) []byte {
	raw, err := json.Marshal(value)
	if err != nil {
		panicProgrammer("encoding json body: %v", err)
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		panicProgrammer("canonicalizing json body: %v", err)
	}

	canon, err := json.Marshal(generic)
	if err != nil {
		panicProgrammer("re-encoding canonical json body: %v", err)
	}

	return canon
}

// QueryString url-encodes an ordered parameter list, preserving duplicates
// and order (spec.md §3: "Full URL = URL + ? + url-encoded(params)").
func QueryString(params []KV) string {
	parts := make([]string, 0, len(params))
	for _, kv := range params {
		parts = append(parts, url.QueryEscape(kv.Key)+"="+url.QueryEscape(kv.Value))
	}

	return strings.Join(parts, "&")
}

// DecodeJSON is the counterpart used by Service.JSONRequest to parse response
// bodies. Kept alongside the encoder so both halves of the JSON round-trip
// live in one file.
func DecodeJSON(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpcore: decoding json response: %w", err)
	}

	return nil
}
