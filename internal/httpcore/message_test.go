package httpcore

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_CaseInsensitiveGetSet(t *testing.T) {
	h := Header{}
	h.Set("Content-Type", "application/json")

	v, ok := h.Get("content-type")
	require.True(t, ok)
	assert.Equal(t, "application/json", v)

	h.Set("CONTENT-TYPE", "text/plain")
	assert.Len(t, h, 1)

	v, _ = h.Get("Content-Type")
	assert.Equal(t, "text/plain", v)
}

func TestHttpRequest_FullURL(t *testing.T) {
	req := &HttpRequest{URL: "https://example.com/path"}
	assert.Equal(t, "https://example.com/path", req.FullURL())

	req.Params = []KV{{Key: "a", Value: "1"}}
	assert.Equal(t, "https://example.com/path?a=1", req.FullURL())
}

func TestHttpRequest_SetBody(t *testing.T) {
	req := &HttpRequest{}
	req.SetBody([]byte("hello"), ContentTypeForm)

	ct, ok := req.Headers.Get("Content-Type")
	require.True(t, ok)
	assert.Equal(t, ContentTypeForm, ct)

	cl, ok := req.Headers.Get("Content-Length")
	require.True(t, ok)
	assert.Equal(t, "5", cl)
}

func TestHttpRequest_Cookies_LazyAllocated(t *testing.T) {
	req := &HttpRequest{}
	assert.Nil(t, req.cookies)

	jar := req.Cookies()
	assert.NotNil(t, jar)
	assert.Same(t, jar, req.Cookies())
}

func TestHttpResponse_ReadBuffered(t *testing.T) {
	resp := &HttpResponse{buffered: []byte("hello world")}

	chunk, err := resp.Read(5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(chunk))
	assert.EqualValues(t, 5, resp.BytesRead())

	rest, err := resp.Read(0)
	require.NoError(t, err)
	assert.Equal(t, " world", string(rest))
}

func TestHttpResponse_ReadStream(t *testing.T) {
	resp := &HttpResponse{body: io.NopCloser(strings.NewReader("streamed"))}

	data, err := resp.Read(0)
	require.NoError(t, err)
	assert.Equal(t, "streamed", string(data))
	assert.NoError(t, resp.Close())
}

func TestHttpResponse_ContentLength(t *testing.T) {
	resp := &HttpResponse{Header: map[string][]string{"Content-Length": {"42"}}}

	n, ok := resp.ContentLength()
	assert.True(t, ok)
	assert.EqualValues(t, 42, n)

	resp2 := &HttpResponse{}
	_, ok = resp2.ContentLength()
	assert.False(t, ok)
}

func TestHttpResponse_Close_NilBodyIsNoop(t *testing.T) {
	resp := &HttpResponse{buffered: []byte("x")}
	assert.NoError(t, resp.Close())
}
