package httpcore

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistentCookieJar_LoadMissingFileCreatesEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")

	jar := NewPersistentCookieJar(path)
	require.NoError(t, jar.Load())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(CookieFilePerms), info.Mode().Perm())
	assert.Empty(t, jar.CookiesFor("example.com"))
}

func TestPersistentCookieJar_LoadToleratesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")
	require.NoError(t, os.WriteFile(path, []byte("not\tenough\tfields"), 0o600))

	jar := NewPersistentCookieJar(path)
	require.NoError(t, jar.Load())
	assert.Empty(t, jar.CookiesFor("example.com"))
}

func TestPersistentCookieJar_SetCookiesAndCookiesFor(t *testing.T) {
	dir := t.TempDir()
	jar := NewPersistentCookieJar(filepath.Join(dir, "cookies.txt"))
	require.NoError(t, jar.Load())

	jar.SetCookies("example.com", []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})

	cookies := jar.CookiesFor("example.com")
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestPersistentCookieJar_CookiesForRespectsSubdomainFlag(t *testing.T) {
	dir := t.TempDir()
	jar := NewPersistentCookieJar(filepath.Join(dir, "cookies.txt"))
	require.NoError(t, jar.Load())

	jar.SetCookies("example.com", []*http.Cookie{{Name: "a", Value: "1"}})
	assert.Empty(t, jar.CookiesFor("sub.example.com"))

	jar.upsertLocked(netscapeCookie{Domain: "example.com", IncludeSubdomains: true, Path: "/", Name: "b", Value: "2"})
	assert.Len(t, jar.CookiesFor("sub.example.com"), 1)
}

func TestPersistentCookieJar_ExpiredCookiesExcluded(t *testing.T) {
	dir := t.TempDir()
	jar := NewPersistentCookieJar(filepath.Join(dir, "cookies.txt"))
	require.NoError(t, jar.Load())

	jar.SetCookies("example.com", []*http.Cookie{{Name: "old", Value: "x", Expires: time.Now().Add(-time.Hour)}})
	assert.Empty(t, jar.CookiesFor("example.com"))
}

func TestPersistentCookieJar_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.txt")

	jar := NewPersistentCookieJar(path)
	require.NoError(t, jar.Load())
	jar.SetCookies("example.com", []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})
	require.NoError(t, jar.Save())

	reloaded := NewPersistentCookieJar(path)
	require.NoError(t, reloaded.Load())

	cookies := reloaded.CookiesFor("example.com")
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestPersistentCookieJar_ClearDomain(t *testing.T) {
	dir := t.TempDir()
	jar := NewPersistentCookieJar(filepath.Join(dir, "cookies.txt"))
	require.NoError(t, jar.Load())

	jar.SetCookies("example.com", []*http.Cookie{{Name: "a", Value: "1"}})
	jar.SetCookies("other.com", []*http.Cookie{{Name: "b", Value: "2"}})

	jar.ClearDomain("example.com")

	assert.Empty(t, jar.CookiesFor("example.com"))
	assert.Len(t, jar.CookiesFor("other.com"), 1)
}

func TestPersistentCookieJar_ImportExportNetscapeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	jar := NewPersistentCookieJar(filepath.Join(dir, "cookies.txt"))
	require.NoError(t, jar.Load())
	jar.SetCookies("example.com", []*http.Cookie{{Name: "session", Value: "abc", Path: "/"}})

	data := jar.ExportNetscape()

	fresh := NewPersistentCookieJar(filepath.Join(dir, "other.txt"))
	require.NoError(t, fresh.Load())
	require.NoError(t, fresh.ImportNetscape(data))

	cookies := fresh.CookiesFor("example.com")
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc", cookies[0].Value)
}

func TestPersistentCookieJar_ImportMalformedReturnsError(t *testing.T) {
	dir := t.TempDir()
	jar := NewPersistentCookieJar(filepath.Join(dir, "cookies.txt"))
	require.NoError(t, jar.Load())

	err := jar.ImportNetscape([]byte("bad\tline"))
	assert.Error(t, err)
}

func TestDefaultCookiePath(t *testing.T) {
	p, err := DefaultCookiePath()
	require.NoError(t, err)
	assert.Equal(t, ".isolated_cookies", filepath.Base(p))
}
