package httpcore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestOAuthAuthenticator_Authorize_SetsBearerHeaderWhenCached(t *testing.T) {
	auth := NewOAuthAuthenticator("example.com", OAuthOptions{}, nil, nil)
	auth.token = &oauth2.Token{AccessToken: "tok123"}

	req := &HttpRequest{}
	auth.Authorize(req)

	v, ok := req.Headers.Get("Authorization")
	require.True(t, ok)
	assert.Equal(t, "Bearer tok123", v)
}

func TestOAuthAuthenticator_Authorize_NoopWithoutToken(t *testing.T) {
	auth := NewOAuthAuthenticator("example.com", OAuthOptions{}, nil, nil)

	req := &HttpRequest{}
	auth.Authorize(req)

	assert.Empty(t, req.Headers)
}

func TestOAuthAuthenticator_Login_NonInteractiveWithoutRefreshTokenFails(t *testing.T) {
	auth := NewOAuthAuthenticator("example.com", OAuthOptions{}, nil, nil)
	assert.False(t, auth.Login(false))
}

func TestOAuthAuthenticator_Login_SilentRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh-token","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	tokenPath := filepath.Join(t.TempDir(), "token.json")

	auth := NewOAuthAuthenticator("example.com", OAuthOptions{
		ClientID: "client", TokenURL: srv.URL, TokenPath: tokenPath,
	}, nil, nil)
	auth.token = &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh-1", Expiry: time.Now().Add(-time.Hour)}

	ok := auth.Login(false)
	require.True(t, ok)
	assert.Equal(t, "fresh-token", auth.token.AccessToken)

	_, err := os.Stat(tokenPath)
	assert.NoError(t, err, "a refreshed token should be persisted to disk")
}

func TestOAuthAuthenticator_Login_InteractiveRequiresOpenURL(t *testing.T) {
	auth := NewOAuthAuthenticator("example.com", OAuthOptions{}, nil, nil)
	assert.False(t, auth.Login(true))
}

func TestOAuthAuthenticator_ExchangeCode_PersistsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"exchanged","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	tokenPath := filepath.Join(t.TempDir(), "token.json")

	auth := NewOAuthAuthenticator("example.com", OAuthOptions{
		ClientID: "client", TokenURL: srv.URL, TokenPath: tokenPath,
	}, nil, nil)

	err := auth.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "exchanged", auth.token.AccessToken)

	_, statErr := os.Stat(tokenPath)
	assert.NoError(t, statErr)
}

func TestOAuthAuthenticator_Logout_ClearsTokenAndFile(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(tokenPath, []byte("{}"), 0o600))

	auth := NewOAuthAuthenticator("example.com", OAuthOptions{TokenPath: tokenPath}, nil, nil)
	auth.token = &oauth2.Token{AccessToken: "x"}

	auth.Logout()

	assert.Nil(t, auth.token)
	_, err := os.Stat(tokenPath)
	assert.True(t, os.IsNotExist(err))
}

func TestOAuthAuthenticator_Logout_WithoutTokenPathClearsToken(t *testing.T) {
	auth := NewOAuthAuthenticator("example.com", OAuthOptions{}, nil, nil)
	auth.token = &oauth2.Token{AccessToken: "x"}

	assert.NotPanics(t, auth.Logout)
	assert.Nil(t, auth.token)
}

func TestNewOAuthAuthenticator_EagerlyLoadsExistingToken(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token.json")

	seed := NewOAuthAuthenticator("example.com", OAuthOptions{TokenPath: tokenPath}, nil, nil)
	seed.token = &oauth2.Token{AccessToken: "seeded"}
	seed.persist(seed.token)

	reloaded := NewOAuthAuthenticator("example.com", OAuthOptions{TokenPath: tokenPath}, nil, nil)
	require.NotNil(t, reloaded.token)
	assert.Equal(t, "seeded", reloaded.token.AccessToken)
}
