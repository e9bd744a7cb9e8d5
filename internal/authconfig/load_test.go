package authconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_ValidFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.toml")
	data := `
[auth]
default = "oauth"
client_id = "abc123"
scopes = ["read", "write"]

[host "example.com"]
method = "cookie"

[network]
pool_size = 16
max_attempts = 5
timeout_secs = 30
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "oauth", cfg.Auth.Default)
	assert.Equal(t, "abc123", cfg.Auth.ClientID)
	assert.Equal(t, []string{"read", "write"}, cfg.Auth.Scopes)
	assert.Equal(t, "cookie", cfg.Host["example.com"].Method)
	assert.Equal(t, 16, cfg.Network.PoolSize)
	assert.Equal(t, 5, cfg.Network.MaxAttempts)
	assert.Equal(t, 30, cfg.Network.TimeoutSecs)
}

func TestLoad_InvalidMethodFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[auth]
default = "carrier-pigeon"
`), 0o600))

	_, err := Load(path, nil)
	assert.Error(t, err)
}

func TestLoad_MalformedTOMLReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid toml"), 0o600))

	_, err := Load(path, nil)
	assert.Error(t, err)
}
