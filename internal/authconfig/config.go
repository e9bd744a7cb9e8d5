// Package authconfig implements TOML configuration loading and validation
// for the HTTP client core's auth policy: default auth method, per-host
// overrides, and OAuth client options (spec.md §3's "default auth method +
// per-host auth method map + OAuth options" registry). Mirrors the
// teacher's internal/config package's two-pass decode + Validate shape, at
// the smaller scope this core actually needs.
package authconfig

// Config is the top-level TOML structure.
type Config struct {
	Auth    AuthSection             `toml:"auth"`
	Host    map[string]HostSection  `toml:"host"`
	Network NetworkSection          `toml:"network"`
}

// AuthSection holds the process-wide default method and OAuth client
// registration shared by every host that uses OAuth/bot auth.
type AuthSection struct {
	Default      string   `toml:"default"` // "oauth" | "cookie" | "bot" | "none"
	ClientID     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	Scopes       []string `toml:"scopes"`
	AuthURL      string   `toml:"auth_url"`
	TokenURL     string   `toml:"token_url"`
}

// HostSection overrides the auth method for one host, keyed as
// [host "example.com"] in the TOML file.
type HostSection struct {
	Method string `toml:"method"`
}

// NetworkSection controls the Transport Engine and retry defaults.
type NetworkSection struct {
	CABundlePath string `toml:"ca_bundle_path"`
	PoolSize     int    `toml:"pool_size"`
	MaxAttempts  int    `toml:"max_attempts"`
	TimeoutSecs  int    `toml:"timeout_secs"`
	CookiePath   string `toml:"cookie_path"`
}

// DefaultConfig returns a Config with every field at the spec's documented
// default (spec.md §4.6's max_attempts=30/timeout=360, §4.4's pool size 64).
func DefaultConfig() *Config {
	return &Config{
		Auth: AuthSection{Default: "none"},
		Host: make(map[string]HostSection),
		Network: NetworkSection{
			PoolSize:    64,
			MaxAttempts: 30,
			TimeoutSecs: 360,
		},
	}
}
