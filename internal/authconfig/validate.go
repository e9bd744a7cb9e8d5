package authconfig

import "fmt"

var validMethods = map[string]bool{
	"oauth":  true,
	"cookie": true,
	"bot":    true,
	"none":   true,
}

// Validate checks that every configured auth method (default and per-host)
// is one of spec.md §6's recognized values, and that network tunables are
// sane.
func Validate(cfg *Config) error {
	if !validMethods[cfg.Auth.Default] {
		return fmt.Errorf("authconfig: unknown default auth method %q", cfg.Auth.Default)
	}

	for host, section := range cfg.Host {
		if !validMethods[section.Method] {
			return fmt.Errorf("authconfig: host %q: unknown auth method %q", host, section.Method)
		}
	}

	if cfg.Network.PoolSize < 0 {
		return fmt.Errorf("authconfig: network.pool_size must be >= 0, got %d", cfg.Network.PoolSize)
	}

	if cfg.Network.MaxAttempts < 0 {
		return fmt.Errorf("authconfig: network.max_attempts must be >= 0, got %d", cfg.Network.MaxAttempts)
	}

	if cfg.Network.TimeoutSecs < 0 {
		return fmt.Errorf("authconfig: network.timeout_secs must be >= 0, got %d", cfg.Network.TimeoutSecs)
	}

	return nil
}
