package authconfig

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML auth config file, starting from
// DefaultConfig and overlaying whatever the file specifies, then validates
// the result. A missing file is not an error: it returns the defaults,
// matching the teacher's tolerant-boot posture in internal/config.Load for
// absent optional files.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("no auth config file found, using defaults", slog.String("path", path))
			return cfg, nil
		}

		return nil, fmt.Errorf("authconfig: reading %s: %w", path, err)
	}

	// [host "example.com"] section headers are rewritten to the equivalent
	// dotted TOML table name [host."example.com"] before decoding.
	hostHeader := regexp.MustCompile(`(?m)^[ \t]*\[host[ \t]+("[^"\n]*")[ \t]*\]`)
	text := hostHeader.ReplaceAllString(string(data), `[host.$1]`)

	if _, err := toml.Decode(text, cfg); err != nil {
		return nil, fmt.Errorf("authconfig: parsing %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("authconfig: validating %s: %w", path, err)
	}

	logger.Debug("auth config loaded",
		slog.String("path", path),
		slog.String("default_method", cfg.Auth.Default),
		slog.Int("host_overrides", len(cfg.Host)),
	)

	return cfg, nil
}
