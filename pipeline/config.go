package pipeline

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/gistify/backend"
	"github.com/hazyhaar/gistify/proxy"
	"github.com/hazyhaar/gistify/ratelimit"
)

// AppConfig is the optional user-level configuration file. Every field
// has a working default; the tool runs with no file at all.
type AppConfig struct {
	// BackendURL is the summarization endpoint.
	BackendURL string `yaml:"backend_url"`

	// OutputDir is where reports are written.
	OutputDir string `yaml:"output_dir"`

	// ProxyConfig is the path of the proxy roster JSON file.
	ProxyConfig string `yaml:"proxy_config"`

	// RateLimitDB is the path of the shared rate-limit state database.
	RateLimitDB string `yaml:"ratelimit_db"`

	// NavTimeoutSeconds bounds one page navigation plus render wait.
	NavTimeoutSeconds int `yaml:"nav_timeout_seconds"`
}

// DefaultAppConfig returns the built-in configuration.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		BackendURL:        backend.DefaultURL,
		OutputDir:         ".",
		ProxyConfig:       proxy.DefaultPath(),
		RateLimitDB:       ratelimit.DefaultPath(),
		NavTimeoutSeconds: 60,
	}
}

// DefaultConfigPath returns ~/.gistify/config.yaml, or a relative
// fallback when the home directory cannot be resolved.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gistify", "config.yaml")
	}
	return filepath.Join(home, ".gistify", "config.yaml")
}

// LoadAppConfig reads the config file at path. A missing file is the
// normal case and yields defaults silently; a malformed file yields
// defaults with a warning, never a partially applied parse. Fields
// absent from a valid file keep their defaults.
func LoadAppConfig(path string, log *slog.Logger) AppConfig {
	if log == nil {
		log = slog.Default()
	}
	cfg := DefaultAppConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("config: unreadable, using defaults", "path", path, "error", err)
		}
		return cfg
	}

	var parsed AppConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		log.Warn("config: malformed, using defaults", "path", path, "error", err)
		return DefaultAppConfig()
	}

	if parsed.BackendURL != "" {
		cfg.BackendURL = parsed.BackendURL
	}
	if parsed.OutputDir != "" {
		cfg.OutputDir = parsed.OutputDir
	}
	if parsed.ProxyConfig != "" {
		cfg.ProxyConfig = parsed.ProxyConfig
	}
	if parsed.RateLimitDB != "" {
		cfg.RateLimitDB = parsed.RateLimitDB
	}
	if parsed.NavTimeoutSeconds > 0 {
		cfg.NavTimeoutSeconds = parsed.NavTimeoutSeconds
	}
	return cfg
}

// NavTimeout returns the navigation timeout as a duration.
func (c AppConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSeconds) * time.Second
}
