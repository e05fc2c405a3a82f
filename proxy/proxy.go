// Package proxy resolves which network egress path outbound operations
// use: direct connection or one of a user-configured pool of proxies,
// rotated round-robin across operations.
//
// The pool lives in a JSON file in the user's home directory. A missing
// or malformed file never fails the run: the tool falls back to direct
// connection. Explicit CLI force-on/force-off always wins over the file.
package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Config is the on-disk proxy pool schema.
type Config struct {
	Enabled bool     `json:"enabled"`
	Proxies []string `json:"proxies"`
}

// DefaultPath returns the proxy pool location, ~/.scholar-proxies.json.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scholar-proxies.json"
	}
	return filepath.Join(home, ".scholar-proxies.json")
}

// Load reads the proxy pool config from path. Absent or malformed files
// yield the disabled default; the run proceeds on direct connection.
func Load(path string, logger *slog.Logger) Config {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Debug("proxy: no config file, direct connection", "path", path)
		return Config{}
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warn("proxy: malformed config, direct connection", "path", path, "error", err)
		return Config{}
	}
	return cfg
}

// Policy is the effective egress policy for one run. It rotates through
// the pool so repeated operations within a run spread load.
type Policy struct {
	enabled bool
	proxies []string
	cursor  atomic.Uint64
}

// Resolve combines the loaded config with CLI overrides. forceOn and
// forceOff are mutually exclusive at the CLI layer; either one takes
// precedence over the config file's enabled flag.
func Resolve(cfg Config, forceOn, forceOff bool) *Policy {
	enabled := cfg.Enabled
	if forceOn {
		enabled = true
	}
	if forceOff {
		enabled = false
	}
	return &Policy{enabled: enabled, proxies: cfg.Proxies}
}

// Enabled reports whether proxied egress is in effect. A policy with an
// empty pool is effectively direct even when enabled.
func (p *Policy) Enabled() bool {
	return p.enabled && len(p.proxies) > 0
}

// Next returns the proxy URI for the next outbound operation, advancing
// the rotation. Empty string means direct connection.
func (p *Policy) Next() string {
	if !p.Enabled() {
		return ""
	}
	n := p.cursor.Add(1) - 1
	return p.proxies[n%uint64(len(p.proxies))]
}

// Attempts returns the egress sequence for a single operation: each
// proxy at most once starting at the rotation cursor, then direct
// connection as the final fallback. Callers try each in order and stop
// at the first success, so one operation never retries indefinitely.
func (p *Policy) Attempts() []string {
	if !p.Enabled() {
		return []string{""}
	}
	start := p.cursor.Add(1) - 1
	out := make([]string, 0, len(p.proxies)+1)
	for i := 0; i < len(p.proxies); i++ {
		out = append(out, p.proxies[(start+uint64(i))%uint64(len(p.proxies))])
	}
	return append(out, "")
}

// HTTPClientFor builds an HTTP client routed through the given proxy
// URI, or a plain client for the empty (direct) egress. An unparsable
// URI degrades to direct connection.
func HTTPClientFor(proxyURL string, base http.Client) *http.Client {
	c := base
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			c.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}
	return &c
}
