package proxy

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proxies.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolve_ForceOffWinsOverEnabledConfig(t *testing.T) {
	// WHAT: --no-proxy disables egress even when the config file says enabled.
	// WHY: Explicit CLI intent must always beat loaded configuration.
	cfg := Load(writeConfig(t, `{"enabled": true, "proxies": ["http://p1:8080"]}`), nil)
	pol := Resolve(cfg, false, true)
	if pol.Enabled() {
		t.Error("policy enabled despite force-off")
	}
	if got := pol.Next(); got != "" {
		t.Errorf("Next: got %q, want direct", got)
	}
}

func TestResolve_ForceOnWinsOverDisabledConfig(t *testing.T) {
	// WHAT: --proxy enables egress even when the config file says disabled.
	// WHY: Same precedence rule in the other direction.
	cfg := Load(writeConfig(t, `{"enabled": false, "proxies": ["http://p1:8080"]}`), nil)
	pol := Resolve(cfg, true, false)
	if !pol.Enabled() {
		t.Error("policy disabled despite force-on")
	}
}

func TestLoad_MissingOrMalformedFile(t *testing.T) {
	// WHAT: Missing and malformed config files both yield disabled defaults.
	// WHY: Proxy config problems must never abort the run (fail open to direct).
	if cfg := Load(filepath.Join(t.TempDir(), "nope.json"), nil); cfg.Enabled || len(cfg.Proxies) != 0 {
		t.Errorf("missing file: got %+v, want zero config", cfg)
	}
	if cfg := Load(writeConfig(t, `{"enabled": tru`), nil); cfg.Enabled || len(cfg.Proxies) != 0 {
		t.Errorf("malformed file: got %+v, want zero config", cfg)
	}
}

func TestPolicy_RoundRobin(t *testing.T) {
	// WHAT: Next cycles p1, p2, p3, p1, ...
	// WHY: Repeated operations in one run must spread load across the pool.
	pol := Resolve(Config{Enabled: true, Proxies: []string{"p1", "p2", "p3"}}, false, false)
	want := []string{"p1", "p2", "p3", "p1", "p2"}
	for i, w := range want {
		if got := pol.Next(); got != w {
			t.Errorf("Next #%d: got %q, want %q", i, got, w)
		}
	}
}

func TestPolicy_AttemptsEndWithDirect(t *testing.T) {
	// WHAT: Attempts visits each proxy once from the cursor, then direct.
	// WHY: A single operation falls back at most once per proxy, then direct,
	// never retrying indefinitely.
	pol := Resolve(Config{Enabled: true, Proxies: []string{"p1", "p2"}}, false, false)

	got := pol.Attempts()
	want := []string{"p1", "p2", ""}
	if len(got) != len(want) {
		t.Fatalf("attempts: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("attempt #%d: got %q, want %q", i, got[i], want[i])
		}
	}

	// Second operation starts at the next cursor position.
	got = pol.Attempts()
	if got[0] != "p2" || got[1] != "p1" || got[2] != "" {
		t.Errorf("second attempts: got %v, want [p2 p1 ]", got)
	}
}

func TestPolicy_DisabledAttemptsAreDirectOnly(t *testing.T) {
	// WHAT: Disabled or empty-pool policies attempt direct connection only.
	// WHY: The extractors iterate Attempts unconditionally.
	for _, pol := range []*Policy{
		Resolve(Config{}, false, false),
		Resolve(Config{Enabled: true}, false, false),
	} {
		got := pol.Attempts()
		if len(got) != 1 || got[0] != "" {
			t.Errorf("attempts: got %v, want [\"\"]", got)
		}
	}
}

func TestHTTPClientFor_RoutesThroughProxy(t *testing.T) {
	// WHAT: HTTPClientFor installs a Transport whose Proxy resolves to the URI.
	// WHY: Remote PDF fetches and backend calls share this client builder.
	c := HTTPClientFor("http://127.0.0.1:7890", http.Client{})
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatal("no transport installed")
	}
	req := httptest.NewRequest(http.MethodGet, "https://example.com", nil)
	u, err := tr.Proxy(req)
	if err != nil || u == nil || u.Host != "127.0.0.1:7890" {
		t.Errorf("proxy func: got %v, %v", u, err)
	}

	if c := HTTPClientFor("", http.Client{}); c.Transport != nil {
		t.Error("direct client should keep default transport")
	}
}
