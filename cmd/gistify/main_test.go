package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/gistify/pipeline"
	"github.com/hazyhaar/gistify/proxy"
)

// WHAT: the summarization POST travels through the configured proxy
// pool, not just extraction traffic.
// WHY: the backend call is the one the proxy pool exists to protect;
// a summarizer built without the policy's transport silently leaks
// the user's own address.
func TestNewSummarizerUsesProxyPolicy(t *testing.T) {
	var proxied bool
	var gotHost string
	fakeProxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A forward proxy receives the absolute target URI.
		proxied = true
		gotHost = r.Host
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"summary":"via proxy"}`))
	}))
	defer fakeProxy.Close()

	pol := proxy.Resolve(proxy.Config{Enabled: true, Proxies: []string{fakeProxy.URL}}, false, false)
	appCfg := pipeline.DefaultAppConfig()
	appCfg.BackendURL = "http://summarize.upstream.invalid/fn"

	client := newSummarizer(appCfg, pol, nil)
	summary, err := client.Summarize(context.Background(), "text to summarize")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if summary != "via proxy" {
		t.Errorf("summary = %q", summary)
	}
	if !proxied {
		t.Fatal("backend call never reached the proxy")
	}
	if gotHost != "summarize.upstream.invalid" {
		t.Errorf("proxied request host = %q, want the backend host", gotHost)
	}
}

// WHAT: a disabled policy yields a direct client with the standard
// call timeout.
// WHY: most runs have no proxy pool; they must not inherit a proxy
// transport, and the backend bound still applies.
func TestNewSummarizerDirect(t *testing.T) {
	pol := proxy.Resolve(proxy.Config{}, false, false)
	client := newSummarizer(pipeline.DefaultAppConfig(), pol, nil)

	if client.HTTPClient == nil {
		t.Fatal("HTTPClient not set")
	}
	if client.HTTPClient.Transport != nil {
		t.Errorf("direct client carries a transport: %#v", client.HTTPClient.Transport)
	}
	if client.HTTPClient.Timeout != 2*time.Minute {
		t.Errorf("timeout = %s", client.HTTPClient.Timeout)
	}
}

// WHAT: outcome reporting for denials returns errDenied instead of
// exiting, and writes the retry hint to stderr.
// WHY: exiting from inside the command skips the deferred rate-limit
// database close; the denial must unwind normally.
func TestPrintOutcomeDenied(t *testing.T) {
	var stdout, stderr bytes.Buffer
	err := printOutcome(&pipeline.Outcome{Denied: true, RetryAfter: 90 * time.Second}, &stdout, &stderr)
	if !errors.Is(err, errDenied) {
		t.Fatalf("err = %v, want errDenied", err)
	}
	if !strings.Contains(stderr.String(), "1m30s") {
		t.Errorf("stderr = %q, want retry hint", stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("denial wrote to stdout: %q", stdout.String())
	}
}

// WHAT: successful outcomes print the report (and snapshot) paths.
// WHY: the path on stdout is the CLI's contract for scripting.
func TestPrintOutcomePaths(t *testing.T) {
	var stdout, stderr bytes.Buffer
	out := &pipeline.Outcome{ReportPath: "/tmp/a.md", ContentPath: "/tmp/a-content.md"}
	if err := printOutcome(out, &stdout, &stderr); err != nil {
		t.Fatalf("printOutcome: %v", err)
	}
	if stdout.String() != "/tmp/a.md\n/tmp/a-content.md\n" {
		t.Errorf("stdout = %q", stdout.String())
	}
}
