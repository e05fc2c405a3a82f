// Package browse drives a headless Chrome via Rod to render a URL and
// harvest its visible text. Sessions are configured to minimise
// automated-traffic fingerprinting: stealth page patches, a realistic
// desktop user agent, and a human-like viewport, with automation flags
// disabled at launch.
//
// From the caller's perspective extraction is a single blocking call
// that completes, fails, or times out; the browser is a scoped resource
// torn down on every exit path.
package browse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

const (
	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

	viewportWidth  = 1280
	viewportHeight = 720
	timezoneID     = "America/New_York"

	// networkQuiet is how long the network must stay quiet after load
	// before the page counts as fully rendered.
	networkQuiet = 500 * time.Millisecond
)

// ErrEmptyContent is returned when a rendered page yields no usable text.
var ErrEmptyContent = errors.New("browse: page produced no usable text")

// NavigationError reports a navigation or render-wait failure.
type NavigationError struct {
	URL     string
	Timeout time.Duration
	Cause   error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("browse: navigate %s (timeout %s): %v", e.URL, e.Timeout, e.Cause)
}

func (e *NavigationError) Unwrap() error { return e.Cause }

// Config configures a browser session.
type Config struct {
	// Headless runs Chrome without a window. Default: true (set
	// Headful to disable, the zero Config must mean headless).
	Headful bool

	// NavTimeout bounds navigation plus render wait. Default: 60s.
	NavTimeout time.Duration

	// MinTextLen is the threshold below which extracted text counts as
	// empty. Default: 50.
	MinTextLen int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 60 * time.Second
	}
	if c.MinTextLen <= 0 {
		c.MinTextLen = 50
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Result is the harvested content of one rendered page.
type Result struct {
	// Text is document.body.innerText after script execution.
	Text string

	// Title is document.title, may be empty.
	Title string

	// HTML is the rendered document's outer HTML, kept for the
	// article-snapshot output.
	HTML string
}

// Browser owns one Chrome process. Close must be called on every path;
// it kills the launched process so no handles leak past the run.
type Browser struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// Open launches Chrome with anti-detection flags, optionally routed
// through the given proxy endpoint (empty means direct).
func Open(cfg Config, proxyURL string) (*Browser, error) {
	cfg.defaults()

	l := launcher.New().
		Headless(!cfg.Headful).
		Set("disable-blink-features", "AutomationControlled").
		Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-extensions")

	if proxyURL != "" {
		l = l.Proxy(proxyURL)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browse: launch: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browse: connect: %w", err)
	}

	cfg.Logger.Debug("browse: launched chrome", "proxy", proxyURL, "headful", cfg.Headful)
	return &Browser{cfg: cfg, browser: b, lnch: l}, nil
}

// Close shuts down Chrome and reaps the launched process.
func (b *Browser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		if err != nil {
			// The graceful CDP close failed; the process may still be
			// alive, so force it down before reclaiming the data dir.
			b.lnch.Kill()
		}
		b.lnch.Cleanup()
		b.lnch = nil
	}
	return err
}

// Extract navigates to url, waits for a stable fully-rendered state,
// and returns the page's visible text. The page is closed on every
// path. Timeout failures surface as *NavigationError; a rendered page
// below the text threshold fails with ErrEmptyContent.
func (b *Browser) Extract(ctx context.Context, url string) (*Result, error) {
	log := b.cfg.Logger

	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("browse: create page: %w", err)
	}
	defer page.Close()

	if err := preparePage(page); err != nil {
		return nil, fmt.Errorf("browse: prepare page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavTimeout)
	defer cancel()
	p := page.Context(navCtx)

	if err := p.Navigate(url); err != nil {
		return nil, &NavigationError{URL: url, Timeout: b.cfg.NavTimeout, Cause: err}
	}
	if err := p.WaitLoad(); err != nil {
		return nil, &NavigationError{URL: url, Timeout: b.cfg.NavTimeout, Cause: err}
	}
	waitIdle := p.WaitRequestIdle(networkQuiet, nil, nil, nil)
	waitIdle()
	if navCtx.Err() != nil {
		return nil, &NavigationError{URL: url, Timeout: b.cfg.NavTimeout, Cause: navCtx.Err()}
	}

	if err := waitChallenge(navCtx, p, log); err != nil {
		return nil, &NavigationError{URL: url, Timeout: b.cfg.NavTimeout, Cause: err}
	}

	text, err := evalString(p, `() => document.body.innerText || ""`)
	if err != nil {
		return nil, fmt.Errorf("browse: read page text: %w", err)
	}
	text = strings.TrimSpace(text)
	if len(text) < b.cfg.MinTextLen {
		return nil, fmt.Errorf("%w: %d characters from %s", ErrEmptyContent, len(text), url)
	}

	title, err := evalString(p, `() => document.title || ""`)
	if err != nil {
		log.Debug("browse: read title failed", "url", url, "error", err)
	}
	html, err := evalString(p, `() => document.documentElement.outerHTML`)
	if err != nil {
		log.Debug("browse: read html failed", "url", url, "error", err)
	}

	return &Result{Text: text, Title: strings.TrimSpace(title), HTML: html}, nil
}

// preparePage applies the fingerprint surface: user agent, language,
// viewport, and timezone.
func preparePage(page *rod.Page) error {
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      userAgent,
		AcceptLanguage: "en-US,en",
	}); err != nil {
		return err
	}
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return err
	}
	return proto.EmulationSetTimezoneOverride{TimezoneID: timezoneID}.Call(page)
}

func evalString(p *rod.Page, js string) (string, error) {
	res, err := p.Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}
