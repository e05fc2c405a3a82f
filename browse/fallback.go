package browse

import (
	"context"
	"fmt"

	"github.com/hazyhaar/gistify/proxy"
)

// ExtractWithFallback renders url trying each egress route the policy
// offers: every configured proxy once, then a direct connection. Each
// attempt gets a fresh browser so a dead proxy cannot poison later
// routes. The first successful render wins; if every route fails the
// last error is returned.
func ExtractWithFallback(ctx context.Context, cfg Config, url string, pol *proxy.Policy) (*Result, error) {
	cfg.defaults()
	log := cfg.Logger

	var lastErr error
	for _, egress := range pol.Attempts() {
		if ctx.Err() != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, ctx.Err()
		}

		res, err := extractVia(ctx, cfg, url, egress)
		if err == nil {
			return res, nil
		}
		lastErr = err

		route := egress
		if route == "" {
			route = "direct"
		}
		log.Warn("browse: extraction attempt failed", "url", url, "route", route, "error", err)
	}

	if lastErr == nil {
		return nil, fmt.Errorf("browse: no egress route available for %s", url)
	}
	return nil, lastErr
}

func extractVia(ctx context.Context, cfg Config, url, egress string) (*Result, error) {
	b, err := Open(cfg, egress)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	return b.Extract(ctx, url)
}
