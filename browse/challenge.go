package browse

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// challengePoll is how often the page is re-inspected while an
// interstitial anti-bot challenge is on screen.
const challengePoll = 2 * time.Second

// challengeMarkers are lowercase substrings that identify a Cloudflare
// style interstitial in the page title or body.
var challengeMarkers = []string{
	"just a moment",
	"checking your browser",
	"verify you are human",
}

// isChallenge reports whether the given title or body text looks like
// an anti-bot interstitial rather than real content.
func isChallenge(title, body string) bool {
	title = strings.ToLower(title)
	body = strings.ToLower(body)
	for _, m := range challengeMarkers {
		if strings.Contains(title, m) {
			return true
		}
	}
	// Interstitials are near-empty pages; a marker buried in a long
	// article about Cloudflare is not a challenge.
	if len(body) < 2000 {
		for _, m := range challengeMarkers {
			if strings.Contains(body, m) {
				return true
			}
		}
	}
	return false
}

// waitChallenge polls the page until the interstitial clears or ctx
// expires. Pages without a challenge return immediately.
func waitChallenge(ctx context.Context, p *rod.Page, log *slog.Logger) error {
	for {
		title, err := evalString(p, `() => document.title || ""`)
		if err != nil {
			return err
		}
		body, err := evalString(p, `() => document.body.innerText || ""`)
		if err != nil {
			return err
		}
		if !isChallenge(title, body) {
			return nil
		}

		log.Debug("browse: challenge page detected, waiting", "title", title)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(challengePoll):
		}
	}
}
