// Package backend calls the remote summarization service. The service
// is an opaque collaborator: this client serializes the request,
// classifies the response, and never interprets summary content.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultURL is the Gistify serverless summarization endpoint.
const DefaultURL = "https://tourmaline-gaufre-130bc5.netlify.app/.netlify/functions/summarize"

// RequestTimeout bounds one summarization call, including the
// service's own processing time. Callers supplying their own
// HTTPClient (for proxied egress) should carry the same bound.
const RequestTimeout = 120 * time.Second

// Error reports a failed or rejected backend call. The cause is outside
// this system's control, so Message carries the service's own words.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend: %s", e.Message)
}

// Client talks to the summarization service.
type Client struct {
	// URL of the summarize endpoint. Default: DefaultURL.
	URL string

	// HTTPClient carries the resolved proxy transport. Default: plain
	// client with a 120s timeout.
	HTTPClient *http.Client

	// Debug logs the raw response body.
	Debug bool

	Logger *slog.Logger
}

func (c *Client) defaults() {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: RequestTimeout}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type summarizeRequest struct {
	Text string `json:"text"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
	Error   string `json:"error"`
}

// Summarize POSTs the extracted text and returns the summary string.
// Any non-success status, an error field in the body, or a missing
// summary surfaces as *Error.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	c.defaults()

	body, err := json.Marshal(summarizeRequest{Text: text})
	if err != nil {
		return "", fmt.Errorf("backend: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("backend: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("backend: post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("backend: read response: %w", err)
	}

	if c.Debug {
		c.Logger.Debug("backend: response", "status", resp.StatusCode, "body", string(raw))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &Error{StatusCode: resp.StatusCode, Message: "rate limited by the summarization service, try again later"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &Error{StatusCode: resp.StatusCode, Message: truncate(string(raw), 500)}
	}

	var sr summarizeResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return "", &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("unparsable response: %s", truncate(string(raw), 200))}
	}
	if sr.Error != "" {
		return "", &Error{StatusCode: resp.StatusCode, Message: sr.Error}
	}
	if sr.Summary == "" {
		return "", &Error{StatusCode: resp.StatusCode, Message: "no summary received from server"}
	}

	return sr.Summary, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
