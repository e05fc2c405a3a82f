package pdftext

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// MaxFileSize caps PDF input at 50 MB, local or remote.
const MaxFileSize = 50 * 1024 * 1024

const fetchTimeout = 60 * time.Second

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// ExtractFile reads a local PDF and extracts its text.
func ExtractFile(path string) (*Doc, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("pdftext: stat %s: %w", path, err)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("pdftext: %s: %d bytes exceeds %d byte limit", path, info.Size(), MaxFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pdftext: read %s: %w", path, err)
	}
	return Extract(data)
}

// ExtractRemote downloads a PDF and extracts its text. The client
// carries the resolved proxy transport; nil means a direct default.
func ExtractRemote(ctx context.Context, url string, client *http.Client) (*Doc, error) {
	if client == nil {
		client = &http.Client{}
	}

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("pdftext: new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pdftext: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("pdftext: fetch %s: HTTP %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("pdftext: read body: %w", err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("pdftext: %s: response exceeds %d byte limit", url, MaxFileSize)
	}

	return Extract(data)
}
