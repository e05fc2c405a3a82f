// Package report writes summarization results as Markdown files.
//
// Files are written atomically (write .tmp then rename) so a consumer
// watching the output directory never sees a partial document.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Document is one summarization result ready to render.
type Document struct {
	// Title is the page or PDF title; empty falls back to "Untitled Article".
	Title string

	// Source is the reference the summary was produced from, as the
	// user supplied it.
	Source string

	Summary string

	// GeneratedAt stamps the footer. Zero means time.Now.
	GeneratedAt time.Time
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify converts a title to a filename-safe slug, capped at 80 runes.
func Slugify(title string) string {
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		return "summary"
	}
	if len(slug) > 80 {
		slug = strings.Trim(slug[:80], "-")
	}
	return slug
}

// Render produces the Markdown document body.
func Render(doc Document) string {
	title := doc.Title
	if title == "" {
		title = "Untitled Article"
	}
	when := doc.GeneratedAt
	if when.IsZero() {
		when = time.Now()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "**Source:** %s\n\n", doc.Source)
	b.WriteString("---\n\n## Summary\n\n")
	b.WriteString(strings.TrimSpace(doc.Summary))
	b.WriteString("\n\n---\n")
	fmt.Fprintf(&b, "*Generated by gistify on %s*\n", when.Format("2006-01-02"))
	return b.String()
}

// Write renders doc into dir (created if needed) under a slug derived
// from the title, returning the written path. An explicit path may be
// passed via WriteTo instead.
func Write(dir string, doc Document) (string, error) {
	path := filepath.Join(dir, Slugify(doc.Title)+".md")
	return path, WriteTo(path, doc)
}

// WriteTo renders doc to an exact path, creating parent directories.
func WriteTo(path string, doc Document) error {
	return writeAtomic(path, []byte(Render(doc)))
}

// WriteContent writes an article-body Markdown snapshot into dir as
// <slug>-content.md, returning the written path.
func WriteContent(dir, slug, markdown string) (string, error) {
	path := filepath.Join(dir, slug+"-content.md")
	return path, writeAtomic(path, []byte(markdown))
}

// writeAtomic writes via a temp file and rename so a crashed run never
// leaves a half-written document behind.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: mkdir %s: %w", filepath.Dir(path), err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("report: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("report: rename %s: %w", path, err)
	}
	return nil
}
