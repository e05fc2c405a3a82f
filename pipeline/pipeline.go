// Package pipeline orchestrates one summarization run: classify the
// input, extract its text, pass the shared rate-limit gate, call the
// summarization backend, and write the Markdown report.
//
// The rate limit is checked and recorded atomically only after
// extraction succeeds, so a page that fails to render never burns a
// call slot. A denied run is not an error: it returns an Outcome that
// carries the wait the caller should report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hazyhaar/gistify/browse"
	"github.com/hazyhaar/gistify/pdftext"
	"github.com/hazyhaar/gistify/proxy"
	"github.com/hazyhaar/gistify/ratelimit"
	"github.com/hazyhaar/gistify/report"
	"github.com/hazyhaar/gistify/source"
)

// Limiter gates backend calls. *ratelimit.Limiter implements it.
type Limiter interface {
	CheckAndRecord(ctx context.Context) (ratelimit.Decision, error)
}

// Summarizer produces a summary for extracted text. *backend.Client
// implements it.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Config wires the pipeline's collaborators.
type Config struct {
	// OutputDir is where reports are written. Default: current dir.
	OutputDir string

	// Policy selects egress routes for extraction. Required.
	Policy *proxy.Policy

	// Limiter gates backend calls. Required.
	Limiter Limiter

	// Summarizer calls the backend. Required.
	Summarizer Summarizer

	// Browse configures page rendering.
	Browse browse.Config

	Logger *slog.Logger
	Now    func() time.Time
}

func (c *Config) defaults() {
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// RunOptions tunes a single run.
type RunOptions struct {
	// DumpContent also writes the extracted article body as Markdown
	// next to the report. Only meaningful for rendered pages.
	DumpContent bool
}

// Outcome is the result of one run. Denied means the rate limiter
// refused the call; nothing was sent to the backend and no report was
// written.
type Outcome struct {
	Denied     bool
	RetryAfter time.Duration

	ReportPath  string
	ContentPath string
	Title       string
}

// extraction is the normalized output of any of the three source
// branches.
type extraction struct {
	text  string
	title string
	html  string
}

// Pipeline runs summarization end to end. The hook fields default to
// the real extractors and exist so tests can run without Chrome or
// network.
type Pipeline struct {
	cfg Config

	extractPage      func(ctx context.Context, url string) (*browse.Result, error)
	extractRemotePDF func(ctx context.Context, url string, client *http.Client) (*pdftext.Doc, error)
	extractFilePDF   func(path string) (*pdftext.Doc, error)
}

// New validates cfg and returns a ready pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Policy == nil {
		return nil, errors.New("pipeline: Policy is required")
	}
	if cfg.Limiter == nil {
		return nil, errors.New("pipeline: Limiter is required")
	}
	if cfg.Summarizer == nil {
		return nil, errors.New("pipeline: Summarizer is required")
	}
	cfg.defaults()

	p := &Pipeline{cfg: cfg}
	p.extractPage = func(ctx context.Context, url string) (*browse.Result, error) {
		return browse.ExtractWithFallback(ctx, p.cfg.Browse, url, p.cfg.Policy)
	}
	p.extractRemotePDF = pdftext.ExtractRemote
	p.extractFilePDF = pdftext.ExtractFile
	return p, nil
}

// Run executes one summarization. Extraction failures, backend
// failures, and write failures are returned as errors; a rate-limit
// denial is a normal Outcome.
func (p *Pipeline) Run(ctx context.Context, raw string, opts RunOptions) (*Outcome, error) {
	log := p.cfg.Logger

	ref, err := source.Classify(raw)
	if err != nil {
		return nil, err
	}
	log.Debug("pipeline: classified input", "kind", ref.Kind.String(), "target", ref.Target)

	ext, err := p.extract(ctx, ref)
	if err != nil {
		return nil, err
	}
	log.Debug("pipeline: extracted text", "chars", len(ext.text), "title", ext.title)

	decision, err := p.cfg.Limiter.CheckAndRecord(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: rate limit check: %w", err)
	}
	if !decision.Allowed {
		log.Info("pipeline: rate limit reached", "retry_after", decision.RetryAfter)
		return &Outcome{Denied: true, RetryAfter: decision.RetryAfter}, nil
	}

	summary, err := p.cfg.Summarizer.Summarize(ctx, ext.text)
	if err != nil {
		return nil, fmt.Errorf("pipeline: summarize: %w", err)
	}

	doc := report.Document{
		Title:       ext.title,
		Source:      ref.Raw,
		Summary:     summary,
		GeneratedAt: p.cfg.Now(),
	}
	path, err := report.Write(p.cfg.OutputDir, doc)
	if err != nil {
		return nil, fmt.Errorf("pipeline: write report: %w", err)
	}

	out := &Outcome{ReportPath: path, Title: ext.title}
	if opts.DumpContent && ext.html != "" {
		contentPath, err := p.writeContent(doc, ext.html)
		if err != nil {
			// The report is already on disk; a failed snapshot is not
			// worth failing the whole run.
			log.Warn("pipeline: content snapshot failed", "error", err)
		} else {
			out.ContentPath = contentPath
		}
	}
	return out, nil
}

// extract dispatches to the branch matching the reference kind and
// normalizes the result.
func (p *Pipeline) extract(ctx context.Context, ref source.Reference) (*extraction, error) {
	switch ref.Kind {
	case source.KindLocalPDF:
		doc, err := p.extractFilePDF(ref.Target)
		if err != nil {
			return nil, err
		}
		return &extraction{text: doc.Text, title: doc.Title}, nil

	case source.KindArxiv:
		doc, err := p.fetchRemotePDF(ctx, ref.Target)
		if err != nil {
			return nil, err
		}
		return &extraction{text: doc.Text, title: doc.Title}, nil

	case source.KindGenericURL:
		res, err := p.extractPage(ctx, ref.Target)
		if err != nil {
			return nil, err
		}
		title := res.Title
		if title == "" {
			title = report.TitleFromHTML(res.HTML)
		}
		return &extraction{text: res.Text, title: title, html: res.HTML}, nil

	default:
		return nil, fmt.Errorf("pipeline: unhandled reference kind %v", ref.Kind)
	}
}

// fetchRemotePDF downloads through each egress route the policy
// offers, matching the page extractor's proxy-then-direct fallback.
func (p *Pipeline) fetchRemotePDF(ctx context.Context, url string) (*pdftext.Doc, error) {
	var lastErr error
	for _, egress := range p.cfg.Policy.Attempts() {
		if ctx.Err() != nil {
			break
		}
		client := proxy.HTTPClientFor(egress, http.Client{})
		doc, err := p.extractRemotePDF(ctx, url, client)
		if err == nil {
			return doc, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, fmt.Errorf("pipeline: no egress route for %s", url)
	}
	return nil, lastErr
}

// writeContent writes the sanitized article body as Markdown next to
// the report, named after the same slug.
func (p *Pipeline) writeContent(doc report.Document, pageHTML string) (string, error) {
	md, err := report.ContentMarkdown(pageHTML)
	if err != nil {
		return "", err
	}
	return report.WriteContent(p.cfg.OutputDir, report.Slugify(doc.Title), md)
}
