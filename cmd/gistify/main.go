// Command gistify summarizes a web page, arXiv reference, or local PDF
// into a Markdown report, with a shared hourly budget on backend calls.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/hazyhaar/gistify/backend"
	"github.com/hazyhaar/gistify/browse"
	"github.com/hazyhaar/gistify/pipeline"
	"github.com/hazyhaar/gistify/proxy"
	"github.com/hazyhaar/gistify/ratelimit"
)

// version is set at build time via ldflags.
var version = "dev"

// errDenied signals a rate-limit denial that was already reported to
// the user; main exits non-zero without a second error line.
var errDenied = errors.New("rate limit denied")

var (
	flagOutput      string
	flagConfig      string
	flagDebug       bool
	flagProxy       bool
	flagNoProxy     bool
	flagDumpContent bool
	flagHeadful     bool
)

func main() {
	root := &cobra.Command{
		Use:     "gistify <url | arXiv id | pdf path>",
		Short:   "Summarize articles and papers into Markdown reports",
		Version: version,
		Long: `gistify fetches an article or paper, extracts its text, and asks a
summarization backend for a digest, written as a Markdown report.

Inputs can be a regular URL (rendered in a headless browser), an arXiv
reference like 2301.07041 or arxiv.org/abs/..., or a local PDF file.
Backend calls share a rolling 10-per-hour budget across all processes
on the machine.`,
		Args:          cobra.ExactArgs(1),
		RunE:          runSummarize,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.Flags().StringVarP(&flagOutput, "output", "o", "", "directory for the report (default from config, else current dir)")
	root.Flags().BoolVar(&flagDumpContent, "dump-content", false, "also write the extracted article body as Markdown")
	root.Flags().BoolVar(&flagProxy, "proxy", false, "force proxy usage on")
	root.Flags().BoolVar(&flagNoProxy, "no-proxy", false, "force proxy usage off")
	root.MarkFlagsMutuallyExclusive("proxy", "no-proxy")

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.gistify/config.yaml)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "verbose logging")
	root.PersistentFlags().BoolVar(&flagHeadful, "headful", false, "show the browser window")

	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the summarizer as an MCP tool over stdio",
		Args:  cobra.NoArgs,
		RunE:  runMCP,
	}
	root.AddCommand(mcpCmd)

	if err := root.Execute(); err != nil {
		if !errors.Is(err, errDenied) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func setupLogger() *slog.Logger {
	lvl := slog.LevelInfo
	if flagDebug {
		lvl = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(log)
	return log
}

// newSummarizer builds the backend client routed through the resolved
// egress policy. The summarization POST uses the same proxy pool as
// extraction; a disabled policy yields a plain direct client.
func newSummarizer(appCfg pipeline.AppConfig, pol *proxy.Policy, log *slog.Logger) *backend.Client {
	return &backend.Client{
		URL:        appCfg.BackendURL,
		HTTPClient: proxy.HTTPClientFor(pol.Next(), http.Client{Timeout: backend.RequestTimeout}),
		Debug:      flagDebug,
		Logger:     log,
	}
}

// buildPipeline assembles the real collaborators from config and flags.
// The returned cleanup closes the rate-limit database.
func buildPipeline(log *slog.Logger) (*pipeline.Pipeline, func(), error) {
	cfgPath := flagConfig
	if cfgPath == "" {
		cfgPath = pipeline.DefaultConfigPath()
	}
	appCfg := pipeline.LoadAppConfig(cfgPath, log)

	outputDir := appCfg.OutputDir
	if flagOutput != "" {
		outputDir = flagOutput
	}

	pol := proxy.Resolve(proxy.Load(appCfg.ProxyConfig, log), flagProxy, flagNoProxy)

	limiter, err := ratelimit.Open(appCfg.RateLimitDB, ratelimit.Config{Logger: log})
	if err != nil {
		return nil, nil, fmt.Errorf("open rate-limit state: %w", err)
	}

	p, err := pipeline.New(pipeline.Config{
		OutputDir:  outputDir,
		Policy:     pol,
		Limiter:    limiter,
		Summarizer: newSummarizer(appCfg, pol, log),
		Browse: browse.Config{
			Headful:    flagHeadful,
			NavTimeout: appCfg.NavTimeout(),
			Logger:     log,
		},
		Logger: log,
	})
	if err != nil {
		limiter.Close()
		return nil, nil, err
	}
	return p, func() { limiter.Close() }, nil
}

// printOutcome reports the run result. Denials write the retry hint to
// stderr and return errDenied so deferred cleanup still runs before
// the process exits non-zero.
func printOutcome(out *pipeline.Outcome, stdout, stderr io.Writer) error {
	if out.Denied {
		fmt.Fprintf(stderr, "Rate limit reached: try again in %s.\n", out.RetryAfter.Round(time.Second))
		return errDenied
	}
	fmt.Fprintln(stdout, out.ReportPath)
	if out.ContentPath != "" {
		fmt.Fprintln(stdout, out.ContentPath)
	}
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	log := setupLogger()

	p, cleanup, err := buildPipeline(log)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := p.Run(ctx, args[0], pipeline.RunOptions{DumpContent: flagDumpContent})
	if err != nil {
		return err
	}
	return printOutcome(out, os.Stdout, os.Stderr)
}

func runMCP(cmd *cobra.Command, args []string) error {
	log := setupLogger()

	p, cleanup, err := buildPipeline(log)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "gistify",
		Version: version,
	}, nil)
	p.RegisterMCP(srv)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("mcp server starting on stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}
