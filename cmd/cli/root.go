package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"keyword-crawler/internal/app"
	"keyword-crawler/internal/config"
	"keyword-crawler/internal/engine"
	"keyword-crawler/internal/models"
	"keyword-crawler/internal/report"
)

const version = "1.0.0"

// Process exit codes.
const (
	exitFound     = 0
	exitNotFound  = 1
	exitConfig    = 2
	exitRunFailed = 3
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

var (
	cfgFile  string
	output   string
	format   string
	failures string

	rootCmd = &cobra.Command{
		Use:           "keyword-crawler",
		Short:         "Search a website for a keyword, page by page",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Crawl the target site until the keyword is found or every page is checked",
		Example: `  keyword-crawler run --url https://python.langchain.com --keyword "How to track token usage for LLMs"
  keyword-crawler run --url https://example.com --keyword pricing --backend direct --format json`,
		RunE: runSearch,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "keyword-crawler version %s\n", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml or ./config/config.yaml)")

	f := runCmd.Flags()
	f.String("url", "", "root URL of the site to search")
	f.String("keyword", "", "keyword to look for (case-insensitive)")
	f.Int("batch-size", config.DefaultBatchSize, "URLs per batch")
	f.Int("concurrency", config.DefaultConcurrency, "URLs of a batch extracted in parallel (at most batch-size)")
	f.String("urls-file", "", "CSV or NDJSON list of URLs to use instead of sitemap discovery")
	f.String("backend", config.BackendFirecrawl, "extraction backend: firecrawl or direct")
	f.String("endpoint", config.DefaultEndpoint, "firecrawl service endpoint")
	f.Duration("timeout", config.DefaultTimeout, "per-request timeout")
	f.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	f.StringVarP(&output, "output", "o", "", "write the report to this file instead of stdout")
	f.StringVar(&format, "format", "summary", "report format: summary or json")
	f.StringVar(&failures, "failures", "", "also write extraction failures to this file as NDJSON")

	rootCmd.AddCommand(runCmd, versionCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if format != "summary" && format != "json" {
		return &exitError{code: exitConfig, err: fmt.Errorf("unknown format %q", format)}
	}

	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	if err := cfg.Validate(); err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}
	defer func() { _ = log.Sync() }()

	client, err := app.NewClient(cfg, log)
	if err != nil {
		return &exitError{code: exitConfig, err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, runErr := app.Search(ctx, cfg, client, log)
	if engine.IsConfigurationError(runErr) {
		return &exitError{code: exitConfig, err: runErr}
	}

	if err := writeReport(cmd.OutOrStdout(), out); err != nil {
		return &exitError{code: exitRunFailed, err: err}
	}
	if failures != "" {
		if err := writeFailures(failures, out.Failures); err != nil {
			return &exitError{code: exitRunFailed, err: err}
		}
	}

	switch out.Kind {
	case models.OutcomeFound:
		return nil
	case models.OutcomeExhausted:
		return &exitError{code: exitNotFound}
	default:
		return &exitError{code: exitRunFailed}
	}
}

func writeReport(stdout io.Writer, out models.Outcome) error {
	w := stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if format == "json" {
		return report.WriteJSON(w, out)
	}
	return report.WriteSummary(w, out)
}

func writeFailures(path string, items []models.Failure) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create failures file: %w", err)
	}
	if err := report.WriteNDJSON(f, items); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
