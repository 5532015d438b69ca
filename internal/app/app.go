// Package app wires configuration, logging and an extraction backend into a
// crawl run. It is shared by the CLI and the HTTP server.
package app

import (
	"context"
	"fmt"

	"keyword-crawler/internal/config"
	"keyword-crawler/internal/crawler"
	"keyword-crawler/internal/direct"
	"keyword-crawler/internal/engine"
	"keyword-crawler/internal/extractor"
	"keyword-crawler/internal/firecrawl"
	"keyword-crawler/internal/models"
	"keyword-crawler/internal/report"
	"keyword-crawler/pkg/logger"
)

// NewLogger builds the process logger from cfg.
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
}

// NewClient returns the extraction backend selected by cfg.
func NewClient(cfg *config.Config, log *logger.Logger) (extractor.Client, error) {
	x := cfg.Extractor
	httpClient := crawler.NewHTTPClient(x.Timeout, x.DialTimeout, x.MaxBodyBytes)
	httpClient.SetUserAgent(x.UserAgent)

	var client extractor.Client
	switch x.Backend {
	case config.BackendFirecrawl:
		log.Info("using firecrawl service", logger.String("endpoint", x.ServiceEndpoint))
		client = firecrawl.New(x.ServiceEndpoint, x.APIKey, httpClient, log)
	case config.BackendDirect:
		client = direct.New(httpClient, log, x.MaxChildSitemaps)
	default:
		return nil, &engine.ConfigurationError{Field: "extractor.backend", Reason: fmt.Sprintf("unknown backend %q", x.Backend)}
	}

	if cfg.Crawl.URLsFile != "" {
		urls, err := report.ReadURLs(cfg.Crawl.URLsFile)
		if err != nil {
			return nil, &engine.ConfigurationError{Field: "crawl.urls_file", Reason: err.Error()}
		}
		log.Info("using url list instead of sitemap discovery",
			logger.String("file", cfg.Crawl.URLsFile),
			logger.Int("urls", len(urls)),
		)
		client = extractor.WithStaticURLs(client, urls)
	}
	return client, nil
}

// Search validates cfg and runs one crawl with client. A non-nil error is
// either a *engine.ConfigurationError, in which case the outcome is empty,
// or the cause of an error outcome.
func Search(ctx context.Context, cfg *config.Config, client extractor.Client, log *logger.Logger) (models.Outcome, error) {
	if err := cfg.Validate(); err != nil {
		return models.Outcome{}, err
	}
	return engine.Run(ctx, cfg.Engine(), client, engine.WithLogger(log))
}
