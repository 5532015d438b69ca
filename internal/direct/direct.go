// Package direct is an extraction backend that fetches pages itself instead
// of delegating to an external service.
package direct

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"keyword-crawler/internal/crawler"
	"keyword-crawler/internal/extractor"
	"keyword-crawler/internal/models"
	"keyword-crawler/internal/parser"
	"keyword-crawler/internal/sitemap"
	"keyword-crawler/pkg/logger"
)

const sitemapAccept = "application/xml,text/xml;q=0.9,*/*;q=0.5"

// DefaultMaxChildSitemaps bounds how many children of a sitemap index are read.
const DefaultMaxChildSitemaps = 20

type Client struct {
	http        *crawler.HTTPClient
	parser      *parser.Parser
	log         *logger.Logger
	maxChildren int
}

var _ extractor.Client = (*Client)(nil)

func New(httpClient *crawler.HTTPClient, log *logger.Logger, maxChildSitemaps int) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	if maxChildSitemaps <= 0 {
		maxChildSitemaps = DefaultMaxChildSitemaps
	}
	return &Client{
		http:        httpClient,
		parser:      parser.New(),
		log:         log,
		maxChildren: maxChildSitemaps,
	}
}

// DiscoverSitemap reads {root}/sitemap.xml, following one level of sitemap
// index. When the site serves no sitemap it falls back to the root page plus
// the same-host links found on it.
func (c *Client) DiscoverSitemap(ctx context.Context, rootURL string) ([]string, error) {
	root, err := url.Parse(rootURL)
	if err != nil || root.Scheme == "" || root.Host == "" {
		return nil, fmt.Errorf("invalid root url %q", rootURL)
	}
	smURL := root.ResolveReference(&url.URL{Path: "/sitemap.xml"}).String()

	doc, err := c.fetchSitemap(ctx, smURL)
	switch {
	case err == nil:
	case crawler.IsNotFound(err), errors.Is(err, sitemap.ErrNotSitemap):
		c.log.Info("no sitemap served, falling back to root page links", logger.String("sitemap", smURL))
		return c.rootLinks(ctx, root)
	default:
		return nil, err
	}

	if doc.Kind == sitemap.KindURLSet {
		return doc.Locs, nil
	}

	var urls []string
	for i, child := range doc.Locs {
		if i == c.maxChildren {
			c.log.Warn("sitemap index truncated",
				logger.Int("children", len(doc.Locs)),
				logger.Int("limit", c.maxChildren),
			)
			break
		}
		sub, err := c.fetchSitemap(ctx, child)
		if err != nil {
			c.log.Warn("child sitemap skipped", logger.String("sitemap", child), logger.Err(err))
			continue
		}
		if sub.Kind != sitemap.KindURLSet {
			c.log.Warn("nested sitemap index ignored", logger.String("sitemap", child))
			continue
		}
		urls = append(urls, sub.Locs...)
	}
	return urls, nil
}

func (c *Client) fetchSitemap(ctx context.Context, smURL string) (*sitemap.Document, error) {
	resp, err := c.http.Get(ctx, smURL, sitemapAccept)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return sitemap.Parse(resp.Body)
}

func (c *Client) rootLinks(ctx context.Context, root *url.URL) ([]string, error) {
	resp, err := c.http.FetchHTML(ctx, root.String())
	if err != nil {
		return nil, fmt.Errorf("fetch root page: %w", err)
	}
	defer resp.Body.Close()

	page, err := c.parser.Extract(resp.Body, resp.ContentType, resp.FinalURL)
	if err != nil {
		return nil, fmt.Errorf("parse root page: %w", err)
	}

	urls := []string{root.String()}
	for _, link := range page.Links {
		u, err := url.Parse(link)
		if err != nil || !strings.EqualFold(u.Host, root.Host) {
			continue
		}
		urls = append(urls, link)
	}
	return urls, nil
}

// Extract fetches an HTML page and returns its text.
func (c *Client) Extract(ctx context.Context, pageURL string) (*models.Document, error) {
	resp, err := c.http.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, &extractor.ExtractionError{URL: pageURL, Reason: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	page, err := c.parser.Extract(resp.Body, resp.ContentType, resp.FinalURL)
	if err != nil {
		return nil, &extractor.ExtractionError{URL: pageURL, Reason: "parse: " + err.Error(), Err: err}
	}
	if page.Content.Text == "" {
		return nil, &extractor.ExtractionError{URL: pageURL, Reason: extractor.ErrEmptyContent.Error(), Err: extractor.ErrEmptyContent}
	}
	c.log.Debug("page extracted",
		logger.String("url", pageURL),
		logger.Int("words", page.Content.WordCount),
		logger.Duration("elapsed", resp.Elapsed),
	)
	return &models.Document{
		URL:     pageURL,
		Title:   page.Meta.Title,
		Content: page.Content.Text,
		Format:  models.FormatText,
	}, nil
}
