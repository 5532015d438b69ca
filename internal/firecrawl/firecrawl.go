// Package firecrawl talks to a Firecrawl-compatible extraction service: /v1/map
// enumerates a site's links and /v1/scrape returns a page as markdown and HTML.
package firecrawl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"keyword-crawler/internal/crawler"
	"keyword-crawler/internal/extractor"
	"keyword-crawler/internal/models"
	"keyword-crawler/pkg/logger"
)

// DefaultEndpoint is where a self-hosted Firecrawl listens by default.
const DefaultEndpoint = "http://localhost:3002"

type Client struct {
	endpoint string
	apiKey   string
	http     *crawler.HTTPClient
	log      *logger.Logger
}

var _ extractor.Client = (*Client)(nil)

func New(endpoint, apiKey string, httpClient *crawler.HTTPClient, log *logger.Logger) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     httpClient,
		log:      log,
	}
}

type mapRequest struct {
	URL string `json:"url"`
}

type mapResponse struct {
	Success bool     `json:"success"`
	Links   []string `json:"links"`
	Error   string   `json:"error"`
}

type scrapeRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type scrapeResponse struct {
	Success bool       `json:"success"`
	Data    scrapeData `json:"data"`
	Error   string     `json:"error"`
}

type scrapeData struct {
	Markdown string         `json:"markdown"`
	HTML     string         `json:"html"`
	RawHTML  string         `json:"rawHtml"`
	Text     string         `json:"text"`
	Metadata scrapeMetadata `json:"metadata"`
}

type scrapeMetadata struct {
	Title      string `json:"title"`
	SourceURL  string `json:"sourceURL"`
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
}

// DiscoverSitemap asks the service to map every link reachable from rootURL.
func (c *Client) DiscoverSitemap(ctx context.Context, rootURL string) ([]string, error) {
	var resp mapResponse
	err := c.http.PostJSON(ctx, c.endpoint+"/v1/map", c.header(), mapRequest{URL: rootURL}, &resp)
	if err = serviceError(err, resp.Success, resp.Error); err != nil {
		return nil, fmt.Errorf("map %s: %w", rootURL, err)
	}
	c.log.Debug("site mapped", logger.String("url", rootURL), logger.Int("links", len(resp.Links)))
	return resp.Links, nil
}

// Extract scrapes one page. Markdown is preferred, then HTML, then plain text.
func (c *Client) Extract(ctx context.Context, pageURL string) (*models.Document, error) {
	var resp scrapeResponse
	req := scrapeRequest{URL: pageURL, Formats: []string{"markdown", "html"}}
	err := c.http.PostJSON(ctx, c.endpoint+"/v1/scrape", c.header(), req, &resp)
	if err = serviceError(err, resp.Success, resp.Error); err != nil {
		return nil, &extractor.ExtractionError{URL: pageURL, Reason: err.Error(), Err: err}
	}

	doc := &models.Document{URL: pageURL, Title: resp.Data.Metadata.Title}
	switch d := resp.Data; {
	case strings.TrimSpace(d.Markdown) != "":
		doc.Content, doc.Format = d.Markdown, models.FormatMarkdown
	case strings.TrimSpace(d.HTML) != "":
		doc.Content, doc.Format = d.HTML, models.FormatHTML
	case strings.TrimSpace(d.RawHTML) != "":
		doc.Content, doc.Format = d.RawHTML, models.FormatHTML
	case strings.TrimSpace(d.Text) != "":
		doc.Content, doc.Format = d.Text, models.FormatText
	default:
		reason := extractor.ErrEmptyContent.Error()
		if m := resp.Data.Metadata; m.Error != "" {
			reason = m.Error
		}
		return nil, &extractor.ExtractionError{URL: pageURL, Reason: reason, Err: extractor.ErrEmptyContent}
	}
	return doc, nil
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set("Authorization", "Bearer "+c.apiKey)
	}
	return h
}

// serviceError folds a transport error and the service's own success flag
// into one error carrying the most specific message available.
func serviceError(err error, success bool, msg string) error {
	switch {
	case err != nil && msg != "":
		return fmt.Errorf("%s: %w", msg, err)
	case err != nil:
		return err
	case !success && msg != "":
		return errors.New(msg)
	case !success:
		return errors.New("service reported failure")
	}
	return nil
}
