// Package extractor defines the contract between the crawl engine and the
// backends that enumerate a site's URLs and turn pages into text.
package extractor

import (
	"context"
	"errors"
	"fmt"

	"keyword-crawler/internal/models"
)

// Discoverer enumerates every crawlable URL under a root URL.
type Discoverer interface {
	DiscoverSitemap(ctx context.Context, rootURL string) ([]string, error)
}

// Client discovers URLs and extracts page content.
type Client interface {
	Discoverer
	Extract(ctx context.Context, url string) (*models.Document, error)
}

// ErrEmptyContent is returned when a page was fetched but yielded no text.
var ErrEmptyContent = errors.New("empty content")

// ExtractionError describes the failure to extract one URL.
type ExtractionError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("extract %s: %s", e.URL, e.Reason)
	}
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// AsExtractionError normalizes any error returned for url into an
// *ExtractionError, keeping one that is already of that type.
func AsExtractionError(url string, err error) *ExtractionError {
	var ee *ExtractionError
	if errors.As(err, &ee) {
		if ee.URL == "" {
			ee.URL = url
		}
		if ee.Reason == "" && ee.Err != nil {
			ee.Reason = ee.Err.Error()
		}
		return ee
	}
	return &ExtractionError{URL: url, Reason: err.Error(), Err: err}
}

type staticClient struct {
	Client
	urls []string
}

// WithStaticURLs wraps c so that discovery returns urls instead of asking the
// backend. Extraction still goes through c.
func WithStaticURLs(c Client, urls []string) Client {
	cp := make([]string, len(urls))
	copy(cp, urls)
	return &staticClient{Client: c, urls: cp}
}

func (s *staticClient) DiscoverSitemap(ctx context.Context, rootURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out, nil
}
