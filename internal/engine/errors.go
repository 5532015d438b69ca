package engine

import (
	"errors"
	"fmt"
)

// ErrEmptySitemap is the cause recorded when discovery succeeds but yields no
// usable URL.
var ErrEmptySitemap = errors.New("sitemap contains no urls")

// ConfigurationError reports a missing or invalid required input. No run is
// attempted when one is returned.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

// SitemapDiscoveryError ends a run before any page is processed.
type SitemapDiscoveryError struct {
	URL string
	Err error
}

func (e *SitemapDiscoveryError) Error() string {
	return fmt.Sprintf("sitemap discovery for %s: %v", e.URL, e.Err)
}

func (e *SitemapDiscoveryError) Unwrap() error { return e.Err }
