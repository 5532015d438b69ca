// Package sitemap parses sitemap XML documents (urlset and sitemapindex).
package sitemap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind identifies the root element of a sitemap document.
type Kind int

const (
	KindUnknown Kind = iota
	KindURLSet
	KindIndex
)

// ErrNotSitemap is returned when the document root is neither urlset nor
// sitemapindex.
var ErrNotSitemap = errors.New("not a sitemap document")

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlLoc `xml:"url"`
}

type xmlIndex struct {
	XMLName  xml.Name `xml:"sitemapindex"`
	Sitemaps []xmlLoc `xml:"sitemap"`
}

type xmlLoc struct {
	Loc string `xml:"loc"`
}

// Document is a parsed sitemap. For KindURLSet Locs are page URLs, for
// KindIndex they are child sitemap URLs.
type Document struct {
	Kind Kind
	Locs []string
}

// Parse reads a sitemap or sitemap index.
func Parse(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read sitemap: %w", err)
	}

	root, err := rootElement(data)
	if err != nil {
		return nil, err
	}

	switch root {
	case "urlset":
		var set xmlURLSet
		if err := xml.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("parse sitemap: %w", err)
		}
		return &Document{Kind: KindURLSet, Locs: locs(set.URLs)}, nil
	case "sitemapindex":
		var idx xmlIndex
		if err := xml.Unmarshal(data, &idx); err != nil {
			return nil, fmt.Errorf("parse sitemap index: %w", err)
		}
		return &Document{Kind: KindIndex, Locs: locs(idx.Sitemaps)}, nil
	default:
		return nil, fmt.Errorf("%w: root element %q", ErrNotSitemap, root)
	}
}

func rootElement(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", ErrNotSitemap
			}
			return "", fmt.Errorf("parse sitemap: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local, nil
		}
	}
}

func locs(entries []xmlLoc) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if loc := strings.TrimSpace(e.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
