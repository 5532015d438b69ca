package parser

import (
	"bytes"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"keyword-crawler/internal/matcher"
	"keyword-crawler/internal/models"
)

type Parser struct{}

func New() *Parser { return &Parser{} }

// Extract decodes an HTML document and returns its searchable text, metadata
// and the absolute http(s) links it contains. pageURL resolves relative links
// and may be empty, in which case only absolute links are kept.
func (p *Parser) Extract(r io.Reader, contentType, pageURL string) (models.Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return models.Page{}, err
	}

	enc, _, _ := charset.DetermineEncoding(data, contentType)
	utf8data, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		if !utf8.Valid(data) {
			return models.Page{}, err
		}
		utf8data = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(utf8data))
	if err != nil {
		return models.Page{}, err
	}

	doc.Find("script,noscript,style,template").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	title := strings.TrimSpace(doc.Find("title").First().Text())
	desc := strings.TrimSpace(doc.Find(`meta[name="description"]`).AttrOr("content", ""))
	if desc == "" {
		desc = strings.TrimSpace(doc.Find(`meta[property="og:description"]`).AttrOr("content", ""))
	}
	canonical := strings.TrimSpace(doc.Find(`link[rel="canonical"]`).AttrOr("href", ""))

	var headings []string
	doc.Find("h1,h2,h3").Each(func(i int, s *goquery.Selection) {
		if t := matcher.Normalize(s.Text()); t != "" {
			headings = append(headings, t)
		}
	})

	// title and description are searchable too
	body := doc.Find("body")
	text := matcher.Normalize(strings.Join([]string{title, desc, spacedText(body)}, " "))
	wordCount := 0
	if text != "" {
		wordCount = len(strings.Fields(text))
	}

	lang := strings.TrimSpace(doc.Find("html").AttrOr("lang", ""))
	if lang == "" {
		lang = strings.TrimSpace(doc.Find(`meta[property="og:locale"]`).AttrOr("content", ""))
	}

	return models.Page{
		Meta: models.Meta{
			Title:       title,
			Description: desc,
			Canonical:   canonical,
			Headings:    headings,
		},
		Content: models.Content{
			Text:      text,
			WordCount: wordCount,
			Language:  lang,
		},
		Links: links(doc, pageURL),
	}, nil
}

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "figcaption": true, "footer": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true, "hr": true, "li": true,
	"main": true, "nav": true, "ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// spacedText is Selection.Text with block elements separated by a space, so
// that "<li>a</li><li>b</li>" yields "a b" instead of "ab".
func spacedText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		}
		block := n.Type == html.ElementNode && blockElements[n.Data]
		if block {
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte(' ')
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}

func links(doc *goquery.Document, pageURL string) []string {
	base, _ := url.Parse(pageURL)
	seen := map[string]struct{}{}
	var out []string
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return
		}
		ref.Fragment = ""
		u := ref.String()
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		out = append(out, u)
	})
	return out
}
