package models

type Meta struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Canonical   string   `json:"canonical,omitempty"`
	Headings    []string `json:"headings,omitempty"`
}

type Content struct {
	Text      string `json:"text,omitempty"`
	WordCount int    `json:"wordCount,omitempty"`
	Language  string `json:"language,omitempty"`
}

// Page is what the HTML parser produces for one fetched document.
type Page struct {
	Meta    Meta     `json:"meta"`
	Content Content  `json:"content"`
	Links   []string `json:"links,omitempty"`
}

// Format names the representation an extraction backend returned.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
	FormatText     Format = "text"
)

// Document is the result of extracting a single URL.
type Document struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content"`
	Format  Format `json:"format"`
}

// Failure records a URL whose extraction was attempted and failed.
type Failure struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// OutcomeKind classifies how a run ended.
type OutcomeKind string

const (
	OutcomeFound     OutcomeKind = "found"
	OutcomeExhausted OutcomeKind = "exhausted"
	OutcomeError     OutcomeKind = "error"
)

// Outcome is the final report of one crawl run.
type Outcome struct {
	Kind         OutcomeKind `json:"outcome"`
	Keyword      string      `json:"keyword"`
	TargetURL    string      `json:"targetUrl"`
	FoundURL     string      `json:"foundUrl,omitempty"`
	VisitedCount int         `json:"visitedCount"`
	TotalURLs    int         `json:"totalUrls"`
	Failures     []Failure   `json:"extractionFailures"`
	Error        string      `json:"error,omitempty"`
	Snippet      string      `json:"snippet,omitempty"`
	Topics       []string    `json:"topics,omitempty"`
}
