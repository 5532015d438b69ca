package engine

import (
	"fmt"
	"strings"

	"keyword-crawler/internal/models"
)

// Phase is a state of the crawl state machine.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseDiscovering
	PhaseBatching
	PhaseExtracting
	PhaseEvaluating
	PhaseDoneFound
	PhaseDoneExhausted
	PhaseDoneError
)

var phaseNames = [...]string{
	PhaseInit:          "init",
	PhaseDiscovering:   "discovering",
	PhaseBatching:      "batching",
	PhaseExtracting:    "extracting",
	PhaseEvaluating:    "evaluating",
	PhaseDoneFound:     "done_found",
	PhaseDoneExhausted: "done_exhausted",
	PhaseDoneError:     "done_error",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Terminal reports whether no further transition is possible.
func (p Phase) Terminal() bool {
	return p == PhaseDoneFound || p == PhaseDoneExhausted || p == PhaseDoneError
}

// Config is the run input. BatchSize and Concurrency are fixed for the run.
type Config struct {
	TargetURL string
	Keyword   string
	BatchSize int
	// Concurrency is how many URLs of a batch are extracted before the
	// results are evaluated. Zero means one at a time.
	Concurrency int
}

// Validate returns a *ConfigurationError describing the first invalid field.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.TargetURL) == "":
		return &ConfigurationError{Field: "target_url", Reason: "is required"}
	case strings.TrimSpace(c.Keyword) == "":
		return &ConfigurationError{Field: "keyword", Reason: "is required"}
	case c.BatchSize <= 0:
		return &ConfigurationError{Field: "batch_size", Reason: fmt.Sprintf("must be positive, got %d", c.BatchSize)}
	case c.Concurrency < 0:
		return &ConfigurationError{Field: "concurrency", Reason: fmt.Sprintf("must not be negative, got %d", c.Concurrency)}
	case c.Concurrency > c.BatchSize:
		return &ConfigurationError{
			Field:  "concurrency",
			Reason: fmt.Sprintf("must not exceed batch_size %d, got %d", c.BatchSize, c.Concurrency),
		}
	}
	return nil
}

// CrawlState is the single mutable record threaded through a run.
type CrawlState struct {
	RunID     string
	TargetURL string
	Keyword   string
	BatchSize int

	Phase        Phase
	AllURLs      []string
	Cursor       int
	VisitedCount int
	Found        bool
	FoundURL     string
	Failures     []models.Failure
	Finished     bool
	Err          error

	// BatchNumber counts batches handed out by the scheduler, starting at 1.
	BatchNumber int

	batch    []string
	batchPos int
	window   []attempt
}

type attempt struct {
	url string
	doc *models.Document
	err error
}

func (s *CrawlState) clone() CrawlState {
	cp := *s
	cp.AllURLs = append([]string(nil), s.AllURLs...)
	cp.Failures = append([]models.Failure(nil), s.Failures...)
	cp.batch = append([]string(nil), s.batch...)
	cp.window = append([]attempt(nil), s.window...)
	return cp
}

func (s *CrawlState) finish(p Phase) {
	s.Phase = p
	s.Finished = true
	s.window = nil
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
