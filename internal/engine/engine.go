// Package engine drives a keyword search over a site as an explicit finite
// state machine: discover the sitemap, hand out batches, extract each URL,
// evaluate the results and either continue or stop.
package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"keyword-crawler/internal/extractor"
	"keyword-crawler/internal/matcher"
	"keyword-crawler/internal/models"
	"keyword-crawler/internal/scheduler"
	"keyword-crawler/pkg/logger"
)

const (
	snippetWidth = 500
	topicCount   = 10
)

// Machine owns one CrawlState and advances it one transition at a time.
type Machine struct {
	client      extractor.Client
	log         *logger.Logger
	concurrency int
	state       *CrawlState
	foundDoc    *models.Document
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// WithRunID overrides the generated run id used in log entries.
func WithRunID(id string) Option {
	return func(m *Machine) {
		if id != "" {
			m.state.RunID = id
		}
	}
}

// New validates cfg and returns a machine in PhaseInit. A *ConfigurationError
// is returned for invalid input, in which case no state exists.
func New(cfg Config, client extractor.Client, opts ...Option) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, &ConfigurationError{Field: "extractor", Reason: "is required"}
	}
	conc := cfg.Concurrency
	if conc == 0 {
		conc = 1
	}

	m := &Machine{
		client:      client,
		log:         logger.NewNop(),
		concurrency: conc,
		state: &CrawlState{
			RunID:     uuid.NewString(),
			TargetURL: cfg.TargetURL,
			Keyword:   cfg.Keyword,
			BatchSize: cfg.BatchSize,
			Phase:     PhaseInit,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.String("run_id", m.state.RunID))
	return m, nil
}

// State returns a copy of the current state.
func (m *Machine) State() CrawlState { return m.state.clone() }

// Run steps the machine until it reaches a terminal phase and returns the
// outcome. It always terminates.
func (m *Machine) Run(ctx context.Context) models.Outcome {
	for !m.state.Phase.Terminal() {
		m.Step(ctx)
	}
	out := m.Outcome()
	m.log.Info("run finished",
		logger.String("outcome", string(out.Kind)),
		logger.String("found_url", out.FoundURL),
		logger.Int("visited", out.VisitedCount),
		logger.Int("total", out.TotalURLs),
		logger.Int("failures", len(out.Failures)),
	)
	return out
}

// Step performs exactly one transition and returns the new phase. Calling it
// in a terminal phase is a no-op.
func (m *Machine) Step(ctx context.Context) Phase {
	s := m.state
	switch s.Phase {
	case PhaseInit:
		m.log.Info("starting run",
			logger.String("target_url", s.TargetURL),
			logger.String("keyword", s.Keyword),
			logger.Int("batch_size", s.BatchSize),
			logger.Int("concurrency", m.concurrency),
		)
		s.Phase = PhaseDiscovering
	case PhaseDiscovering:
		m.discover(ctx)
	case PhaseBatching:
		m.nextBatch(ctx)
	case PhaseExtracting:
		m.extract(ctx)
	case PhaseEvaluating:
		m.evaluate()
	}
	return s.Phase
}

func (m *Machine) discover(ctx context.Context) {
	s := m.state
	urls, err := m.client.DiscoverSitemap(ctx, s.TargetURL)
	if err == nil {
		urls = dedupe(urls)
		if len(urls) == 0 {
			err = ErrEmptySitemap
		}
	}
	if err != nil {
		s.Err = &SitemapDiscoveryError{URL: s.TargetURL, Err: err}
		m.log.Error("sitemap discovery failed", logger.Err(s.Err))
		s.finish(PhaseDoneError)
		return
	}
	s.AllURLs = urls
	m.log.Info("sitemap discovered", logger.Int("urls", len(urls)))
	s.Phase = PhaseBatching
}

func (m *Machine) nextBatch(ctx context.Context) {
	s := m.state
	if err := ctx.Err(); err != nil {
		s.Err = err
		m.log.Warn("run cancelled", logger.Err(err))
		s.finish(PhaseDoneError)
		return
	}
	if s.Cursor == len(s.AllURLs) {
		m.log.Info("all urls processed without a match", logger.Int("total", len(s.AllURLs)))
		s.finish(PhaseDoneExhausted)
		return
	}
	s.batch, s.Cursor = scheduler.NextBatch(s.AllURLs, s.Cursor, s.BatchSize)
	s.batchPos = 0
	s.BatchNumber++
	m.log.Debug("batch scheduled",
		logger.Int("batch", s.BatchNumber),
		logger.Int("size", len(s.batch)),
		logger.Int("cursor", s.Cursor),
	)
	s.Phase = PhaseExtracting
}

func (m *Machine) extract(ctx context.Context) {
	s := m.state
	end := min(s.batchPos+m.concurrency, len(s.batch))
	urls := s.batch[s.batchPos:end]
	s.batchPos = end

	s.window = m.extractWindow(ctx, urls)
	for _, a := range s.window {
		s.VisitedCount++
		if a.err != nil {
			ee := extractor.AsExtractionError(a.url, a.err)
			s.Failures = append(s.Failures, models.Failure{URL: a.url, Reason: ee.Reason})
			m.log.Warn("extraction failed", logger.String("url", a.url), logger.String("reason", ee.Reason))
		}
	}
	s.Phase = PhaseEvaluating
}

// extractWindow extracts urls, in parallel when there is more than one, and
// returns the attempts in the order of urls.
func (m *Machine) extractWindow(ctx context.Context, urls []string) []attempt {
	out := make([]attempt, len(urls))
	if len(urls) == 1 {
		out[0] = m.extractOne(ctx, urls[0])
		return out
	}

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			out[i] = m.extractOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (m *Machine) extractOne(ctx context.Context, url string) attempt {
	m.log.Debug("extracting", logger.String("url", url))
	doc, err := m.client.Extract(ctx, url)
	if err == nil && doc == nil {
		err = extractor.ErrEmptyContent
	}
	return attempt{url: url, doc: doc, err: err}
}

func (m *Machine) evaluate() {
	s := m.state
	for _, a := range s.window {
		if a.err != nil {
			continue
		}
		if matcher.Matches(a.doc.Content, s.Keyword) {
			s.Found = true
			s.FoundURL = a.url
			m.foundDoc = a.doc
			m.log.Info("keyword found", logger.String("url", a.url), logger.Int("batch", s.BatchNumber))
			s.finish(PhaseDoneFound)
			return
		}
	}
	s.window = nil

	if s.batchPos < len(s.batch) {
		s.Phase = PhaseExtracting
		return
	}
	total := len(s.AllURLs)
	m.log.Info("batch complete",
		logger.Int("batch", s.BatchNumber),
		logger.Int("processed", s.Cursor),
		logger.Int("total", total),
		logger.Float64("progress_pct", float64(s.Cursor)/float64(total)*100),
	)
	s.batch = nil
	s.Phase = PhaseBatching
}

// Outcome reports the run so far. It is final once the phase is terminal.
func (m *Machine) Outcome() models.Outcome {
	s := m.state
	out := models.Outcome{
		Keyword:      s.Keyword,
		TargetURL:    s.TargetURL,
		VisitedCount: s.VisitedCount,
		TotalURLs:    len(s.AllURLs),
		Failures:     append([]models.Failure{}, s.Failures...),
	}
	switch s.Phase {
	case PhaseDoneFound:
		out.Kind = models.OutcomeFound
		out.FoundURL = s.FoundURL
		if m.foundDoc != nil {
			out.Snippet = matcher.Snippet(m.foundDoc.Content, s.Keyword, snippetWidth)
			out.Topics = matcher.TopTopics(m.foundDoc.Content, topicCount)
		}
	case PhaseDoneExhausted:
		out.Kind = models.OutcomeExhausted
	default:
		out.Kind = models.OutcomeError
		if s.Err != nil {
			out.Error = s.Err.Error()
		} else if !s.Phase.Terminal() {
			out.Error = "run not finished"
		}
	}
	return out
}

// Run is a convenience wrapper that builds a Machine and runs it.
func Run(ctx context.Context, cfg Config, client extractor.Client, opts ...Option) (models.Outcome, error) {
	m, err := New(cfg, client, opts...)
	if err != nil {
		return models.Outcome{}, err
	}
	out := m.Run(ctx)
	if out.Kind == models.OutcomeError {
		return out, m.state.Err
	}
	return out, nil
}

// IsConfigurationError reports whether err is a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
