package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"keyword-crawler/internal/extractor"
	"keyword-crawler/internal/models"
)

const keyword = "needle"

// fakeClient serves fixed content per URL and records extraction attempts.
type fakeClient struct {
	mu           sync.Mutex
	urls         []string
	discoverErr  error
	pages        map[string]string
	failures     map[string]error
	attempted    []string
	attemptedSet map[string]int
}

func newFakeClient(n int) *fakeClient {
	f := &fakeClient{pages: map[string]string{}, failures: map[string]error{}, attemptedSet: map[string]int{}}
	for i := 1; i <= n; i++ {
		u := fmt.Sprintf("https://example.com/page-%d", i)
		f.urls = append(f.urls, u)
		f.pages[u] = fmt.Sprintf("Page %d talks about hay.", i)
	}
	return f
}

func (f *fakeClient) url(i int) string { return f.urls[i-1] }

func (f *fakeClient) DiscoverSitemap(ctx context.Context, rootURL string) ([]string, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return append([]string(nil), f.urls...), nil
}

func (f *fakeClient) Extract(ctx context.Context, url string) (*models.Document, error) {
	f.mu.Lock()
	f.attempted = append(f.attempted, url)
	f.attemptedSet[url]++
	f.mu.Unlock()
	if err, ok := f.failures[url]; ok {
		return nil, err
	}
	return &models.Document{URL: url, Content: f.pages[url], Format: models.FormatMarkdown}, nil
}

func cfg(batch int) Config {
	return Config{TargetURL: "https://example.com", Keyword: keyword, BatchSize: batch}
}

func run(t *testing.T, c Config, client extractor.Client) (*Machine, models.Outcome) {
	t.Helper()
	m, err := New(c, client)
	require.NoError(t, err)
	return m, m.Run(context.Background())
}

func TestFoundInSeventhOfTen(t *testing.T) {
	client := newFakeClient(10)
	client.pages[client.url(7)] = "The NEEDLE is here"

	_, out := run(t, cfg(3), client)

	require.Equal(t, models.OutcomeFound, out.Kind)
	require.Equal(t, client.url(7), out.FoundURL)
	require.Equal(t, 7, out.VisitedCount)
	require.Equal(t, 10, out.TotalURLs)
	require.Equal(t, client.urls[:7], client.attempted)
	for i := 8; i <= 10; i++ {
		require.Zero(t, client.attemptedSet[client.url(i)], "url %d must not be attempted", i)
	}
	require.Equal(t, "The NEEDLE is here", out.Snippet)
	require.Equal(t, []string{"here", "needle"}, out.Topics)
}

func TestExhausted(t *testing.T) {
	client := newFakeClient(5)

	_, out := run(t, cfg(2), client)

	require.Equal(t, models.OutcomeExhausted, out.Kind)
	require.Equal(t, 5, out.VisitedCount)
	require.Equal(t, 5, out.TotalURLs)
	require.Empty(t, out.FoundURL)
	require.Empty(t, out.Failures)
	require.NotNil(t, out.Failures)
}

func TestFailuresAreAbsorbed(t *testing.T) {
	client := newFakeClient(5)
	client.failures[client.url(2)] = errors.New("http status 500")
	client.failures[client.url(4)] = &extractor.ExtractionError{Reason: "timeout"}
	client.pages[client.url(5)] = "a needle at last"

	_, out := run(t, cfg(2), client)

	require.Equal(t, models.OutcomeFound, out.Kind)
	require.Equal(t, client.url(5), out.FoundURL)
	require.Equal(t, 5, out.VisitedCount)
	require.Equal(t, []models.Failure{
		{URL: client.url(2), Reason: "http status 500"},
		{URL: client.url(4), Reason: "timeout"},
	}, out.Failures)
}

func TestDiscoveryFailure(t *testing.T) {
	client := newFakeClient(3)
	client.discoverErr = errors.New("connection refused")

	m, err := New(cfg(2), client)
	require.NoError(t, err)
	out := m.Run(context.Background())

	require.Equal(t, models.OutcomeError, out.Kind)
	require.Zero(t, out.VisitedCount)
	require.Empty(t, out.Failures)
	require.Empty(t, client.attempted)
	require.Contains(t, out.Error, "connection refused")

	var sde *SitemapDiscoveryError
	require.ErrorAs(t, m.State().Err, &sde)
	require.True(t, m.State().Finished)
}

func TestEmptySitemapIsAnError(t *testing.T) {
	client := newFakeClient(0)
	client.urls = []string{"", "  "}

	_, err := Run(context.Background(), cfg(2), client)
	require.ErrorIs(t, err, ErrEmptySitemap)
}

func TestDiscoveredURLsAreDeduplicated(t *testing.T) {
	client := newFakeClient(3)
	client.urls = append(client.urls, client.url(1), " "+client.url(2)+" ", "")

	m, out := run(t, cfg(2), client)
	require.Equal(t, models.OutcomeExhausted, out.Kind)
	require.Equal(t, 3, out.TotalURLs)
	require.Equal(t, client.urls[:3], m.State().AllURLs)
}

func TestFirstMatchInURLOrderWins(t *testing.T) {
	client := newFakeClient(6)
	client.pages[client.url(2)] = "needle two"
	client.pages[client.url(3)] = "needle three"

	c := cfg(3)
	c.Concurrency = 3
	_, out := run(t, c, client)

	require.Equal(t, models.OutcomeFound, out.Kind)
	require.Equal(t, client.url(2), out.FoundURL)
	// the whole window is attempted when it is extracted in parallel
	require.Equal(t, 3, out.VisitedCount)
	require.Len(t, client.attempted, 3)
}

func TestParallelWindowsCoverEveryURL(t *testing.T) {
	client := newFakeClient(11)
	client.failures[client.url(4)] = errors.New("boom")

	c := cfg(4)
	c.Concurrency = 2
	_, out := run(t, c, client)

	require.Equal(t, models.OutcomeExhausted, out.Kind)
	require.Equal(t, 11, out.VisitedCount)
	require.Len(t, client.attemptedSet, 11)
	for u, n := range client.attemptedSet {
		require.Equal(t, 1, n, u)
	}
	require.Equal(t, []models.Failure{{URL: client.url(4), Reason: "boom"}}, out.Failures)
}

func TestNilDocumentIsAFailure(t *testing.T) {
	client := &nilDocClient{urls: []string{"https://example.com/a"}}
	_, out := run(t, cfg(1), client)
	require.Equal(t, models.OutcomeExhausted, out.Kind)
	require.Equal(t, []models.Failure{{URL: "https://example.com/a", Reason: "empty content"}}, out.Failures)
}

type nilDocClient struct{ urls []string }

func (n *nilDocClient) DiscoverSitemap(ctx context.Context, rootURL string) ([]string, error) {
	return n.urls, nil
}

func (n *nilDocClient) Extract(ctx context.Context, url string) (*models.Document, error) {
	return nil, nil
}

func TestIdempotent(t *testing.T) {
	build := func() *fakeClient {
		c := newFakeClient(9)
		c.failures[c.url(3)] = errors.New("boom")
		c.pages[c.url(8)] = "needle"
		return c
	}
	_, first := run(t, cfg(4), build())
	_, second := run(t, cfg(4), build())
	require.Equal(t, first, second)
}

func TestInvariantsHoldAfterEveryStep(t *testing.T) {
	client := newFakeClient(10)
	client.failures[client.url(5)] = errors.New("boom")
	client.pages[client.url(9)] = "needle"

	m, err := New(cfg(3), client)
	require.NoError(t, err)

	var wasFinished, wasFound bool
	for steps := 0; !m.State().Phase.Terminal(); steps++ {
		require.Less(t, steps, 1000, "state machine did not terminate")
		m.Step(context.Background())
		s := m.State()

		require.LessOrEqual(t, s.Cursor, len(s.AllURLs))
		require.LessOrEqual(t, s.VisitedCount, s.Cursor)
		if s.Found {
			require.NotEmpty(t, s.FoundURL)
			require.True(t, s.Finished)
		}
		if s.Finished {
			require.True(t, s.Found || s.Cursor == len(s.AllURLs) || s.Phase == PhaseDoneError)
		}
		if wasFinished {
			require.True(t, s.Finished)
		}
		if wasFound {
			require.True(t, s.Found)
		}
		wasFinished, wasFound = s.Finished, s.Found
	}
	require.Equal(t, PhaseDoneFound, m.State().Phase)
	require.Equal(t, PhaseDoneFound, m.Step(context.Background()))
}

func TestPhaseSequence(t *testing.T) {
	client := newFakeClient(2)
	client.pages[client.url(2)] = "needle"

	m, err := New(cfg(2), client)
	require.NoError(t, err)

	var phases []Phase
	for !m.State().Phase.Terminal() {
		phases = append(phases, m.Step(context.Background()))
	}
	require.Equal(t, []Phase{
		PhaseDiscovering,
		PhaseBatching,
		PhaseExtracting,
		PhaseEvaluating,
		PhaseExtracting,
		PhaseEvaluating,
		PhaseDoneFound,
	}, phases)
}

func TestCancelledContextEndsRun(t *testing.T) {
	client := newFakeClient(4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m, err := New(cfg(2), client)
	require.NoError(t, err)
	out := m.Run(ctx)

	require.Equal(t, models.OutcomeError, out.Kind)
	require.ErrorIs(t, m.State().Err, context.Canceled)
}

func TestConfigurationErrors(t *testing.T) {
	client := newFakeClient(1)
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"missing url", Config{Keyword: "k", BatchSize: 1}, "target_url"},
		{"missing keyword", Config{TargetURL: "https://x", Keyword: " ", BatchSize: 1}, "keyword"},
		{"zero batch", Config{TargetURL: "https://x", Keyword: "k"}, "batch_size"},
		{"negative batch", Config{TargetURL: "https://x", Keyword: "k", BatchSize: -2}, "batch_size"},
		{"negative concurrency", Config{TargetURL: "https://x", Keyword: "k", BatchSize: 2, Concurrency: -1}, "concurrency"},
		{"concurrency above batch", Config{TargetURL: "https://x", Keyword: "k", BatchSize: 2, Concurrency: 3}, "concurrency"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg, client)
			require.Nil(t, m)
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			require.Equal(t, tt.field, ce.Field)
			require.True(t, IsConfigurationError(err))
		})
	}

	_, err := New(cfg(1), nil)
	require.True(t, IsConfigurationError(err))
	require.Empty(t, client.attempted)
}

func TestWithRunID(t *testing.T) {
	m, err := New(cfg(1), newFakeClient(1), WithRunID("run-1"))
	require.NoError(t, err)
	require.Equal(t, "run-1", m.State().RunID)

	m2, err := New(cfg(1), newFakeClient(1))
	require.NoError(t, err)
	require.NotEmpty(t, m2.State().RunID)
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "done_found", PhaseDoneFound.String())
	require.Equal(t, "phase(42)", Phase(42).String())
	require.False(t, PhaseEvaluating.Terminal())
}
