package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"keyword-crawler/internal/config"
	"keyword-crawler/internal/models"
	"keyword-crawler/pkg/logger"
)

type fakeClient struct {
	urls    []string
	pages   map[string]string
	discErr error
}

func (f *fakeClient) DiscoverSitemap(ctx context.Context, rootURL string) ([]string, error) {
	return f.urls, f.discErr
}

func (f *fakeClient) Extract(ctx context.Context, url string) (*models.Document, error) {
	return &models.Document{URL: url, Content: f.pages[url], Format: models.FormatText}, nil
}

func newTestServer(client *fakeClient) *httptest.Server {
	cfg := &config.Config{
		Crawl: config.CrawlConfig{BatchSize: 2, Concurrency: 1},
		Extractor: config.ExtractorConfig{
			Backend:      config.BackendDirect,
			Timeout:      config.DefaultTimeout,
			MaxBodyBytes: config.DefaultMaxBodyBytes,
		},
	}
	s := &searchServer{cfg: cfg, client: client, log: logger.NewNop()}
	return httptest.NewServer(s.routes())
}

func post(t *testing.T, ts *httptest.Server, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/search", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var got map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	return resp, got
}

func TestHealth(t *testing.T) {
	ts := newTestServer(&fakeClient{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSearchFound(t *testing.T) {
	client := &fakeClient{
		urls: []string{"https://s/a", "https://s/b", "https://s/c"},
		pages: map[string]string{
			"https://s/a": "nothing here",
			"https://s/b": "the Needle is here",
		},
	}
	ts := newTestServer(client)
	defer ts.Close()

	resp, got := post(t, ts, `{"url":"https://s","keyword":"needle"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "found", got["outcome"])
	require.Equal(t, "https://s/b", got["foundUrl"])
	require.EqualValues(t, 2, got["visitedCount"])
}

func TestSearchExhausted(t *testing.T) {
	client := &fakeClient{urls: []string{"https://s/a"}, pages: map[string]string{"https://s/a": "hay"}}
	ts := newTestServer(client)
	defer ts.Close()

	resp, got := post(t, ts, `{"url":"https://s","keyword":"needle","batch_size":1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "exhausted", got["outcome"])
}

func TestSearchDiscoveryFailure(t *testing.T) {
	ts := newTestServer(&fakeClient{discErr: errors.New("connection refused")})
	defer ts.Close()

	resp, got := post(t, ts, `{"url":"https://s","keyword":"needle"}`)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "error", got["outcome"])
	require.Contains(t, got["error"], "connection refused")
}

func TestSearchBadRequest(t *testing.T) {
	ts := newTestServer(&fakeClient{})
	defer ts.Close()

	for _, body := range []string{
		`not json`,
		`{"url":"","keyword":"needle"}`,
		`{"url":"https://s","keyword":""}`,
		`{"url":"https://s","keyword":"needle","batch_size":0}`,
		`{"url":"https://s","keyword":"needle","concurrency":5}`,
	} {
		resp, got := post(t, ts, body)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		require.NotEmpty(t, got["error"], body)
	}
}

func TestSearchMethodNotAllowed(t *testing.T) {
	ts := newTestServer(&fakeClient{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/search")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
