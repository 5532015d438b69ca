package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"keyword-crawler/internal/models"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		output, format, failures = "", "summary", ""
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRunCommand(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<urlset><url><loc>%[1]s/a</loc></url><url><loc>%[1]s/b</loc></url></urlset>`, ts.URL)
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<p>page %s mentions a Needle</p>`, r.URL.Path)
		}
	}))
	defer ts.Close()

	out, err := execute(t, "run", "--url", ts.URL, "--keyword", "needle", "--backend", "direct",
		"--batch-size", "1", "--format", "json", "--log-level", "error")
	require.NoError(t, err)

	var outcome models.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	require.Equal(t, models.OutcomeFound, outcome.Kind)
	require.Equal(t, ts.URL+"/a", outcome.FoundURL)
	require.Equal(t, 1, outcome.VisitedCount)
}

func TestRunCommandNotFound(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			fmt.Fprintf(w, `<urlset><url><loc>%s/a</loc></url></urlset>`, ts.URL)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<p>hay</p>`)
	}))
	defer ts.Close()

	out, err := execute(t, "run", "--url", ts.URL, "--keyword", "needle", "--backend", "direct", "--log-level", "error")
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, exitNotFound, ee.code)
	require.Contains(t, out, `Keyword "needle" not found after checking 1 of 1 URLs`)
}

func TestRunCommandWritesFailures(t *testing.T) {
	var ts *httptest.Server
	ts = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/sitemap.xml":
			fmt.Fprintf(w, `<urlset><url><loc>%[1]s/gone</loc></url><url><loc>%[1]s/ok</loc></url></urlset>`, ts.URL)
		case "/gone":
			http.Error(w, "gone", http.StatusInternalServerError)
		default:
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<p>the needle</p>`)
		}
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "failures.ndjson")
	_, err := execute(t, "run", "--url", ts.URL, "--keyword", "needle", "--backend", "direct",
		"--batch-size", "2", "--failures", path, "--log-level", "error")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var failure models.Failure
	require.NoError(t, json.Unmarshal(data, &failure))
	require.Equal(t, ts.URL+"/gone", failure.URL)
}

func TestRunCommandConfigurationError(t *testing.T) {
	_, err := execute(t, "run", "--url", "https://example.com", "--keyword", "", "--backend", "direct", "--log-level", "error")
	var ee *exitError
	require.ErrorAs(t, err, &ee)
	require.Equal(t, exitConfig, ee.code)
	require.ErrorContains(t, ee.err, "keyword")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.Contains(t, out, version)
}
