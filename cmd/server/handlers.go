package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"keyword-crawler/internal/app"
	"keyword-crawler/internal/config"
	"keyword-crawler/internal/engine"
	"keyword-crawler/internal/extractor"
	"keyword-crawler/internal/models"
	"keyword-crawler/pkg/logger"
)

// searchReq is the body of POST /search. Unset fields fall back to the
// server configuration.
type searchReq struct {
	URL         string `json:"url"`
	Keyword     string `json:"keyword"`
	BatchSize   *int   `json:"batch_size,omitempty"`
	Concurrency *int   `json:"concurrency,omitempty"`
}

type searchServer struct {
	cfg    *config.Config
	client extractor.Client
	log    *logger.Logger
}

func (s *searchServer) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.health)
	// POST /search  { "url": "https://...", "keyword": "..." }
	mux.HandleFunc("/search", s.search)
	return mux
}

func (s *searchServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": s.cfg.Extractor.Backend})
}

func (s *searchServer) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req searchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	cfg := *s.cfg
	cfg.Crawl.TargetURL = strings.TrimSpace(req.URL)
	cfg.Crawl.Keyword = req.Keyword
	if req.BatchSize != nil {
		cfg.Crawl.BatchSize = *req.BatchSize
	}
	if req.Concurrency != nil {
		cfg.Crawl.Concurrency = *req.Concurrency
	}

	out, err := app.Search(r.Context(), &cfg, s.client, s.log)
	if engine.IsConfigurationError(err) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if out.Kind == models.OutcomeError {
		writeJSON(w, http.StatusBadGateway, out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
