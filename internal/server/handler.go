// Package server exposes the search engine over HTTP.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pravnik/pravnik/internal/cache"
	"github.com/pravnik/pravnik/internal/feedback"
	"github.com/pravnik/pravnik/internal/search"
	"github.com/pravnik/pravnik/internal/search/scorer"
	"github.com/pravnik/pravnik/pkg/logger"
)

// Handler serves the search API. ranker, collector, and tiered may be nil
// depending on deployment.
type Handler struct {
	engine       *search.Engine
	ranker       *feedback.Ranker
	collector    *feedback.Collector
	tiered       *cache.Cache
	defaultLimit int
	maxResults   int
	logger       *slog.Logger
}

// New creates a Handler.
func New(engine *search.Engine, ranker *feedback.Ranker, collector *feedback.Collector, tiered *cache.Cache, defaultLimit, maxResults int) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if maxResults <= 0 {
		maxResults = 100
	}
	return &Handler{
		engine:       engine,
		ranker:       ranker,
		collector:    collector,
		tiered:       tiered,
		defaultLimit: defaultLimit,
		maxResults:   maxResults,
		logger:       slog.Default().With("component", "api-handler"),
	}
}

type searchResponse struct {
	Query     string          `json:"query"`
	TotalHits int             `json:"total_hits"`
	Results   []scorer.Result `json:"results"`
	LatencyMs int64           `json:"latency_ms"`
}

// Search handles GET /api/v1/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params := r.URL.Query()
	query := params.Get("q")
	if strings.TrimSpace(query) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}

	limit := h.defaultLimit
	if limitStr := params.Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		limit = parsed
	}

	opts := search.Options{
		FuzzySearch: params.Get("fuzzy") == "true",
		MaxResults:  limit,
		SortBy:      params.Get("sort_by"),
		SortOrder:   params.Get("sort_order"),
	}
	if minStr := params.Get("min_relevance"); minStr != "" {
		parsed, err := strconv.ParseFloat(minStr, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			h.writeError(w, http.StatusBadRequest, "min_relevance must be in [0,1]")
			return
		}
		opts.MinRelevance = parsed
	}
	if categories := params.Get("categories"); categories != "" {
		opts.Categories = splitCSV(categories)
	}
	if languages := params.Get("languages"); languages != "" {
		opts.Languages = splitCSV(languages)
	}

	results := h.engine.Search(ctx, query, opts)
	if h.ranker != nil {
		results = h.ranker.RankResults(results, query)
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", query,
		"returned", len(results),
		"latency_ms", latencyMs,
	)
	h.writeJSON(w, http.StatusOK, searchResponse{
		Query:     query,
		TotalHits: len(results),
		Results:   results,
		LatencyMs: latencyMs,
	})
}

type suggestResponse struct {
	Prefix      string   `json:"prefix"`
	Suggestions []string `json:"suggestions"`
}

// Suggest handles GET /api/v1/suggest. Payloads are cached in the tiered
// cache under a key versioned by the index generation, so suggestions from
// an old build die with it.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("q")
	if strings.TrimSpace(prefix) == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	max := 0
	if maxStr := r.URL.Query().Get("max"); maxStr != "" {
		parsed, err := strconv.Atoi(maxStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "max must be a positive integer")
			return
		}
		max = parsed
	}

	cacheKey := fmt.Sprintf("suggest:g%d:%s:%d", h.engine.Generation(), strings.ToLower(prefix), max)
	if h.tiered != nil {
		var cached suggestResponse
		if h.tiered.GetJSON(r.Context(), cacheKey, &cached) {
			h.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	suggestions := h.engine.Suggestions(prefix, max)
	if suggestions == nil {
		suggestions = []string{}
	}
	resp := suggestResponse{Prefix: prefix, Suggestions: suggestions}
	if h.tiered != nil {
		h.tiered.SetJSON(r.Context(), cacheKey, resp, 0, cache.SetOptions{})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type articleResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Keywords  []string  `json:"keywords,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Article handles GET /api/v1/articles/{id}, serving the indexed view of one
// article. Payloads are written to the durable cache tier since article
// metadata outlives the process.
func (h *Handler) Article(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		h.writeError(w, http.StatusBadRequest, "article id is required")
		return
	}

	cacheKey := fmt.Sprintf("article:g%d:%s", h.engine.Generation(), id)
	if h.tiered != nil {
		var cached articleResponse
		if h.tiered.GetJSON(r.Context(), cacheKey, &cached) {
			h.writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	info, ok := h.engine.Document(id)
	if !ok {
		h.writeError(w, http.StatusNotFound, "article not found")
		return
	}
	resp := articleResponse{
		ID:        info.ID,
		Title:     info.Title,
		Category:  info.Category,
		Keywords:  info.Keywords,
		UpdatedAt: info.UpdatedAt,
	}
	if h.tiered != nil {
		h.tiered.SetJSON(r.Context(), cacheKey, resp, 0, cache.SetOptions{Persistent: true})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type feedbackRequest struct {
	Keyword    string  `json:"keyword"`
	DocumentID string  `json:"document_id"`
	Boost      float64 `json:"boost,omitempty"`
}

// Feedback handles POST /api/v1/feedback. Events flow through the collector
// when one is wired, otherwise they are applied to the ranker directly.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	if h.ranker == nil {
		h.writeError(w, http.StatusServiceUnavailable, "feedback is disabled")
		return
	}
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Keyword) == "" || strings.TrimSpace(req.DocumentID) == "" {
		h.writeError(w, http.StatusBadRequest, "keyword and document_id are required")
		return
	}

	if h.collector != nil {
		h.collector.Track(feedback.Event{
			Keyword:    req.Keyword,
			DocumentID: req.DocumentID,
			Boost:      req.Boost,
			Timestamp:  time.Now().UTC(),
		})
		h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}
	if !h.ranker.RecordPositiveFeedback(req.Keyword, req.DocumentID, req.Boost) {
		h.writeError(w, http.StatusBadRequest, "keyword normalizes to nothing")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"engine": h.engine.Stats(),
	}
	if h.ranker != nil {
		payload["feedback"] = h.ranker.GetStatistics()
	}
	if h.tiered != nil {
		payload["tiered_cache"] = h.tiered.GetStats()
	}
	h.writeJSON(w, http.StatusOK, payload)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses := h.engine.CacheStats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	payload := map[string]any{
		"query_cache": map[string]any{
			"hits":     hits,
			"misses":   misses,
			"total":    total,
			"hit_rate": strconv.FormatFloat(hitRate, 'f', 1, 64) + "%",
		},
	}
	if h.tiered != nil {
		payload["tiered_cache"] = h.tiered.GetStats()
	}
	h.writeJSON(w, http.StatusOK, payload)
}

// Reindex handles POST /api/v1/reindex, rebuilding all indexes from the
// corpus provider.
func (h *Handler) Reindex(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	start := time.Now()
	if err := h.engine.BuildIndex(r.Context()); err != nil {
		log.Error("reindex failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "reindex failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "reindexed",
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
