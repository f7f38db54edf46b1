// Package server exposes an index over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/viniciusth/rankindex/internal/cache"
	"github.com/viniciusth/rankindex/internal/logger"
	"github.com/viniciusth/rankindex/internal/metrics"
)

const healthTimeout = 2 * time.Second

type SearchResult struct {
	Query     string `json:"query"`
	Mode      string `json:"mode"`
	Positions []int  `json:"positions"`
	Count     int    `json:"count"`
	Cached    bool   `json:"cached"`
}

// Pinger is a dependency whose reachability /healthz reports.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	searcher metrics.Searcher
	cache    *cache.QueryCache
	redis    Pinger
	logger   *slog.Logger
}

// New returns a handler answering queries from searcher. queryCache may be nil.
func New(searcher metrics.Searcher, queryCache *cache.QueryCache) *Handler {
	return &Handler{
		searcher: searcher,
		cache:    queryCache,
		logger:   logger.WithComponent("search-handler"),
	}
}

// WithRedis makes /healthz ping the cache backend.
func (h *Handler) WithRedis(p Pinger) *Handler {
	h.redis = p
	return h
}

// Routes registers the API on a new mux. metricsHandler may be nil.
func (h *Handler) Routes(metricsHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /healthz", h.Health)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	params := r.URL.Query()
	if !params.Has("q") {
		h.writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	query := params.Get("q")

	mode := params.Get("mode")
	if mode == "" {
		mode = metrics.ModeExact
	}
	var run func([]byte) ([]int, error)
	switch mode {
	case metrics.ModeExact:
		run = h.searcher.Search
	case metrics.ModeWildcard:
		run = h.searcher.SearchWithWildcards
	default:
		h.writeError(w, http.StatusBadRequest, "mode must be 'exact' or 'wildcard'")
		return
	}

	compute := func() ([]int, error) {
		positions, err := run([]byte(query))
		if err != nil {
			return nil, err
		}
		slices.Sort(positions)
		return positions, nil
	}

	var positions []int
	var err error
	cached := false
	if h.cache != nil {
		positions, cached, err = h.cache.GetOrCompute(r.Context(), mode, []byte(query), compute)
	} else {
		positions, err = compute()
	}
	if err != nil {
		if metrics.IsClientError(err) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("search failed", "query", query, "mode", mode, "error", err)
		h.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	h.logger.Debug("search completed",
		"query", query,
		"mode", mode,
		"count", len(positions),
		"cached", cached,
		"latency", time.Since(start),
	)
	if positions == nil {
		positions = []int{}
	}
	h.writeJSON(w, http.StatusOK, &SearchResult{
		Query:     query,
		Mode:      mode,
		Positions: positions,
		Count:     len(positions),
		Cached:    cached,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.redis == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()
	if err := h.redis.Ping(ctx); err != nil {
		h.logger.Warn("health check: redis unreachable", "error", err)
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "redis": "unreachable"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "redis": "ok"})
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
