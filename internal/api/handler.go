// Package api implements the read-only qsync HTTP API over the project build
// graph.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querysync/qsync/internal/metrics"
)

// Handler is the top-level API handler.
type Handler struct {
	cache *GraphCache
}

// NewHandler creates a new API handler.
func NewHandler(cache *GraphCache) *Handler {
	if cache == nil {
		cache = NewGraphCacheFromEnv(8)
	}
	return &Handler{cache: cache}
}

// Cache returns the graph cache the handler serves from.
func (h *Handler) Cache() *GraphCache { return h.cache }

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	h.handle(mux, "GET /v1/graphs", h.handleListGraphs)
	h.handle(mux, "GET /v1/graphs/{graphID}", h.handleGetGraph)
	h.handle(mux, "GET /v1/graphs/{graphID}/stats", h.handleGetGraph)
	h.handle(mux, "GET /v1/graphs/{graphID}/targets", h.handleTargets)
	h.handle(mux, "GET /v1/graphs/{graphID}/owners", h.handleOwners)
	h.handle(mux, "GET /v1/graphs/{graphID}/rdeps", h.handleRdeps)
	h.handle(mux, "GET /v1/graphs/{graphID}/same-language-rdeps", h.handleSameLanguageRdeps)
	h.handle(mux, "GET /v1/graphs/{graphID}/deps", h.handleDeps)
	h.handle(mux, "GET /v1/graphs/{graphID}/build-deps", h.handleBuildDeps)
	h.handle(mux, "POST /v1/graphs/{graphID}/requested", h.handleRequested)
	h.handle(mux, "GET /v1/graphs/{graphID}/sources", h.handleSources)
	h.handle(mux, "GET /v1/graphs/{graphID}/ego", h.handleEgo)
	h.handle(mux, "GET /v1/graphs/{graphID}/path", h.handlePath)
	h.handle(mux, "GET /v1/graphs/{graphID}/delta/{headID}", h.handleDelta)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.Handle(pattern, instrument(pattern, fn))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument records request counts and latency per route pattern.
func instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
