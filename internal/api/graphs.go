package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/querysync/qsync/internal/metrics"
	"github.com/querysync/qsync/pkg/diag"
	"github.com/querysync/qsync/pkg/graph"
	"github.com/querysync/qsync/pkg/label"
	"github.com/querysync/qsync/pkg/rulekind"
)

type graphInfo struct {
	ID      string      `json:"id"`
	BuiltAt time.Time   `json:"built_at"`
	Current bool        `json:"current"`
	Stats   graph.Stats `json:"stats"`
}

func (h *Handler) info(g *graph.BuildGraph) graphInfo {
	return graphInfo{
		ID:      g.ID(),
		BuiltAt: g.BuiltAt(),
		Current: g == h.cache.Current(),
		Stats:   g.Stats(),
	}
}

// loadGraph resolves the {graphID} path value, writing a 404 if unknown.
func (h *Handler) loadGraph(w http.ResponseWriter, r *http.Request) (*graph.BuildGraph, bool) {
	g, ok := h.cache.Get(r.PathValue("graphID"))
	if !ok {
		writeError(w, http.StatusNotFound, "graph not found")
		return nil, false
	}
	return g, true
}

func requireParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		writeError(w, http.StatusBadRequest, name+" parameter required")
		return "", false
	}
	return v, true
}

func parseLabels(w http.ResponseWriter, values []string) (label.Set, bool) {
	out := make(label.Set, len(values))
	for _, v := range values {
		l, err := label.Parse(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		out.Add(l)
	}
	return out, true
}

func (h *Handler) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	var out []graphInfo
	for _, id := range h.cache.IDs() {
		if g, ok := h.cache.Get(id); ok {
			out = append(out, h.info(g))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"graphs": out})
}

func (h *Handler) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.info(g))
}

type targetsResponse struct {
	graph.TargetsToBuild
	Warnings []diag.Message `json:"warnings,omitempty"`
}

func (h *Handler) handleTargets(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}
	path, ok := requireParam(w, r, "path")
	if !ok {
		return
	}

	ctx := diag.NewWriterContext(nil)
	result := g.ProjectTargets(ctx, path)
	if ctx.HasWarnings() {
		metrics.QueryWarningsTotal.Inc()
	}
	writeJSON(w, http.StatusOK, targetsResponse{TargetsToBuild: result, Warnings: ctx.Messages()})
}

func (h *Handler) handleOwners(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}
	path, ok := requireParam(w, r, "path")
	if !ok {
		return
	}

	owners, known := g.TargetOwners(path)
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   path,
		"known":  known,
		"owners": owners,
	})
}

func (h *Handler) handleRdeps(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}
	path, ok := requireParam(w, r, "path")
	if !ok {
		return
	}

	targets := g.ReverseDepsForSource(path)
	if targets == nil {
		targets = []*graph.ProjectTarget{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path, "targets": targets})
}

func (h *Handler) handleSameLanguageRdeps(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}
	seeds, ok := parseLabels(w, r.URL.Query()["target"])
	if !ok {
		return
	}
	if seeds.Len() == 0 {
		writeError(w, http.StatusBadRequest, "target parameter required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": g.SameLanguageTargetsDependingOn(seeds)})
}

func (h *Handler) handleDeps(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}
	target, ok := h.targetParam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target": target,
		"deps":   g.TransitiveExternalDependencies(target),
	})
}

func (h *Handler) handleBuildDeps(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}
	target, ok := h.targetParam(w, r)
	if !ok {
		return
	}
	behaviors := g.DependencyTrackingBehaviors(target)
	if behaviors == nil {
		behaviors = []graph.DependencyTrackingBehavior{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target":    target,
		"behaviors": behaviors,
		"build":     g.ExternalDepsToBuildFor(target),
	})
}

func (h *Handler) targetParam(w http.ResponseWriter, r *http.Request) (label.Label, bool) {
	v, ok := requireParam(w, r, "target")
	if !ok {
		return label.Label{}, false
	}
	l, err := label.Parse(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return label.Label{}, false
	}
	return l, true
}

type requestedRequest struct {
	Targets []string `json:"targets"`
}

func (h *Handler) handleRequested(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}

	var req requestedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	targets, ok := parseLabels(w, req.Targets)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, g.ComputeRequestedTargets(targets))
}

func (h *Handler) handleSources(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}

	pred := func(string) bool { return true }
	if v := r.URL.Query().Get("kind"); v != "" {
		c, err := rulekind.ParseCategory(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		pred = rulekind.Predicate(c)
	}
	types := []graph.SourceType{graph.SourceRegular}
	if v := r.URL.Query()["type"]; len(v) > 0 {
		types = types[:0]
		for _, name := range v {
			st, err := graph.ParseSourceType(name)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			types = append(types, st)
		}
	}

	files := g.SourceFilesByRuleKind(pred, types...)
	if files == nil {
		files = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (h *Handler) handleDelta(w http.ResponseWriter, r *http.Request) {
	base, ok := h.loadGraph(w, r)
	if !ok {
		return
	}
	head, ok := h.cache.Get(r.PathValue("headID"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("graph %s not found", r.PathValue("headID")))
		return
	}
	writeJSON(w, http.StatusOK, graph.ComputeDelta(base, head))
}
