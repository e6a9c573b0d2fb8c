package api

import (
	"net/http"
	"strconv"

	"github.com/querysync/qsync/pkg/graphquery"
)

func intParam(r *http.Request, name string, def int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return def
}

func (h *Handler) handleEgo(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}
	target, ok := requireParam(w, r, "target")
	if !ok {
		return
	}

	direction, err := graphquery.ParseDirection(r.URL.Query().Get("direction"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	roots, err := graphquery.Resolve(g, target)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	depth := intParam(r, "depth", 2)
	result := graphquery.EgoGraph(g, roots, depth, direction, intParam(r, "max_nodes", 0))
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePath(w http.ResponseWriter, r *http.Request) {
	g, ok := h.loadGraph(w, r)
	if !ok {
		return
	}

	fromQ := r.URL.Query().Get("from")
	toQ := r.URL.Query().Get("to")
	if fromQ == "" || toQ == "" {
		writeError(w, http.StatusBadRequest, "from and to parameters required")
		return
	}

	result, err := graphquery.FindPaths(g, fromQ, toQ, intParam(r, "max_paths", 10))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
