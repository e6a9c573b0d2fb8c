// Package metrics defines the Prometheus metrics exported by qsyncd.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/querysync/qsync/pkg/graph"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qsync_http_requests_total",
		Help: "Total number of API requests by route and status code.",
	}, []string{"route", "code"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qsync_http_request_seconds",
		Help:    "Time spent serving an API request.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	QueryWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "qsync_query_warnings_total",
		Help: "Total number of path lookups that resolved to no targets.",
	})

	GraphTargets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qsync_graph_targets",
		Help: "Number of project targets in the current graph.",
	})

	GraphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qsync_graph_edges",
		Help: "Number of dependency edges in the current graph.",
	})

	GraphProjectDeps = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qsync_graph_project_deps",
		Help: "Number of external dependencies of the current graph.",
	})

	GraphBuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qsync_graph_build_seconds",
		Help:    "Time spent building a graph from query output.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	ReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qsync_reloads_total",
		Help: "Total number of graph reloads by result.",
	}, []string{"result"})
)

// ObserveGraph records the size of a newly published graph.
func ObserveGraph(g *graph.BuildGraph) {
	s := g.Stats()
	GraphTargets.Set(float64(s.TargetCount))
	GraphEdges.Set(float64(s.EdgeCount))
	GraphProjectDeps.Set(float64(s.ProjectDepCount))
}
