package api

import (
	"os"
	"strconv"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/querysync/qsync/internal/metrics"
	"github.com/querysync/qsync/pkg/graph"
)

// CurrentGraphID is the graph ID that always resolves to the latest graph.
const CurrentGraphID = "current"

// GraphCache holds the current graph plus the most recently published ones,
// so clients pinned to an older graph ID keep a consistent view across syncs.
type GraphCache struct {
	graphs  *lru.Cache[string, *graph.BuildGraph]
	current atomic.Pointer[graph.BuildGraph]
}

// NewGraphCache creates a cache with the given maximum number of graphs.
// If maxSize <= 0, it defaults to 8.
func NewGraphCache(maxSize int) *GraphCache {
	if maxSize <= 0 {
		maxSize = 8
	}
	graphs, err := lru.New[string, *graph.BuildGraph](maxSize)
	if err != nil {
		panic(err) // only fails for non-positive sizes
	}
	c := &GraphCache{graphs: graphs}
	c.current.Store(graph.Empty())
	return c
}

// NewGraphCacheFromEnv creates a cache with size from GRAPH_CACHE_SIZE env var,
// falling back to def.
func NewGraphCacheFromEnv(def int) *GraphCache {
	size := def
	if v := os.Getenv("GRAPH_CACHE_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			size = parsed
		}
	}
	return NewGraphCache(size)
}

// Publish makes g the current graph. Readers holding the previous graph
// continue to use it undisturbed.
func (c *GraphCache) Publish(g *graph.BuildGraph) {
	c.graphs.Add(g.ID(), g)
	c.current.Store(g)
	metrics.ObserveGraph(g)
}

// Current returns the latest published graph, or an empty graph before the
// first publish.
func (c *GraphCache) Current() *graph.BuildGraph {
	return c.current.Load()
}

// Get returns the graph with the given ID. CurrentGraphID always resolves.
func (c *GraphCache) Get(id string) (*graph.BuildGraph, bool) {
	if id == CurrentGraphID {
		return c.Current(), true
	}
	if cur := c.Current(); cur.ID() == id {
		return cur, true
	}
	return c.graphs.Get(id)
}

// IDs returns the IDs of the cached graphs, oldest first.
func (c *GraphCache) IDs() []string {
	return c.graphs.Keys()
}
