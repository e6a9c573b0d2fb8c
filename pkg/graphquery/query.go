// Package graphquery provides neighborhood and path queries over a project
// build graph. Used by both the CLI and the query daemon.
package graphquery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/querysync/qsync/pkg/graph"
	"github.com/querysync/qsync/pkg/label"
)

// Direction selects which edges a neighborhood query follows.
type Direction string

const (
	DirectionDeps  Direction = "deps"
	DirectionRdeps Direction = "rdeps"
	DirectionBoth  Direction = "both"
)

// ParseDirection parses a direction name. Empty means both.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(s)); d {
	case "":
		return DirectionBoth, nil
	case DirectionDeps, DirectionRdeps, DirectionBoth:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q (want deps, rdeps or both)", s)
	}
}

// Edge is a dependency edge between two labels.
type Edge struct {
	From    label.Label `json:"from"`
	To      label.Label `json:"to"`
	Runtime bool        `json:"runtime,omitempty"`
}

// SubgraphResult holds the result of a neighborhood query. Labels outside
// the project appear in External; they are leaves.
type SubgraphResult struct {
	Targets   []*graph.ProjectTarget `json:"targets"`
	External  label.Set              `json:"external"`
	Edges     []Edge                 `json:"edges"`
	Truncated bool                   `json:"truncated,omitempty"`
}

// PathResult holds the result of a shortest-path query.
type PathResult struct {
	Paths      [][]label.Label `json:"paths"`
	From       string          `json:"from"`
	To         string          `json:"to"`
	PathLength int             `json:"path_length"`
}

// Resolve turns a query into root labels. It accepts a label, a package
// ("//java/app" with no target named "app") or a recursive pattern
// ("//java/...").
func Resolve(g *graph.BuildGraph, query string) (label.Set, error) {
	if pkg, ok := strings.CutSuffix(query, "/..."); ok && strings.HasPrefix(pkg, "//") {
		return g.AllTargets().Subpackages(strings.TrimPrefix(pkg, "//")).LabelSet(), nil
	}
	if query == "//..." {
		return g.AllTargets().LabelSet(), nil
	}

	l, err := label.Parse(query)
	if err != nil {
		return nil, err
	}
	if g.IsProjectTarget(l) || g.ReverseDeps(l).Len() > 0 {
		return label.NewSet(l), nil
	}
	if !strings.Contains(query, ":") {
		return g.AllTargets().Get(l.Package).Clone(), nil
	}
	return label.Set{}, nil
}

func deps(g *graph.BuildGraph, l label.Label) []Edge {
	t, ok := g.Target(l)
	if !ok {
		return nil
	}
	var out []Edge
	for _, d := range t.Deps.Sorted() {
		out = append(out, Edge{From: l, To: d})
	}
	for _, d := range t.RuntimeDeps.Sorted() {
		out = append(out, Edge{From: l, To: d, Runtime: true})
	}
	return out
}

func rdeps(g *graph.BuildGraph, l label.Label) []label.Label {
	return g.ReverseDeps(l).Sorted()
}

// EgoGraph computes the neighborhood of roots up to depth hops, following
// edges in the given direction. maxNodes caps the result size (0 means 500).
func EgoGraph(g *graph.BuildGraph, roots label.Set, depth int, direction Direction, maxNodes int) *SubgraphResult {
	if direction == "" {
		direction = DirectionBoth
	}
	if maxNodes == 0 {
		maxNodes = 500
	}

	visited := make(label.Set)
	queue := roots.Sorted()
	visited.AddAll(roots)

	truncated := false
	for d := 0; d < depth && len(queue) > 0; d++ {
		var next []label.Label
		for _, node := range queue {
			if direction == DirectionDeps || direction == DirectionBoth {
				for _, e := range deps(g, node) {
					if !visited.Has(e.To) {
						visited.Add(e.To)
						next = append(next, e.To)
					}
				}
			}
			if direction == DirectionRdeps || direction == DirectionBoth {
				for _, from := range rdeps(g, node) {
					if !visited.Has(from) {
						visited.Add(from)
						next = append(next, from)
					}
				}
			}
		}
		queue = next

		if visited.Len() >= maxNodes {
			truncated = true
			break
		}
	}

	result := &SubgraphResult{
		Targets:   []*graph.ProjectTarget{},
		External:  label.Set{},
		Edges:     []Edge{},
		Truncated: truncated,
	}
	for _, l := range visited.Sorted() {
		t, ok := g.Target(l)
		if !ok {
			result.External.Add(l)
			continue
		}
		result.Targets = append(result.Targets, t)
		for _, e := range deps(g, l) {
			if visited.Has(e.To) {
				result.Edges = append(result.Edges, e)
			}
		}
	}
	return result
}

// FindPaths finds up to maxPaths shortest dependency paths from any target
// matching fromQ to any label matching toQ.
func FindPaths(g *graph.BuildGraph, fromQ, toQ string, maxPaths int) (*PathResult, error) {
	if maxPaths <= 0 {
		maxPaths = 10
	}

	fromNodes, err := Resolve(g, fromQ)
	if err != nil {
		return nil, err
	}
	toNodes, err := Resolve(g, toQ)
	if err != nil {
		return nil, err
	}

	result := &PathResult{Paths: [][]label.Label{}, From: fromQ, To: toQ}
	if fromNodes.Len() == 0 || toNodes.Len() == 0 {
		return result, nil
	}

	type bfsEntry struct {
		node  label.Label
		depth int
	}
	parents := make(map[label.Label][]label.Label)
	dist := make(map[label.Label]int)

	var queue []bfsEntry
	for _, n := range fromNodes.Sorted() {
		dist[n] = 0
		queue = append(queue, bfsEntry{n, 0})
	}

	foundDepth := -1
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]

		if foundDepth >= 0 && curr.depth > foundDepth {
			break
		}
		if toNodes.Has(curr.node) {
			foundDepth = curr.depth
		}

		for _, e := range deps(g, curr.node) {
			nextDepth := curr.depth + 1
			if _, seen := dist[e.To]; !seen {
				dist[e.To] = nextDepth
				parents[e.To] = []label.Label{curr.node}
				queue = append(queue, bfsEntry{e.To, nextDepth})
			} else if dist[e.To] == nextDepth {
				parents[e.To] = append(parents[e.To], curr.node)
			}
		}
	}
	if foundDepth < 0 {
		return result, nil
	}

	var reached []label.Label
	for _, n := range toNodes.Sorted() {
		if d, ok := dist[n]; ok && d == foundDepth {
			reached = append(reached, n)
		}
	}

	var backtrack func(node label.Label, path []label.Label)
	backtrack = func(node label.Label, path []label.Label) {
		if len(result.Paths) >= maxPaths {
			return
		}
		current := make([]label.Label, len(path)+1)
		current[0] = node
		copy(current[1:], path)

		if fromNodes.Has(node) {
			result.Paths = append(result.Paths, current)
			return
		}
		for _, p := range parents[node] {
			backtrack(p, current)
		}
	}
	for _, target := range reached {
		if len(result.Paths) >= maxPaths {
			break
		}
		backtrack(target, nil)
	}

	sort.SliceStable(result.Paths, func(i, j int) bool {
		return pathLess(result.Paths[i], result.Paths[j])
	})
	result.PathLength = foundDepth
	return result, nil
}

func pathLess(a, b []label.Label) bool {
	for i := range min(len(a), len(b)) {
		if c := label.Compare(a[i], b[i]); c != 0 {
			return c < 0
		}
	}
	return len(a) < len(b)
}
