package graph

import (
	"slices"

	"github.com/querysync/qsync/pkg/label"
)

// TargetSources returns the workspace paths of target's sources of the given
// types. Generated sources have no location and are skipped.
func (g *BuildGraph) TargetSources(target label.Label, types ...SourceType) []string {
	t, ok := g.targetMap[target]
	if !ok {
		return nil
	}
	return g.paths(t.SourcesOf(types...))
}

// TargetsForKind returns the project targets of exactly the given rule kind.
func (g *BuildGraph) TargetsForKind(kind string) []*ProjectTarget {
	var out []*ProjectTarget
	for _, t := range g.Targets() {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// SourceFilesByRuleKind returns the paths of the sources of the given types
// belonging to targets whose kind satisfies pred.
func (g *BuildGraph) SourceFilesByRuleKind(pred func(kind string) bool, types ...SourceType) []string {
	srcs := make(label.Set)
	for _, t := range g.targetMap {
		if pred(t.Kind) {
			srcs.AddAll(t.SourcesOf(types...))
		}
	}
	return g.paths(srcs)
}

// JavaSourceFiles returns the regular sources of JVM rules.
func (g *BuildGraph) JavaSourceFiles() []string { return slices.Clone(g.javaSources()) }

// ProtoSourceFiles returns the sources of proto_library rules.
func (g *BuildGraph) ProtoSourceFiles() []string { return slices.Clone(g.protoSources()) }

// CCSourceFiles returns the regular sources of native rules.
func (g *BuildGraph) CCSourceFiles() []string { return slices.Clone(g.ccSources()) }

// AndroidSourceFiles returns the regular sources of Android rules.
func (g *BuildGraph) AndroidSourceFiles() []string { return slices.Clone(g.androidSources()) }

// AndroidResourceFiles returns the resource files of Android rules.
func (g *BuildGraph) AndroidResourceFiles() []string { return slices.Clone(g.androidResourceFiles()) }

// AllSourceFiles returns every source path known to the graph, sorted.
func (g *BuildGraph) AllSourceFiles() []string {
	out := make([]string, 0, len(g.fileToTarget))
	for p := range g.fileToTarget {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// IsSourceFile reports whether p is a source path known to the graph.
func (g *BuildGraph) IsSourceFile(p string) bool {
	_, ok := g.fileToTarget[cleanPath(p)]
	return ok
}

// AllCustomPackages returns the distinct custom_package values, sorted.
func (g *BuildGraph) AllCustomPackages() []string {
	var out []string
	for _, t := range g.targetMap {
		if t.CustomPackage != "" && !slices.Contains(out, t.CustomPackage) {
			out = append(out, t.CustomPackage)
		}
	}
	slices.Sort(out)
	return out
}

func (g *BuildGraph) paths(srcs label.Set) []string {
	var out []string
	for _, src := range srcs.Sorted() {
		if loc, ok := g.locations[src]; ok {
			out = append(out, loc.File)
		}
	}
	return out
}
