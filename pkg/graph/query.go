package graph

import (
	"path"
	"slices"

	"github.com/querysync/qsync/pkg/diag"
	"github.com/querysync/qsync/pkg/label"
)

// TargetOwners returns the targets that own the source file at p. The bool
// is false when p is not a known source file; a known file may still have
// no owners.
func (g *BuildGraph) TargetOwners(p string) (label.Set, bool) {
	owners, ok := g.owners(p)
	return owners.Clone(), ok
}

// owners is TargetOwners without the copy.
func (g *BuildGraph) owners(p string) (label.Set, bool) {
	src, ok := g.fileToTarget[cleanPath(p)]
	if !ok {
		return nil, false
	}
	return g.sourceOwners[src], true
}

// ReverseDepsForSource returns every project target that depends on the
// source file at p through a chain of project targets, the owners included.
// A project target reached only through an external target is not included.
func (g *BuildGraph) ReverseDepsForSource(p string) []*ProjectTarget {
	owners, _ := g.owners(p)
	if owners.Len() == 0 {
		return nil
	}

	queue := owners.Sorted()
	visited := make(label.Set)
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if visited.Has(next) {
			continue
		}
		visited.Add(next)
		for rdep := range g.reverseDeps[next] {
			if !visited.Has(rdep) {
				queue = append(queue, rdep)
			}
		}
	}

	out := make([]*ProjectTarget, 0, visited.Len())
	for _, l := range visited.Sorted() {
		if t, ok := g.targetMap[l]; ok {
			out = append(out, t)
		}
	}
	return out
}

// SameLanguageTargetsDependingOn returns the targets plus their direct
// reverse dependencies that share at least one language with them.
func (g *BuildGraph) SameLanguageTargetsDependingOn(targets label.Set) label.Set {
	out := targets.Clone()
	for target := range targets {
		t, ok := g.targetMap[target]
		if !ok {
			continue
		}
		for rdep := range g.reverseDeps[target] {
			if d, ok := g.targetMap[rdep]; ok && d.Languages.Intersects(t.Languages) {
				out.Add(rdep)
			}
		}
	}
	return out
}

// TransitiveExternalDependencies returns the project dependencies reachable
// from target over deps edges. Results for project targets are cached for the
// life of the graph.
func (g *BuildGraph) TransitiveExternalDependencies(target label.Label) label.Set {
	return g.transitiveExternalDependencies(target).Clone()
}

// transitiveExternalDependencies returns the cached set, which must not be
// modified. Labels outside the graph are computed each time so that arbitrary
// lookups cannot grow the cache.
func (g *BuildGraph) transitiveExternalDependencies(target label.Label) label.Set {
	if _, ok := g.targetMap[target]; !ok {
		return g.calculateTransitiveExternalDependencies(target)
	}
	return g.transitiveDeps.get(target, g.calculateTransitiveExternalDependencies)
}

func (g *BuildGraph) calculateTransitiveExternalDependencies(target label.Label) label.Set {
	found := make(label.Set)
	// The query output is not checked for cycles.
	visited := make(label.Set)
	stack := []label.Label{target}
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Has(next) {
			continue
		}
		visited.Add(next)

		t, ok := g.targetMap[next]
		if !ok {
			found.Add(next)
			continue
		}
		if g.projectDeps.Has(next) {
			found.Add(next)
		}
		for dep := range t.Deps {
			if !visited.Has(dep) {
				stack = append(stack, dep)
			}
		}
	}
	return found.Intersect(g.projectDeps)
}

// DependencyTrackingBehaviors returns the behaviors of a project target.
// Unknown labels have none.
func (g *BuildGraph) DependencyTrackingBehaviors(target label.Label) []DependencyTrackingBehavior {
	t, ok := g.targetMap[target]
	if !ok {
		return nil
	}
	return t.DependencyTrackingBehaviors()
}

// ExternalDepsToBuildFor returns what must be built to analyze target: its
// transitive external dependencies, the target itself, or both, depending
// on its languages.
func (g *BuildGraph) ExternalDepsToBuildFor(target label.Label) label.Set {
	out := make(label.Set)
	for _, b := range g.DependencyTrackingBehaviors(target) {
		switch b {
		case ExternalDependencies:
			out.AddAll(g.transitiveExternalDependencies(target))
		case Self:
			out.Add(target)
		}
	}
	return out
}

// ComputeRequestedTargets pairs the targets to build with the dependency
// targets whose outputs the build is expected to produce.
func (g *BuildGraph) ComputeRequestedTargets(targets label.Set) RequestedTargets {
	expected := make(label.Set)
	for target := range targets {
		include := slices.ContainsFunc(g.DependencyTrackingBehaviors(target),
			DependencyTrackingBehavior.IncludesExternalDependencies)
		if include {
			expected.AddAll(g.transitiveExternalDependencies(target))
		}
	}
	return RequestedTargets{
		BuildTargets:              targets.Clone(),
		ExpectedDependencyTargets: expected,
	}
}

// ProjectTargets resolves a workspace path to targets. A BUILD file yields
// its package's targets and a directory yields every target beneath it; both
// are a target group. A source file yields its owners. Anything else yields
// NoTargets, and a path that is not a known source file is reported to ctx
// as a warning.
func (g *BuildGraph) ProjectTargets(ctx diag.Context, p string) TargetsToBuild {
	if path.IsAbs(p) {
		// Workspace paths are relative; "/pkg" must not resolve to "pkg".
		return noSupportedTargets(ctx, p)
	}
	p = cleanPath(p)
	if isBuildFile(p) {
		return TargetGroup(g.allTargets.Get(parentDir(p)).Clone())
	}
	if sub := g.allTargets.Subpackages(p); !sub.IsEmpty() {
		// Only directories have subpackages.
		return TargetGroup(sub.LabelSet())
	}

	if _, known := g.fileToTarget[p]; known {
		owners, _ := g.owners(p)
		if owners.Len() > 0 {
			return ForSourceFile(owners.Clone(), p)
		}
		return NoTargets
	}
	return noSupportedTargets(ctx, p)
}

func noSupportedTargets(ctx diag.Context, p string) TargetsToBuild {
	ctx.Output(diag.Warnf("Can't find any supported targets for %s", p))
	ctx.Output(diag.Warnf("If this is a newly added supported rule, please re-sync your project."))
	ctx.SetHasWarnings()
	return NoTargets
}

func isBuildFile(p string) bool {
	base := path.Base(p)
	return base == "BUILD" || base == "BUILD.bazel"
}

// FileDependencies returns the transitive external dependencies of every
// owner of the source file at p. The bool is false for unknown files.
func (g *BuildGraph) FileDependencies(p string) (label.Set, bool) {
	owners, ok := g.owners(p)
	if !ok {
		return nil, false
	}
	out := make(label.Set)
	for owner := range owners {
		out.AddAll(g.transitiveExternalDependencies(owner))
	}
	return out, true
}

// TargetLanguages returns the union of the languages of the given targets.
// Labels that are not project targets contribute nothing.
func (g *BuildGraph) TargetLanguages(targets label.Set) LanguageSet {
	var out LanguageSet
	for l := range targets {
		if t, ok := g.targetMap[l]; ok {
			out = out.Union(t.Languages)
		}
	}
	return out
}
