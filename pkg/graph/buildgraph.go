package graph

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/querysync/qsync/pkg/label"
	"github.com/querysync/qsync/pkg/rulekind"
)

// ErrDuplicateTarget is returned by Builder.Build when two targets share a label.
var ErrDuplicateTarget = errors.New("duplicate target")

// BuildGraph is the immutable graph of all rules that make up the project.
// A new BuildGraph replaces the previous one on every sync.
type BuildGraph struct {
	id      string
	builtAt time.Time

	// locations maps every known source label to its file.
	locations map[label.Label]Location
	packages  PackageSet
	// fileToTarget maps a workspace path to its source-file label.
	fileToTarget map[string]label.Label
	// projectDeps are the dependencies the project boundary treats as external.
	projectDeps label.Set
	allTargets  *TargetTree
	targetMap   map[label.Label]*ProjectTarget

	// Derived indices, computed in Build.
	reverseDeps  map[label.Label]label.Set
	sourceOwners map[label.Label]label.Set

	transitiveDeps *memo

	javaSources          func() []string
	protoSources         func() []string
	ccSources            func() []string
	androidSources       func() []string
	androidResourceFiles func() []string

	stats Stats
}

// Stats summarizes a graph.
type Stats struct {
	TargetCount     int `json:"target_count"`
	SourceFileCount int `json:"source_file_count"`
	PackageCount    int `json:"package_count"`
	ProjectDepCount int `json:"project_dep_count"`
	EdgeCount       int `json:"edge_count"`
	BuildMs         int `json:"build_ms"`
}

// Builder collects the inputs of a BuildGraph. Builders are single-use and
// not safe for concurrent use.
type Builder struct {
	locations    map[label.Label]Location
	fileToTarget map[string]label.Label
	packages     []string
	projectDeps  label.Set
	targets      map[label.Label]*ProjectTarget
	errs         []error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		locations:    make(map[label.Label]Location),
		fileToTarget: make(map[string]label.Label),
		projectDeps:  make(label.Set),
		targets:      make(map[label.Label]*ProjectTarget),
	}
}

// AddSourceFile records the location of a source file label.
func (b *Builder) AddSourceFile(src label.Label, loc Location) {
	b.locations[src] = loc
	b.fileToTarget[loc.File] = src
}

// AddPackage records a package (a directory with a BUILD file).
func (b *Builder) AddPackage(pkg string) {
	b.packages = append(b.packages, pkg)
}

// AddProjectDeps marks labels as dependencies external to the project.
func (b *Builder) AddProjectDeps(labels ...label.Label) {
	for _, l := range labels {
		b.projectDeps.Add(l)
	}
}

// AddTarget adds an in-project target. Adding the same label twice makes
// Build fail.
func (b *Builder) AddTarget(t *ProjectTarget) {
	if _, exists := b.targets[t.Label]; exists {
		b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateTarget, t.Label))
		return
	}
	b.targets[t.Label] = t
}

// Build validates the inputs and returns the finished graph. Reverse
// dependency and source ownership indices are computed eagerly.
func (b *Builder) Build() (*BuildGraph, error) {
	start := time.Now()
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("building graph: %w", errors.Join(b.errs...))
	}

	tree := NewTargetTreeBuilder()
	for l := range b.targets {
		tree.Add(l)
	}

	g := &BuildGraph{
		id:             uuid.New().String(),
		builtAt:        start,
		locations:      b.locations,
		packages:       NewPackageSet(b.packages...),
		fileToTarget:   b.fileToTarget,
		projectDeps:    b.projectDeps,
		allTargets:     tree.Build(),
		targetMap:      b.targets,
		transitiveDeps: newMemo(),
	}
	g.reverseDeps = computeReverseDeps(g.targetMap)
	g.sourceOwners = computeSourceOwners(g.targetMap)

	g.javaSources = sync.OnceValue(func() []string {
		return g.SourceFilesByRuleKind(rulekind.IsJava, SourceRegular)
	})
	g.protoSources = sync.OnceValue(func() []string {
		return g.SourceFilesByRuleKind(rulekind.IsProtoSource, SourceRegular)
	})
	g.ccSources = sync.OnceValue(func() []string {
		return g.SourceFilesByRuleKind(rulekind.IsCC, SourceRegular)
	})
	g.androidSources = sync.OnceValue(func() []string {
		return g.SourceFilesByRuleKind(rulekind.IsAndroid, SourceRegular)
	})
	g.androidResourceFiles = sync.OnceValue(func() []string {
		return g.SourceFilesByRuleKind(rulekind.IsAndroid, SourceAndroidResources)
	})

	edges := 0
	for _, t := range g.targetMap {
		edges += t.Deps.Len() + t.RuntimeDeps.Len()
	}
	g.stats = Stats{
		TargetCount:     len(g.targetMap),
		SourceFileCount: len(g.fileToTarget),
		PackageCount:    g.packages.Len(),
		ProjectDepCount: g.projectDeps.Len(),
		EdgeCount:       edges,
		BuildMs:         int(time.Since(start).Milliseconds()),
	}

	b.targets = nil
	b.locations = nil
	b.fileToTarget = nil
	return g, nil
}

// Empty returns a graph with no targets, for use before the first sync.
func Empty() *BuildGraph {
	g, err := NewBuilder().Build()
	if err != nil {
		panic(err)
	}
	return g
}

func computeReverseDeps(targets map[label.Label]*ProjectTarget) map[label.Label]label.Set {
	rdeps := make(map[label.Label]label.Set)
	add := func(dep, from label.Label) {
		s, ok := rdeps[dep]
		if !ok {
			s = make(label.Set)
			rdeps[dep] = s
		}
		s.Add(from)
	}
	for _, t := range targets {
		for dep := range t.Deps {
			add(dep, t.Label)
		}
		for dep := range t.RuntimeDeps {
			add(dep, t.Label)
		}
	}
	return rdeps
}

func computeSourceOwners(targets map[label.Label]*ProjectTarget) map[label.Label]label.Set {
	owners := make(map[label.Label]label.Set)
	for _, t := range targets {
		for _, srcs := range t.Sources {
			for src := range srcs {
				s, ok := owners[src]
				if !ok {
					s = make(label.Set)
					owners[src] = s
				}
				s.Add(t.Label)
			}
		}
	}
	return owners
}

// ID uniquely identifies this graph instance.
func (g *BuildGraph) ID() string { return g.id }

// BuiltAt is when construction started.
func (g *BuildGraph) BuiltAt() time.Time { return g.builtAt }

// Stats returns summary statistics.
func (g *BuildGraph) Stats() Stats { return g.stats }

// Packages returns the set of known packages.
func (g *BuildGraph) Packages() PackageSet { return g.packages }

// ProjectDeps returns the labels the project treats as external dependencies.
// The set is shared and must not be modified.
func (g *BuildGraph) ProjectDeps() label.Set { return g.projectDeps }

// AllTargets returns the package index of project targets.
func (g *BuildGraph) AllTargets() *TargetTree { return g.allTargets }

// Target returns the project target for l. The target is shared and must not
// be modified.
func (g *BuildGraph) Target(l label.Label) (*ProjectTarget, bool) {
	t, ok := g.targetMap[l]
	return t, ok
}

// IsProjectTarget reports whether l is an in-project target. Any other label
// is external.
func (g *BuildGraph) IsProjectTarget(l label.Label) bool {
	_, ok := g.targetMap[l]
	return ok
}

// Targets returns all project targets ordered by label.
func (g *BuildGraph) Targets() []*ProjectTarget {
	out := make([]*ProjectTarget, 0, len(g.targetMap))
	for _, t := range g.targetMap {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *ProjectTarget) int { return label.Compare(a.Label, b.Label) })
	return out
}

// Location returns the file location of a source label. Generated sources
// have no location.
func (g *BuildGraph) Location(src label.Label) (Location, bool) {
	loc, ok := g.locations[src]
	return loc, ok
}

// ReverseDeps returns the project targets that directly depend on l through
// deps or runtime_deps. The set is shared and must not be modified.
func (g *BuildGraph) ReverseDeps(l label.Label) label.Set {
	return g.reverseDeps[l]
}

// SourceOwners returns the targets that list src as a source. The set is
// shared and must not be modified.
func (g *BuildGraph) SourceOwners(src label.Label) label.Set {
	return g.sourceOwners[src]
}

// String keeps debug output short for large graphs.
func (g *BuildGraph) String() string {
	return fmt.Sprintf("BuildGraph(%s, %d targets)", g.id, len(g.targetMap))
}

// memo caches one computed label set per key. Concurrent misses for the same
// key share a single computation; a stored value is never modified.
type memo struct {
	mu    sync.RWMutex
	m     map[label.Label]label.Set
	group singleflight.Group
}

func newMemo() *memo {
	return &memo{m: make(map[label.Label]label.Set)}
}

func (c *memo) lookup(key label.Label) (label.Set, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *memo) get(key label.Label, compute func(label.Label) label.Set) label.Set {
	if v, ok := c.lookup(key); ok {
		return v
	}
	v, _, _ := c.group.Do(key.String(), func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		v := compute(key)
		c.mu.Lock()
		c.m[key] = v
		c.mu.Unlock()
		return v, nil
	})
	return v.(label.Set)
}

func (c *memo) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// PackageSet is the set of packages (directories containing a BUILD file).
type PackageSet struct {
	pkgs map[string]struct{}
}

// NewPackageSet returns a set of the given package paths.
func NewPackageSet(pkgs ...string) PackageSet {
	s := PackageSet{pkgs: make(map[string]struct{}, len(pkgs))}
	for _, p := range pkgs {
		s.pkgs[cleanPath(p)] = struct{}{}
	}
	return s
}

// Contains reports whether pkg is a known package.
func (s PackageSet) Contains(pkg string) bool {
	_, ok := s.pkgs[cleanPath(pkg)]
	return ok
}

// Len returns the number of packages.
func (s PackageSet) Len() int { return len(s.pkgs) }

// IsEmpty reports whether there are no packages.
func (s PackageSet) IsEmpty() bool { return len(s.pkgs) == 0 }

// All returns the packages in sorted order.
func (s PackageSet) All() []string {
	out := make([]string, 0, len(s.pkgs))
	for p := range s.pkgs {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// ParentPackage returns the closest package strictly above p.
func (s PackageSet) ParentPackage(p string) (string, bool) {
	p = cleanPath(p)
	for p != "" {
		p = parentDir(p)
		if s.Contains(p) {
			return p, true
		}
	}
	return "", false
}

// cleanPath normalizes a workspace-relative path; the workspace root is "".
func cleanPath(p string) string {
	p = path.Clean(p)
	if p == "." {
		return ""
	}
	return p
}

func parentDir(p string) string {
	d := path.Dir(p)
	if d == "." || d == "/" {
		return ""
	}
	return d
}
