package graph

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querysync/qsync/pkg/diag"
	"github.com/querysync/qsync/pkg/label"
)

// sampleGraph is a small java project:
//
//	//app:app -> //lib:lib -> //lib:util -> @maven//:guava
//	//app:app_test -> //app:app (runtime)
//	//lib:lib -> @maven//:gson
//	//native:cc (cc) -> //lib:util
func sampleGraph(t *testing.T) *BuildGraph {
	t.Helper()
	b := NewBuilder()
	for _, src := range []string{
		"//app:App.java", "//app:AppTest.java",
		"//lib:Lib.java", "//lib:Util.java", "//lib:Shared.java",
		"//native:native.cc", "//docs:README.md",
	} {
		source(b, src)
	}
	for _, pkg := range []string{"app", "lib", "native", "docs"} {
		b.AddPackage(pkg)
	}
	b.AddTarget(target("//app:app", "java_library",
		srcs("//app:App.java"), deps("//lib:lib")))
	b.AddTarget(target("//app:app_test", "java_test",
		srcs("//app:AppTest.java"), runtimeDeps("//app:app")))
	b.AddTarget(target("//lib:lib", "java_library",
		srcs("//lib:Lib.java", "//lib:Shared.java"), deps("//lib:util", "@maven//:gson")))
	b.AddTarget(target("//lib:util", "java_library",
		srcs("//lib:Util.java", "//lib:Shared.java"), deps("@maven//:guava")))
	b.AddTarget(target("//native:cc", "cc_library",
		srcs("//native:native.cc"), deps("//lib:util"), langs(LanguageCC)))
	b.AddProjectDeps(lbl("@maven//:guava"), lbl("@maven//:gson"))
	return mustBuild(t, b)
}

func TestTargetOwners(t *testing.T) {
	g := sampleGraph(t)

	owners, ok := g.TargetOwners("lib/Shared.java")
	require.True(t, ok)
	assert.True(t, owners.Equal(set("//lib:lib", "//lib:util")))

	owners, ok = g.TargetOwners("docs/README.md")
	assert.True(t, ok, "known file")
	assert.Zero(t, owners.Len())

	_, ok = g.TargetOwners("nope/Missing.java")
	assert.False(t, ok)
}

func TestReverseDepsSymmetry(t *testing.T) {
	g := sampleGraph(t)
	for _, a := range g.Targets() {
		for b := range a.Deps.Union(a.RuntimeDeps) {
			assert.Truef(t, g.ReverseDeps(b).Has(a.Label), "%s missing from reverse deps of %s", a.Label, b)
		}
	}
}

func TestReverseDepsForSource(t *testing.T) {
	g := sampleGraph(t)

	var got []label.Label
	for _, pt := range g.ReverseDepsForSource("lib/Util.java") {
		got = append(got, pt.Label)
	}
	want := set("//lib:util", "//lib:lib", "//app:app", "//app:app_test", "//native:cc").Sorted()
	assert.Equal(t, want, got)

	assert.Empty(t, g.ReverseDepsForSource("docs/README.md"))
	assert.Empty(t, g.ReverseDepsForSource("unknown.java"))
}

func TestReverseDepsForSourceCycle(t *testing.T) {
	b := NewBuilder()
	source(b, "//a:A.java")
	b.AddTarget(target("//a:a", "java_library", srcs("//a:A.java"), deps("//a:b")))
	b.AddTarget(target("//a:b", "java_library", deps("//a:a")))
	g := mustBuild(t, b)

	assert.Len(t, g.ReverseDepsForSource("a/A.java"), 2)
}

func TestSameLanguageTargetsDependingOn(t *testing.T) {
	// A (java) -> B (cc) -> C (java)
	b := NewBuilder()
	b.AddTarget(target("//x:a", "java_library", deps("//x:b"), langs(LanguageJava)))
	b.AddTarget(target("//x:b", "cc_library", deps("//x:c"), langs(LanguageCC)))
	b.AddTarget(target("//x:c", "java_library", langs(LanguageJava)))
	b.AddTarget(target("//x:d", "java_library", deps("//x:c"), langs(LanguageJava, LanguageKotlin)))
	g := mustBuild(t, b)

	got := g.SameLanguageTargetsDependingOn(set("//x:c"))
	assert.True(t, got.Equal(set("//x:c", "//x:d")), "got %v", got.Sorted())
	assert.False(t, got.Has(lbl("//x:a")))

	got = g.SameLanguageTargetsDependingOn(set("//x:b"))
	assert.True(t, got.Equal(set("//x:b")), "java dependent of cc target must be excluded")

	got = g.SameLanguageTargetsDependingOn(set("@ext//:unknown"))
	assert.True(t, got.Equal(set("@ext//:unknown")))
}

func TestTransitiveExternalDependencies(t *testing.T) {
	tests := []struct {
		name        string
		targets     []*ProjectTarget
		projectDeps []string
		query       string
		want        label.Set
	}{
		{
			name:        "external classification",
			targets:     []*ProjectTarget{target("//a:a", "java_library", deps("@x//:x"))},
			projectDeps: []string{"@x//:x"},
			query:       "//a:a",
			want:        set("@x//:x"),
		},
		{
			name: "project target treated as external",
			targets: []*ProjectTarget{
				target("//a:a", "java_library", deps("//a:b")),
				target("//a:b", "java_library", deps("@c//:c")),
			},
			projectDeps: []string{"//a:b", "@c//:c"},
			query:       "//a:a",
			want:        set("//a:b", "@c//:c"),
		},
		{
			name: "cycle terminates",
			targets: []*ProjectTarget{
				target("//a:a", "java_library", deps("//a:b")),
				target("//a:b", "java_library", deps("//a:a", "@x//:x")),
			},
			projectDeps: []string{"@x//:x"},
			query:       "//a:a",
			want:        set("@x//:x"),
		},
		{
			name: "cycle without externals",
			targets: []*ProjectTarget{
				target("//a:a", "java_library", deps("//a:b")),
				target("//a:b", "java_library", deps("//a:a")),
			},
			query: "//a:a",
			want:  set(),
		},
		{
			name:        "unlisted external is dropped",
			targets:     []*ProjectTarget{target("//a:a", "java_library", deps("@x//:x", "@y//:y"))},
			projectDeps: []string{"@x//:x"},
			query:       "//a:a",
			want:        set("@x//:x"),
		},
		{
			name: "runtime deps are not followed",
			targets: []*ProjectTarget{
				target("//a:a", "java_library", runtimeDeps("@x//:x")),
			},
			projectDeps: []string{"@x//:x"},
			query:       "//a:a",
			want:        set(),
		},
		{
			name:        "unknown label is its own dependency",
			projectDeps: []string{"@x//:x"},
			query:       "@x//:x",
			want:        set("@x//:x"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			for _, pt := range tt.targets {
				b.AddTarget(pt)
			}
			for _, d := range tt.projectDeps {
				b.AddProjectDeps(lbl(d))
			}
			g := mustBuild(t, b)

			got := g.TransitiveExternalDependencies(lbl(tt.query))
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got.Sorted(), tt.want.Sorted())

			again := g.TransitiveExternalDependencies(lbl(tt.query))
			assert.True(t, again.Equal(got), "cached result differs")
			direct := g.calculateTransitiveExternalDependencies(lbl(tt.query))
			assert.True(t, direct.Equal(got), "memoized result differs from direct computation")
		})
	}
}

func TestTransitiveExternalDependenciesConcurrent(t *testing.T) {
	g := sampleGraph(t)
	want := set("@maven//:guava", "@maven//:gson")

	var wg sync.WaitGroup
	results := make([]label.Set, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = g.TransitiveExternalDependencies(lbl("//app:app"))
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		assert.Truef(t, got.Equal(want), "result %d = %v", i, got.Sorted())
	}
	assert.Equal(t, 1, g.transitiveDeps.len())
}

func TestDependencyTrackingBehaviors(t *testing.T) {
	g := sampleGraph(t)
	assert.Equal(t, []DependencyTrackingBehavior{ExternalDependencies}, g.DependencyTrackingBehaviors(lbl("//lib:lib")))
	assert.Equal(t, []DependencyTrackingBehavior{Self}, g.DependencyTrackingBehaviors(lbl("//native:cc")))
	assert.Empty(t, g.DependencyTrackingBehaviors(lbl("@maven//:guava")))
}

func TestExternalDepsToBuildFor(t *testing.T) {
	b := NewBuilder()
	b.AddTarget(target("//m:mixed", "cc_library", deps("@x//:x"), langs(LanguageCC, LanguageJava)))
	b.AddTarget(target("//m:cc", "cc_library", deps("@x//:x"), langs(LanguageCC)))
	b.AddTarget(target("//m:java", "java_library", deps("@x//:x")))
	b.AddProjectDeps(lbl("@x//:x"))
	g := mustBuild(t, b)

	assert.True(t, g.ExternalDepsToBuildFor(lbl("//m:mixed")).Equal(set("//m:mixed", "@x//:x")))
	assert.True(t, g.ExternalDepsToBuildFor(lbl("//m:cc")).Equal(set("//m:cc")))
	assert.True(t, g.ExternalDepsToBuildFor(lbl("//m:java")).Equal(set("@x//:x")))
	assert.Zero(t, g.ExternalDepsToBuildFor(lbl("@x//:x")).Len())
}

func TestComputeRequestedTargets(t *testing.T) {
	g := sampleGraph(t)

	req := g.ComputeRequestedTargets(set("//lib:util", "//native:cc"))
	assert.True(t, req.BuildTargets.Equal(set("//lib:util", "//native:cc")))
	assert.True(t, req.ExpectedDependencyTargets.Equal(set("@maven//:guava")))

	req = g.ComputeRequestedTargets(set("//native:cc"))
	assert.Zero(t, req.ExpectedDependencyTargets.Len())
}

func TestProjectTargets(t *testing.T) {
	b := NewBuilder()
	source(b, "//pkg:Foo.java")
	source(b, "//pkg:BUILD")
	source(b, "//pkg/sub:Bar.java")
	source(b, "//pkg:notes.txt")
	b.AddPackage("pkg")
	b.AddPackage("pkg/sub")
	b.AddTarget(target("//pkg:a", "java_library", srcs("//pkg:Foo.java")))
	b.AddTarget(target("//pkg:b", "java_library"))
	b.AddTarget(target("//pkg/sub:c", "java_library", srcs("//pkg/sub:Bar.java")))
	g := mustBuild(t, b)

	tests := []struct {
		name     string
		path     string
		want     TargetsToBuild
		warnings int
	}{
		{
			name: "build file",
			path: "pkg/BUILD",
			want: TargetGroup(set("//pkg:a", "//pkg:b")),
		},
		{
			name: "bazel build file",
			path: "pkg/sub/BUILD.bazel",
			want: TargetGroup(set("//pkg/sub:c")),
		},
		{
			name: "directory",
			path: "pkg",
			want: TargetGroup(set("//pkg:a", "//pkg:b", "//pkg/sub:c")),
		},
		{
			name: "directory with trailing slash",
			path: "pkg/sub/",
			want: TargetGroup(set("//pkg/sub:c")),
		},
		{
			name: "source file",
			path: "pkg/Foo.java",
			want: ForSourceFile(set("//pkg:a"), "pkg/Foo.java"),
		},
		{
			name: "known file without owner",
			path: "pkg/notes.txt",
			want: NoTargets,
		},
		{
			name:     "unknown file",
			path:     "pkg/missing.txt",
			want:     NoTargets,
			warnings: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := diag.NewWriterContext(nil)
			got := g.ProjectTargets(ctx, tt.path)

			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Equal(t, tt.want.SourceFile, got.SourceFile)
			assert.True(t, got.Targets.Equal(tt.want.Targets), "got %v", got.Targets.Sorted())
			assert.Len(t, ctx.Messages(), tt.warnings)
			assert.Equal(t, tt.warnings > 0, ctx.HasWarnings())
		})
	}
}

func TestProjectTargetsWarningText(t *testing.T) {
	ctx := diag.NewWriterContext(nil)
	Empty().ProjectTargets(ctx, "pkg/missing.txt")

	msgs := ctx.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Can't find any supported targets for pkg/missing.txt", msgs[0].Text)
	assert.Equal(t, diag.LevelWarning, msgs[1].Level)
}

func TestFileDependencies(t *testing.T) {
	g := sampleGraph(t)

	got, ok := g.FileDependencies("lib/Shared.java")
	require.True(t, ok)
	assert.True(t, got.Equal(set("@maven//:guava", "@maven//:gson")))

	_, ok = g.FileDependencies("nope.java")
	assert.False(t, ok)
}

func TestTargetLanguages(t *testing.T) {
	g := sampleGraph(t)
	got := g.TargetLanguages(set("//lib:lib", "//native:cc", "@maven//:guava"))
	assert.Equal(t, NewLanguageSet(LanguageJava, LanguageCC), got)
}

func TestTransitiveExternalDependenciesUnknownLabels(t *testing.T) {
	g := sampleGraph(t)

	for _, l := range []string{"//nope:a", "//nope:b", "@maven//:guava", "@other//:x"} {
		assert.Zero(t, g.TransitiveExternalDependencies(lbl(l)).Len(), l)
	}
	assert.Zero(t, g.transitiveDeps.len(), "labels outside the graph are not cached")

	g.TransitiveExternalDependencies(lbl("//lib:util"))
	assert.Equal(t, 1, g.transitiveDeps.len())
}

func TestQueryResultsAreCopies(t *testing.T) {
	g := sampleGraph(t)

	deps := g.TransitiveExternalDependencies(lbl("//app:app"))
	deps.Add(lbl("@evil//:x"))
	assert.True(t, g.TransitiveExternalDependencies(lbl("//app:app")).Equal(set("@maven//:guava", "@maven//:gson")))

	owners, _ := g.TargetOwners("lib/Shared.java")
	owners.Add(lbl("//app:app"))
	owners, _ = g.TargetOwners("lib/Shared.java")
	assert.True(t, owners.Equal(set("//lib:lib", "//lib:util")))

	srcs := g.JavaSourceFiles()
	require.NotEmpty(t, srcs)
	want := srcs[0]
	srcs[0] = "changed"
	assert.Equal(t, want, g.JavaSourceFiles()[0])
}

func TestProjectTargetsAbsolutePath(t *testing.T) {
	g := sampleGraph(t)

	for _, p := range []string{"/lib", "/lib/BUILD", "/lib/Lib.java"} {
		ctx := diag.NewWriterContext(nil)
		got := g.ProjectTargets(ctx, p)
		assert.Equal(t, TargetsNone, got.Kind, p)
		assert.Zero(t, got.Targets.Len(), p)
		assert.Len(t, ctx.Messages(), 2, p)
		assert.True(t, ctx.HasWarnings(), p)
	}

	ctx := diag.NewWriterContext(nil)
	assert.Equal(t, TargetsGroup, g.ProjectTargets(ctx, "lib").Kind)
}
