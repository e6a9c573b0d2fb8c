package graph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/querysync/qsync/pkg/label"
)

func lbl(s string) label.Label { return label.MustParse(s) }

func set(labels ...string) label.Set {
	s := make(label.Set, len(labels))
	for _, l := range labels {
		s.Add(lbl(l))
	}
	return s
}

type targetOpt func(*ProjectTarget)

func deps(labels ...string) targetOpt {
	return func(t *ProjectTarget) { t.Deps = set(labels...) }
}

func runtimeDeps(labels ...string) targetOpt {
	return func(t *ProjectTarget) { t.RuntimeDeps = set(labels...) }
}

func srcs(labels ...string) targetOpt {
	return func(t *ProjectTarget) { t.Sources[SourceRegular] = set(labels...) }
}

func resources(labels ...string) targetOpt {
	return func(t *ProjectTarget) { t.Sources[SourceAndroidResources] = set(labels...) }
}

func langs(ls ...Language) targetOpt {
	return func(t *ProjectTarget) { t.Languages = NewLanguageSet(ls...) }
}

func customPackage(p string) targetOpt {
	return func(t *ProjectTarget) { t.CustomPackage = p }
}

func target(l, kind string, opts ...targetOpt) *ProjectTarget {
	t := &ProjectTarget{
		Label:     lbl(l),
		Kind:      kind,
		Sources:   map[SourceType]label.Set{},
		Languages: NewLanguageSet(LanguageJava),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// source registers a source-file label whose file path is derived from it.
func source(b *Builder, l string) {
	parsed := lbl(l)
	file := parsed.Name
	if parsed.Package != "" {
		file = parsed.Package + "/" + parsed.Name
	}
	b.AddSourceFile(parsed, Location{File: file, Row: 1, Column: 1})
}

func mustBuild(t *testing.T, b *Builder) *BuildGraph {
	t.Helper()
	g, err := b.Build()
	require.NoError(t, err)
	return g
}
