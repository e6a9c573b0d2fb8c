package ingest

import (
	"fmt"

	"github.com/querysync/qsync/pkg/graph"
	"github.com/querysync/qsync/pkg/label"
	"github.com/querysync/qsync/pkg/rulekind"
)

// Convert builds the project graph from a query summary. Rules of a supported
// kind inside the project become project targets. Every dependency of a
// project target that must come from a build is recorded as a project
// dependency: labels that are not project targets, and project targets with
// generated sources since those cannot be analyzed from the workspace alone.
func Convert(s *Summary, p *Project) (*graph.BuildGraph, error) {
	b := graph.NewBuilder()

	for l, loc := range s.SourceFiles {
		b.AddSourceFile(l, loc)
	}
	for _, pkg := range s.Packages {
		if p.ContainsPackage(pkg) {
			b.AddPackage(pkg)
		}
	}

	targets := make(map[label.Label]*graph.ProjectTarget)
	for l, r := range s.Rules {
		if !p.Contains(l) || len(rulekind.CategoriesOf(r.Kind)) == 0 {
			continue
		}
		targets[l] = &graph.ProjectTarget{
			Label: l,
			Kind:  r.Kind,
			Sources: map[graph.SourceType]label.Set{
				graph.SourceRegular:          label.NewSet(r.Srcs...),
				graph.SourceAndroidResources: label.NewSet(r.ResourceFiles...),
			},
			Deps:          label.NewSet(r.Deps...),
			RuntimeDeps:   label.NewSet(r.RuntimeDeps...),
			Languages:     LanguagesForKind(r.Kind).Intersect(p.Languages),
			CustomPackage: r.CustomPackage,
		}
	}

	for _, t := range targets {
		for _, deps := range []label.Set{t.Deps, t.RuntimeDeps} {
			for dep := range deps {
				dt, internal := targets[dep]
				if !internal || hasGeneratedSources(dt, s) {
					b.AddProjectDeps(dep)
				}
			}
		}
		b.AddTarget(t)
	}

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("converting query output: %w", err)
	}
	return g, nil
}

func hasGeneratedSources(t *graph.ProjectTarget, s *Summary) bool {
	for src := range t.Sources[graph.SourceRegular] {
		if _, ok := s.SourceFiles[src]; !ok {
			return true
		}
	}
	return false
}
