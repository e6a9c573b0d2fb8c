package ingest

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"

	"github.com/querysync/qsync/pkg/graph"
	"github.com/querysync/qsync/pkg/label"
	"github.com/querysync/qsync/pkg/rulekind"
)

// Project is the part of the workspace under active development. Everything
// outside it is an external dependency.
type Project struct {
	// Includes are workspace-relative directories; "" or "." is the whole workspace.
	Includes []string
	// Excludes are directories or glob patterns such as "**/testdata".
	Excludes []string
	// Languages restricts the languages targets are tagged with. Empty means all.
	Languages graph.LanguageSet

	includes    []string
	excludeDirs []string
	excludeGlob []glob.Glob
}

// NewProject validates and compiles a project definition.
func NewProject(includes, excludes []string, languages graph.LanguageSet) (*Project, error) {
	p := &Project{Includes: includes, Excludes: excludes, Languages: languages}
	for _, inc := range includes {
		p.includes = append(p.includes, cleanDir(inc))
	}
	if len(p.includes) == 0 {
		p.includes = []string{""}
	}
	for _, exc := range excludes {
		if strings.ContainsAny(exc, "*?[{") {
			g, err := glob.Compile(strings.Trim(exc, "/"), '/')
			if err != nil {
				return nil, fmt.Errorf("compiling exclude %q: %w", exc, err)
			}
			p.excludeGlob = append(p.excludeGlob, g)
			continue
		}
		p.excludeDirs = append(p.excludeDirs, cleanDir(exc))
	}
	if p.Languages.IsEmpty() {
		p.Languages = graph.NewLanguageSet(graph.AllLanguages()...)
	}
	return p, nil
}

// ContainsPackage reports whether the package directory is inside the project.
func (p *Project) ContainsPackage(pkg string) bool {
	pkg = cleanDir(pkg)
	included := false
	for _, inc := range p.includes {
		if underDir(pkg, inc) {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, exc := range p.excludeDirs {
		if underDir(pkg, exc) {
			return false
		}
	}
	for _, g := range p.excludeGlob {
		for dir := pkg; dir != ""; dir = parent(dir) {
			if g.Match(dir) {
				return false
			}
		}
	}
	return true
}

// Contains reports whether l is a main-repository label inside the project.
func (p *Project) Contains(l label.Label) bool {
	return !l.IsExternal() && p.ContainsPackage(l.Package)
}

// QueryPatterns returns the target patterns that select everything in the
// project, e.g. "//java/com/foo/...:*".
func (p *Project) QueryPatterns() []string {
	out := make([]string, 0, len(p.includes))
	for _, inc := range p.includes {
		out = append(out, "//"+path.Join(inc, "...")+":*")
	}
	return out
}

// ExcludePatterns returns the target patterns for plain directory excludes.
// Glob excludes cannot be expressed in a query and are applied after parsing.
func (p *Project) ExcludePatterns() []string {
	out := make([]string, 0, len(p.excludeDirs))
	for _, exc := range p.excludeDirs {
		out = append(out, "//"+path.Join(exc, "...")+":*")
	}
	return out
}

// LanguagesForKind maps a rule kind to the languages the IDE analyzes it as.
func LanguagesForKind(kind string) graph.LanguageSet {
	var out graph.LanguageSet
	for _, c := range rulekind.CategoriesOf(kind) {
		switch c {
		case rulekind.CategoryJava, rulekind.CategoryAndroid:
			out = out.With(graph.LanguageJava)
		case rulekind.CategoryKotlin:
			out = out.With(graph.LanguageKotlin)
		case rulekind.CategoryCC:
			out = out.With(graph.LanguageCC)
		}
	}
	return out
}

func cleanDir(d string) string {
	d = path.Clean(strings.Trim(d, "/"))
	if d == "." {
		return ""
	}
	return d
}

func underDir(pkg, dir string) bool {
	return dir == "" || pkg == dir || strings.HasPrefix(pkg, dir+"/")
}

func parent(dir string) string {
	d := path.Dir(dir)
	if d == "." {
		return ""
	}
	return d
}
