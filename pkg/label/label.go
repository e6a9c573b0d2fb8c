// Package label defines the canonical build target identifier used as the
// primary key across the build graph.
package label

import (
	"cmp"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
)

// ErrInvalidLabel is returned by Parse for strings that are not Bazel labels.
var ErrInvalidLabel = errors.New("invalid label")

// Label names a single build target. The zero value is not a valid label.
// Labels are comparable and can be used directly as map keys.
type Label struct {
	Repo    string // external repository name, empty for the main repository
	Package string // workspace-relative package path, "" for the root package
	Name    string // target name within the package
}

// Parse parses a Bazel label such as "//app/foo:lib", "//app/foo" or
// "@maven//:guava". The "@//" and "@@//" prefixes refer to the main repository.
func Parse(s string) (Label, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Label{}, fmt.Errorf("%w: empty string", ErrInvalidLabel)
	}

	var repo string
	rest := s
	if strings.HasPrefix(rest, "@") {
		rest = strings.TrimLeft(rest, "@")
		idx := strings.Index(rest, "//")
		if idx < 0 {
			return Label{}, fmt.Errorf("%w: %q has no package separator", ErrInvalidLabel, s)
		}
		repo = rest[:idx]
		rest = rest[idx:]
	}
	if !strings.HasPrefix(rest, "//") {
		return Label{}, fmt.Errorf("%w: %q must start with //", ErrInvalidLabel, s)
	}
	rest = rest[2:]

	pkg, name, hasName := strings.Cut(rest, ":")
	if !hasName {
		name = path.Base(pkg)
		if pkg == "" {
			name = ""
		}
	}
	if name == "" {
		return Label{}, fmt.Errorf("%w: %q has an empty target name", ErrInvalidLabel, s)
	}
	if strings.HasSuffix(pkg, "/") || strings.HasPrefix(pkg, "/") {
		return Label{}, fmt.Errorf("%w: %q has a malformed package", ErrInvalidLabel, s)
	}

	return Label{Repo: repo, Package: pkg, Name: name}, nil
}

// MustParse is like Parse but panics on error. Intended for tests and tables.
func MustParse(s string) Label {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// String returns the canonical form of the label, e.g. "@repo//pkg:name".
func (l Label) String() string {
	var b strings.Builder
	if l.Repo != "" {
		b.WriteString("@")
		b.WriteString(l.Repo)
	}
	b.WriteString("//")
	b.WriteString(l.Package)
	b.WriteString(":")
	b.WriteString(l.Name)
	return b.String()
}

// IsExternal reports whether the label lives in an external repository.
func (l Label) IsExternal() bool {
	return l.Repo != ""
}

// IsZero reports whether l is the zero Label.
func (l Label) IsZero() bool {
	return l == Label{}
}

// MarshalText implements encoding.TextMarshaler so labels serialize as strings.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Compare orders labels by repository, package and name.
func Compare(a, b Label) int {
	if c := cmp.Compare(a.Repo, b.Repo); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Package, b.Package); c != 0 {
		return c
	}
	return cmp.Compare(a.Name, b.Name)
}

// Sort sorts labels in place using Compare.
func Sort(labels []Label) {
	slices.SortFunc(labels, Compare)
}

// Strings converts labels to their canonical string form, preserving order.
func Strings(labels []Label) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = l.String()
	}
	return out
}
