// Package graph defines the in-memory project build graph used by query sync.
// A BuildGraph is built once per sync from query output and never mutated
// afterwards; every query on it is safe for concurrent use.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/querysync/qsync/pkg/label"
)

// ErrInvalidLocation is returned when a location string is malformed.
var ErrInvalidLocation = errors.New("invalid location")

var locationPattern = regexp.MustCompile(`^(.*):(\d+):(\d+)$`)

// Location is a position in a workspace file, as reported by bazel query.
type Location struct {
	File   string `json:"file"` // workspace-relative, never absolute
	Row    int    `json:"row"`
	Column int    `json:"column"`
}

// ParseLocation parses "path/to/file:row:column".
func ParseLocation(s string) (Location, error) {
	m := locationPattern.FindStringSubmatch(s)
	if m == nil {
		return Location{}, fmt.Errorf("%w: location not recognized: %q", ErrInvalidLocation, s)
	}
	if strings.HasPrefix(m[1], "/") {
		return Location{}, fmt.Errorf("%w: filename %q starts with /: ensure that "+
			"--relative_locations=true was specified in the query invocation", ErrInvalidLocation, m[1])
	}
	row, err := strconv.Atoi(m[2])
	if err != nil {
		return Location{}, fmt.Errorf("%w: row in %q: %v", ErrInvalidLocation, s, err)
	}
	col, err := strconv.Atoi(m[3])
	if err != nil {
		return Location{}, fmt.Errorf("%w: column in %q: %v", ErrInvalidLocation, s, err)
	}
	return Location{File: m[1], Row: row, Column: col}, nil
}

func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Row, l.Column)
}

// SourceType partitions the sources of a target.
type SourceType int

const (
	SourceRegular SourceType = iota
	SourceAndroidResources
)

var sourceTypeNames = map[SourceType]string{
	SourceRegular:          "regular",
	SourceAndroidResources: "android_resources",
}

func (t SourceType) String() string {
	if name, ok := sourceTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SourceType(%d)", int(t))
}

// ParseSourceType parses the String form of a SourceType.
func ParseSourceType(s string) (SourceType, error) {
	for t, name := range sourceTypeNames {
		if strings.EqualFold(s, name) {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown source type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (t SourceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SourceType) UnmarshalText(data []byte) error {
	parsed, err := ParseSourceType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DependencyTrackingBehavior says what must be built to make a target
// analyzable in the IDE.
type DependencyTrackingBehavior int

const (
	// ExternalDependencies: build the target's transitive external deps.
	ExternalDependencies DependencyTrackingBehavior = iota
	// Self: build the target itself, e.g. to extract native compilation info.
	Self
)

// IncludesExternalDependencies reports whether the behavior requires external
// dependencies to be materialized.
func (b DependencyTrackingBehavior) IncludesExternalDependencies() bool {
	return b == ExternalDependencies
}

func (b DependencyTrackingBehavior) String() string {
	switch b {
	case ExternalDependencies:
		return "EXTERNAL_DEPENDENCIES"
	case Self:
		return "SELF"
	default:
		return fmt.Sprintf("DependencyTrackingBehavior(%d)", int(b))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (b DependencyTrackingBehavior) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Language is a language the IDE supports for a target.
type Language int

const (
	LanguageJava Language = iota
	LanguageKotlin
	LanguageCC
)

type languageInfo struct {
	name     string
	behavior DependencyTrackingBehavior
}

var languages = []languageInfo{
	LanguageJava:   {name: "java", behavior: ExternalDependencies},
	LanguageKotlin: {name: "kotlin", behavior: ExternalDependencies},
	LanguageCC:     {name: "cc", behavior: Self},
}

// AllLanguages lists every supported language.
func AllLanguages() []Language {
	out := make([]Language, len(languages))
	for i := range languages {
		out[i] = Language(i)
	}
	return out
}

func (l Language) valid() bool {
	return l >= 0 && int(l) < len(languages)
}

func (l Language) String() string {
	if !l.valid() {
		return fmt.Sprintf("Language(%d)", int(l))
	}
	return languages[l].name
}

// Behavior returns the dependency-tracking behavior of the language.
func (l Language) Behavior() DependencyTrackingBehavior {
	return languages[l].behavior
}

// ParseLanguage parses a language name such as "java" or "cc".
func ParseLanguage(s string) (Language, error) {
	for i, info := range languages {
		if strings.EqualFold(s, info.name) {
			return Language(i), nil
		}
	}
	return 0, fmt.Errorf("unknown language %q", s)
}

// LanguageSet is a set of languages.
type LanguageSet uint8

// NewLanguageSet returns a set holding the given languages.
func NewLanguageSet(langs ...Language) LanguageSet {
	var s LanguageSet
	for _, l := range langs {
		s = s.With(l)
	}
	return s
}

// With returns s plus l.
func (s LanguageSet) With(l Language) LanguageSet {
	return s | 1<<uint(l)
}

// Has reports whether l is in the set.
func (s LanguageSet) Has(l Language) bool {
	return s&(1<<uint(l)) != 0
}

// Intersects reports whether the sets share at least one language.
func (s LanguageSet) Intersects(other LanguageSet) bool {
	return s&other != 0
}

// Union returns the languages in either set.
func (s LanguageSet) Union(other LanguageSet) LanguageSet {
	return s | other
}

// Intersect returns the languages in both sets.
func (s LanguageSet) Intersect(other LanguageSet) LanguageSet {
	return s & other
}

// IsEmpty reports whether the set has no languages.
func (s LanguageSet) IsEmpty() bool {
	return s == 0
}

// List returns the languages in declaration order.
func (s LanguageSet) List() []Language {
	var out []Language
	for _, l := range AllLanguages() {
		if s.Has(l) {
			out = append(out, l)
		}
	}
	return out
}

// Behaviors returns the distinct dependency-tracking behaviors of the set.
func (s LanguageSet) Behaviors() []DependencyTrackingBehavior {
	var seen [2]bool
	var out []DependencyTrackingBehavior
	for _, l := range s.List() {
		b := l.Behavior()
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

func (s LanguageSet) String() string {
	names := make([]string, 0, len(languages))
	for _, l := range s.List() {
		names = append(names, l.String())
	}
	return "[" + strings.Join(names, " ") + "]"
}

// MarshalJSON encodes the set as a list of language names.
func (s LanguageSet) MarshalJSON() ([]byte, error) {
	names := make([]string, 0, len(languages))
	for _, l := range s.List() {
		names = append(names, l.String())
	}
	return json.Marshal(names)
}

// ProjectTarget is a build target defined inside the project.
type ProjectTarget struct {
	Label         label.Label              `json:"label"`
	Kind          string                   `json:"kind"`
	Sources       map[SourceType]label.Set `json:"sources,omitempty"`
	Deps          label.Set                `json:"deps,omitempty"`
	RuntimeDeps   label.Set                `json:"runtime_deps,omitempty"`
	Languages     LanguageSet              `json:"languages"`
	CustomPackage string                   `json:"custom_package,omitempty"`
}

// SourcesOf returns the sources of the given types.
func (t *ProjectTarget) SourcesOf(types ...SourceType) label.Set {
	out := make(label.Set)
	for _, st := range types {
		out.AddAll(t.Sources[st])
	}
	return out
}

// AllSources returns the sources of every type.
func (t *ProjectTarget) AllSources() label.Set {
	out := make(label.Set)
	for _, srcs := range t.Sources {
		out.AddAll(srcs)
	}
	return out
}

// DependencyTrackingBehaviors returns the union of the behaviors of the
// target's languages.
func (t *ProjectTarget) DependencyTrackingBehaviors() []DependencyTrackingBehavior {
	return t.Languages.Behaviors()
}

// TargetsKind tells how a TargetsToBuild was resolved.
type TargetsKind int

const (
	// TargetsNone means no targets were found.
	TargetsNone TargetsKind = iota
	// TargetsGroup means the targets come from package structure (BUILD file or directory).
	TargetsGroup
	// TargetsSourceFile means the targets own a specific source file.
	TargetsSourceFile
)

func (k TargetsKind) String() string {
	switch k {
	case TargetsNone:
		return "none"
	case TargetsGroup:
		return "target_group"
	case TargetsSourceFile:
		return "source_file"
	default:
		return fmt.Sprintf("TargetsKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k TargetsKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// TargetsToBuild is the result of resolving a workspace path to targets.
type TargetsToBuild struct {
	Kind       TargetsKind `json:"kind"`
	Targets    label.Set   `json:"targets"`
	SourceFile string      `json:"source_file,omitempty"` // set for TargetsSourceFile
}

// NoTargets is the result for paths that resolve to nothing.
var NoTargets = TargetsToBuild{Kind: TargetsNone}

// TargetGroup builds a TargetsGroup result.
func TargetGroup(targets label.Set) TargetsToBuild {
	return TargetsToBuild{Kind: TargetsGroup, Targets: targets}
}

// ForSourceFile builds a TargetsSourceFile result for the given file.
func ForSourceFile(targets label.Set, file string) TargetsToBuild {
	return TargetsToBuild{Kind: TargetsSourceFile, Targets: targets, SourceFile: file}
}

// IsEmpty reports whether there is nothing to build.
func (t TargetsToBuild) IsEmpty() bool {
	return t.Targets.Len() == 0
}

// RequestedTargets is what a build invocation should request and expect.
type RequestedTargets struct {
	// BuildTargets are passed to the build tool.
	BuildTargets label.Set `json:"build_targets"`
	// ExpectedDependencyTargets are the labels output artifacts are expected for.
	ExpectedDependencyTargets label.Set `json:"expected_dependency_targets"`
}
