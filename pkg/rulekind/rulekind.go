// Package rulekind classifies Bazel rule classes ("kinds") into the language
// categories the IDE understands.
package rulekind

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// Category is a coarse grouping of rule kinds.
type Category int

const (
	CategoryJava Category = iota
	CategoryKotlin
	CategoryAndroid
	CategoryCC
	CategoryProto
)

var categoryNames = map[Category]string{
	CategoryJava:    "java",
	CategoryKotlin:  "kotlin",
	CategoryAndroid: "android",
	CategoryCC:      "cc",
	CategoryProto:   "proto",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// ParseCategory parses a category name as used in config files and CLI flags.
func ParseCategory(s string) (Category, error) {
	for c, name := range categoryNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown rule kind category %q", s)
}

// Categories lists every category in declaration order.
func Categories() []Category {
	return []Category{CategoryJava, CategoryKotlin, CategoryAndroid, CategoryCC, CategoryProto}
}

// categoryPatterns are matched against the full rule class. Java includes the
// JVM rules of the other categories since their sources are analyzed the same way.
var categoryPatterns = map[Category][]string{
	CategoryJava: {
		"java_*",
		"_java_*",
		"jvm_import",
		"kt_jvm_*",
		"kt_android_*",
		"android_*",
	},
	CategoryKotlin: {
		"kt_jvm_*",
		"kt_android_*",
	},
	CategoryAndroid: {
		"android_*",
		"kt_android_*",
	},
	CategoryCC: {
		"cc_*",
		"objc_*",
	},
	CategoryProto: {
		"proto_library",
	},
}

var compiled = mustCompile(categoryPatterns)

func mustCompile(patterns map[Category][]string) map[Category][]glob.Glob {
	out := make(map[Category][]glob.Glob, len(patterns))
	for c, ps := range patterns {
		gs, err := CompileGlobs(ps)
		if err != nil {
			panic(err)
		}
		out[c] = gs
	}
	return out
}

// CompileGlobs compiles each pattern, failing on the first invalid one.
func CompileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Matches reports whether kind belongs to the category.
func Matches(c Category, kind string) bool {
	for _, g := range compiled[c] {
		if g.Match(kind) {
			return true
		}
	}
	return false
}

// Predicate returns a kind predicate for the category.
func Predicate(c Category) func(kind string) bool {
	return func(kind string) bool { return Matches(c, kind) }
}

// CategoriesOf returns every category kind belongs to.
func CategoriesOf(kind string) []Category {
	var out []Category
	for _, c := range Categories() {
		if Matches(c, kind) {
			out = append(out, c)
		}
	}
	return out
}

// IsJava reports whether kind produces JVM sources the IDE can analyze.
func IsJava(kind string) bool { return Matches(CategoryJava, kind) }

// IsAndroid reports whether kind is an Android rule.
func IsAndroid(kind string) bool { return Matches(CategoryAndroid, kind) }

// IsCC reports whether kind is a native (C/C++/ObjC) rule.
func IsCC(kind string) bool { return Matches(CategoryCC, kind) }

// IsProtoSource reports whether kind declares .proto sources.
func IsProtoSource(kind string) bool { return Matches(CategoryProto, kind) }

// IsTest reports whether kind is a test rule.
func IsTest(kind string) bool {
	return strings.HasSuffix(kind, "_test") || strings.HasSuffix(kind, "_tests") || kind == "test_suite"
}
