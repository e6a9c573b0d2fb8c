package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querysync/qsync/pkg/graph"
	"github.com/querysync/qsync/pkg/label"
)

func readTestdata(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func labels(ss ...string) label.Set {
	s := make(label.Set)
	for _, l := range ss {
		s.Add(label.MustParse(l))
	}
	return s
}

func testProject(t *testing.T, includes ...string) *Project {
	t.Helper()
	p, err := NewProject(includes, []string{"**/testdata"}, 0)
	require.NoError(t, err)
	return p
}

func TestParseQueryOutput(t *testing.T) {
	s, err := ParseQueryOutput(readTestdata(t, "query.xml"))
	require.NoError(t, err)

	assert.Len(t, s.Rules, 7)
	assert.Len(t, s.SourceFiles, 9)
	assert.ElementsMatch(t, []string{
		"java/com/example/app", "java/com/example/lib", "java/com/example/lib/testdata", "native",
	}, s.Packages)

	lib := s.Rules[label.MustParse("//java/com/example/lib:lib")]
	require.NotNil(t, lib)
	assert.Equal(t, "android_library", lib.Kind)
	assert.Equal(t, "com.example.lib", lib.CustomPackage)
	assert.Equal(t, []label.Label{label.MustParse("//java/com/example/lib:res/values.xml")}, lib.ResourceFiles)
	assert.Len(t, lib.Deps, 2)

	loc := s.SourceFiles[label.MustParse("//native:codec.cc")]
	assert.Equal(t, graph.Location{File: "native/codec.cc", Row: 1, Column: 1}, loc)
}

func TestParseQueryOutputErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		target error
	}{
		{
			name:   "absolute location",
			data:   `<query version="2"><source-file location="/abs/A.java:1:1" name="//a:A.java"/></query>`,
			target: graph.ErrInvalidLocation,
		},
		{
			name:   "bad label",
			data:   `<query version="2"><rule class="java_library" name="a:b"/></query>`,
			target: label.ErrInvalidLabel,
		},
		{
			name:   "bad dep label",
			data:   `<query version="2"><rule class="java_library" name="//a:b"><list name="deps"><label value=":c"/></list></rule></query>`,
			target: label.ErrInvalidLabel,
		},
		{
			name: "malformed xml",
			data: `<query><rule`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQueryOutput([]byte(tt.data))
			require.Error(t, err)
			if tt.target != nil {
				assert.True(t, errors.Is(err, tt.target), "got %v", err)
			}
		})
	}
}

func TestStripXMLDeclaration(t *testing.T) {
	in := []byte("<?xml version=\"1.1\" encoding=\"UTF-8\"?>\n<query/>")
	assert.Equal(t, "<query/>", string(stripXMLDeclaration(in)))
	assert.Equal(t, "<query/>", string(stripXMLDeclaration([]byte("<query/>"))))
}

func TestConvert(t *testing.T) {
	g, err := LoadGraph(context.Background(), testProject(t, "java", "native"), readTestdata(t, "query.xml"))
	require.NoError(t, err)

	var got []string
	for _, pt := range g.Targets() {
		got = append(got, pt.Label.String())
	}
	assert.Equal(t, []string{
		"//java/com/example/app:app",
		"//java/com/example/app:app_test",
		"//java/com/example/gen:gen",
		"//java/com/example/lib:lib",
		"//native:codec",
	}, got)

	assert.True(t, g.ProjectDeps().Equal(labels(
		"//java/com/example/gen:gen",
		"@maven//:com_google_guava_guava",
		"@maven//:junit_junit",
		"//tools:genrule_out",
	)), "got %v", g.ProjectDeps().Sorted())

	assert.True(t, g.TransitiveExternalDependencies(label.MustParse("//java/com/example/app:app")).Equal(labels(
		"//java/com/example/gen:gen",
		"@maven//:com_google_guava_guava",
		"//tools:genrule_out",
	)))

	assert.Equal(t, []string{"java/com/example/app", "java/com/example/lib", "native"}, g.Packages().All())

	codec, ok := g.Target(label.MustParse("//native:codec"))
	require.True(t, ok)
	assert.Equal(t, graph.NewLanguageSet(graph.LanguageCC), codec.Languages)

	assert.Equal(t, []string{"com.example.lib"}, g.AllCustomPackages())
	assert.Equal(t, []string{"java/com/example/lib/res/values.xml"}, g.AndroidResourceFiles())
}

func TestConvertNarrowProject(t *testing.T) {
	g, err := LoadGraph(context.Background(), testProject(t, "java/com/example/app"), readTestdata(t, "query.xml"))
	require.NoError(t, err)

	assert.Equal(t, 2, g.Stats().TargetCount)
	assert.True(t, g.ProjectDeps().Has(label.MustParse("//java/com/example/lib:lib")))

	req := g.ComputeRequestedTargets(labels("//java/com/example/app:app_test"))
	assert.True(t, req.ExpectedDependencyTargets.Equal(labels("@maven//:junit_junit")))
}

func TestConvertLanguageFilter(t *testing.T) {
	p, err := NewProject([]string{""}, nil, graph.NewLanguageSet(graph.LanguageJava))
	require.NoError(t, err)
	g, err := LoadGraph(context.Background(), p, readTestdata(t, "query.xml"))
	require.NoError(t, err)

	codec, ok := g.Target(label.MustParse("//native:codec"))
	require.True(t, ok)
	assert.True(t, codec.Languages.IsEmpty())
	assert.Empty(t, g.DependencyTrackingBehaviors(codec.Label))
}

func TestLoadGraphMergesOutputs(t *testing.T) {
	a := []byte(`<query version="2">
  <source-file location="a/A.java:1:1" name="//a:A.java"/>
  <rule class="java_library" name="//a:a"><list name="srcs"><label value="//a:A.java"/></list><list name="deps"><label value="//b:b"/></list></rule>
</query>`)
	b := []byte(`<?xml version="1.1" encoding="UTF-8"?>
<query version="2">
  <rule class="java_library" name="//b:b"><list name="deps"><label value="@m//:x"/></list></rule>
  <rule class="java_library" name="//a:a"/>
</query>`)

	g, err := LoadGraph(context.Background(), testProject(t), a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, g.Stats().TargetCount)
	assert.True(t, g.TransitiveExternalDependencies(label.MustParse("//a:a")).Equal(labels("@m//:x")))

	_, err = LoadGraph(context.Background(), testProject(t), a, []byte("<query"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query output 1")
}

func TestLoadGraphCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := LoadGraph(ctx, testProject(t), readTestdata(t, "query.xml"))
	assert.ErrorIs(t, err, context.Canceled)
}
