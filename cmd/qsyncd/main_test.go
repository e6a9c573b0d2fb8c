package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querysync/qsync/internal/querysource"
	"github.com/querysync/qsync/pkg/config"
	"github.com/querysync/qsync/pkg/ingest"
	"github.com/querysync/qsync/pkg/label"
)

const queryXML = `<query version="2">
  <source-file location="app/App.java:1:1" name="//app:App.java"/>
  <rule class="java_library" location="app/BUILD:1:1" name="//app:app">
    <list name="srcs"><label value="//app:App.java"/></list>
  </rule>
</query>`

func testSource(t *testing.T, input string) *graphSource {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	p, err := ingest.NewProject(nil, nil, 0)
	require.NoError(t, err)
	cfg := config.DefaultConfig()
	cfg.Query.Input = input
	return &graphSource{root: t.TempDir(), cfg: cfg, project: p}
}

func TestGraphSourceCachedChunks(t *testing.T) {
	src := testSource(t, "")
	require.NoError(t, querysource.SaveChunks(config.QueryOutputDir(src.root), [][]byte{[]byte(queryXML)}))

	assert.Equal(t, filepath.Join(config.QueryOutputDir(src.root), "query.xml"), src.watchPath())
	require.NoError(t, src.ensureOutput(context.Background()), "cached output needs no query")

	g, err := src.load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, g.Stats().TargetCount)
}

func TestGraphSourceInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xml")
	require.NoError(t, os.WriteFile(path, []byte(queryXML), 0o644))

	src := testSource(t, path)
	assert.Equal(t, path, src.watchPath())

	g, err := src.load(context.Background())
	require.NoError(t, err)
	owners, known := g.TargetOwners("app/App.java")
	assert.True(t, known)
	assert.Equal(t, []string{"//app:app"}, label.Strings(owners.Sorted()))

	assert.Empty(t, testSource(t, "s3://bucket/out.xml").watchPath(), "remote inputs are not watched")
}

func TestGraphSourceChunkedInput(t *testing.T) {
	base := filepath.Join(t.TempDir(), "ci", "query.xml")
	second := `<query version="2">
  <rule class="java_library" location="lib/BUILD:1:1" name="//lib:lib"/>
</query>`
	require.NoError(t, querysource.PublishChunks(context.Background(), base,
		[][]byte{[]byte(queryXML), []byte(second)}, querysource.S3Config{}))

	g, err := testSource(t, base).load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, g.Stats().TargetCount)
	assert.True(t, g.IsProjectTarget(label.MustParse("//lib:lib")), "second chunk must be loaded")
}

func TestGraphSourceCachedMultiChunk(t *testing.T) {
	src := testSource(t, "")
	second := `<query version="2">
  <rule class="java_library" location="lib/BUILD:1:1" name="//lib:lib"/>
</query>`
	require.NoError(t, querysource.SaveChunks(config.QueryOutputDir(src.root), [][]byte{[]byte(queryXML), []byte(second)}))

	g, err := src.load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, g.Stats().TargetCount)
}

func TestGraphSourceNoOutput(t *testing.T) {
	_, err := testSource(t, "").load(context.Background())
	assert.Error(t, err)
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("QSYNC_TEST_VAR", "")
	assert.Equal(t, "fallback", envOrDefault("QSYNC_TEST_VAR", "fallback"))
	t.Setenv("QSYNC_TEST_VAR", "set")
	assert.Equal(t, "set", envOrDefault("QSYNC_TEST_VAR", "fallback"))
}
