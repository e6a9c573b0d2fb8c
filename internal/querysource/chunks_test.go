package querysource

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveChunks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "queries")

	require.NoError(t, SaveChunks(dir, [][]byte{[]byte("a"), []byte("b"), []byte("c")}))
	require.NoError(t, SaveChunks(dir, [][]byte{[]byte("x"), []byte("y")}))

	got, err := CachedChunks(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "query.xml"), filepath.Join(dir, "query.1.xml")}, got)

	data, err := os.ReadFile(got[1])
	require.NoError(t, err)
	assert.Equal(t, "y", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files or stale chunks left behind")
}

func TestCachedChunksMissingDir(t *testing.T) {
	got, err := CachedChunks(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChunkName(t *testing.T) {
	tests := []struct {
		base string
		i    int
		want string
	}{
		{"query.xml", 0, "query.xml"},
		{"query.xml", 2, "query.2.xml"},
		{"query.xml", 12, "query.12.xml"},
		{"s3://bucket/q/query.xml", 1, "s3://bucket/q/query.1.xml"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChunkName(tt.base, tt.i))
	}

	for i, name := range []string{"query.xml", "query.1.xml", "query.2.xml"} {
		idx, ok := parseChunkName(OutputName, name)
		assert.True(t, ok, name)
		assert.Equal(t, i, idx)
	}
	for _, name := range []string{"query.0.xml", "query.x.xml", "other.xml", "query.xml.tmp", "query.1.xml.tmp"} {
		_, ok := parseChunkName(OutputName, name)
		assert.False(t, ok, name)
	}
}
