package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildTree(labels ...string) *TargetTree {
	b := NewTargetTreeBuilder()
	for _, l := range labels {
		b.Add(lbl(l))
	}
	return b.Build()
}

func TestTargetTreeGet(t *testing.T) {
	tree := buildTree("//a:x", "//a:y", "//a/b:z", "//:root", "//a:x")

	assert.Equal(t, 4, tree.Len())
	assert.True(t, tree.Get("a").Equal(set("//a:x", "//a:y")))
	assert.True(t, tree.Get("a/b").Equal(set("//a/b:z")))
	assert.True(t, tree.Get("").Equal(set("//:root")))
	assert.NotNil(t, tree.Get("missing"))
	assert.Zero(t, tree.Get("missing").Len())
}

func TestTargetTreeSubpackages(t *testing.T) {
	tree := buildTree("//a:x", "//a/b:y", "//a/b/c:z", "//d/e:w")

	tests := []struct {
		path string
		want []string
	}{
		{"a", []string{"//a:x", "//a/b:y", "//a/b/c:z"}},
		{"a/b", []string{"//a/b:y", "//a/b/c:z"}},
		{"d", []string{"//d/e:w"}},
		{"", []string{"//a:x", "//a/b:y", "//a/b/c:z", "//d/e:w"}},
		{"a/x", nil},
		{"zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			sub := tree.Subpackages(tt.path)
			assert.True(t, sub.LabelSet().Equal(set(tt.want...)), "got %v", sub.LabelSet().Sorted())
			assert.Equal(t, len(tt.want) == 0, sub.IsEmpty())
			assert.Equal(t, len(tt.want), sub.Len())
		})
	}
}

func TestEmptyTargetTree(t *testing.T) {
	assert.True(t, EmptyTargetTree.IsEmpty())
	assert.Zero(t, EmptyTargetTree.LabelSet().Len())
	assert.True(t, EmptyTargetTree.Subpackages("a").IsEmpty())
}
