package graph

import (
	"strings"

	"github.com/querysync/qsync/pkg/label"
)

// TargetTree indexes targets by package path. Each node corresponds to one
// directory; targets hang off the node of the package that defines them.
// A TargetTree is read-only once built.
type TargetTree struct {
	root *treeNode
	size int
}

type treeNode struct {
	targets  label.Set
	children map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{children: make(map[string]*treeNode)}
}

// EmptyTargetTree is a tree with no targets.
var EmptyTargetTree = &TargetTree{root: newTreeNode()}

// TargetTreeBuilder accumulates targets for a TargetTree.
type TargetTreeBuilder struct {
	root *treeNode
	size int
}

// NewTargetTreeBuilder returns an empty builder.
func NewTargetTreeBuilder() *TargetTreeBuilder {
	return &TargetTreeBuilder{root: newTreeNode()}
}

// Add inserts l under its package path.
func (b *TargetTreeBuilder) Add(l label.Label) {
	n := b.root
	for _, part := range splitPath(l.Package) {
		child, ok := n.children[part]
		if !ok {
			child = newTreeNode()
			n.children[part] = child
		}
		n = child
	}
	if n.targets == nil {
		n.targets = make(label.Set)
	}
	if !n.targets.Has(l) {
		n.targets.Add(l)
		b.size++
	}
}

// Build freezes the tree. The builder must not be used afterwards.
func (b *TargetTreeBuilder) Build() *TargetTree {
	t := &TargetTree{root: b.root, size: b.size}
	b.root = nil
	return t
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

func (t *TargetTree) find(p string) *treeNode {
	n := t.root
	for _, part := range splitPath(p) {
		child, ok := n.children[part]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// Get returns the targets defined directly in the package at pkg. The
// returned set is empty, not nil, for unknown packages.
func (t *TargetTree) Get(pkg string) label.Set {
	n := t.find(pkg)
	if n == nil || n.targets == nil {
		return label.Set{}
	}
	return n.targets
}

// Subpackages returns the subtree holding every target defined in p or in any
// package below it. p may be a package or a plain directory above packages.
func (t *TargetTree) Subpackages(p string) *TargetTree {
	n := t.find(p)
	if n == nil {
		return EmptyTargetTree
	}
	if n == t.root {
		return t
	}
	return &TargetTree{root: n, size: countTargets(n)}
}

func countTargets(n *treeNode) int {
	total := n.targets.Len()
	for _, child := range n.children {
		total += countTargets(child)
	}
	return total
}

// LabelSet flattens the tree into a new set of all its targets.
func (t *TargetTree) LabelSet() label.Set {
	out := make(label.Set, t.size)
	var walk func(n *treeNode)
	walk = func(n *treeNode) {
		out.AddAll(n.targets)
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(t.root)
	return out
}

// IsEmpty reports whether the tree holds no targets.
func (t *TargetTree) IsEmpty() bool {
	return t.size == 0
}

// Len returns the number of targets in the tree.
func (t *TargetTree) Len() int {
	return t.size
}
