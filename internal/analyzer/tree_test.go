package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTreeNode_UnknownLine(t *testing.T) {
	tests := []struct {
		name     string
		line     int
		expected int
	}{
		{name: "positive line kept", line: 7, expected: 7},
		{name: "zero is unknown", line: 0, expected: UnknownLine},
		{name: "negative is unknown", line: -5, expected: UnknownLine},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewTreeNode("A", tt.line)
			assert.Equal(t, tt.expected, n.Line)
			assert.Equal(t, UnknownLine, n.MinLine, "span is unknown before ComputeSpan")
		})
	}
}

func TestComputeSpan(t *testing.T) {
	// CompilationUnit has no line of its own
	root := node(LabelCompilationUnit, 0,
		node("A", 3,
			node("B", 5),
			node("C", 0),
		),
		node("D", 0,
			node("E", 0),
		),
		node("F", 1),
	)

	ComputeSpan(root)

	assert.Equal(t, 1, root.MinLine)
	assert.Equal(t, 5, root.MaxLine)

	a := root.Children[0]
	assert.Equal(t, 3, a.MinLine)
	assert.Equal(t, 5, a.MaxLine)

	c := a.Children[1]
	assert.False(t, c.HasSpan(), "leaf without line stays unknown")

	d := root.Children[1]
	assert.Equal(t, UnknownLine, d.MinLine)
	assert.Equal(t, UnknownLine, d.MaxLine)
	assert.Equal(t, 0, d.SpanLength())

	f := root.Children[2]
	assert.Equal(t, 1, f.SpanLength())
}

func TestComputeSpan_ChildBeforeParentLine(t *testing.T) {
	// annotations may sit on lines before the declaration keyword
	root := node("MethodDeclaration", 4, node("Annotation", 2), node("BlockStmt", 6))
	ComputeSpan(root)

	assert.Equal(t, 2, root.MinLine)
	assert.Equal(t, 6, root.MaxLine)
	assert.Equal(t, 5, root.SpanLength())
}

func TestTreeNode_SizeAndHeight(t *testing.T) {
	tests := []struct {
		name   string
		tree   *TreeNode
		size   int
		height int
	}{
		{name: "nil tree", tree: nil, size: 0, height: 0},
		{name: "single node", tree: node("A", 1), size: 1, height: 0},
		{
			name:   "three levels",
			tree:   node("A", 1, node("B", 2, node("C", 3)), node("D", 4)),
			size:   4,
			height: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.size, tt.tree.Size())
			assert.Equal(t, tt.height, tt.tree.Height())
		})
	}
}

func TestTreeNode_WalkAndCollect(t *testing.T) {
	root := node("Root", 1,
		node(LabelForStmt, 2, node(LabelIfStmt, 3)),
		node(LabelIfStmt, 4),
	)

	var order []string
	root.Walk(func(n *TreeNode) bool {
		order = append(order, n.Label)
		return true
	})
	assert.Equal(t, []string{"Root", LabelForStmt, LabelIfStmt, LabelIfStmt}, order)

	var pruned []string
	root.Walk(func(n *TreeNode) bool {
		pruned = append(pruned, n.Label)
		return n.Label != LabelForStmt
	})
	assert.Equal(t, []string{"Root", LabelForStmt, LabelIfStmt}, pruned)

	ifs := root.Collect(labelSet(LabelIfStmt))
	assert.Len(t, ifs, 2)
	assert.Equal(t, 3, ifs[0].Line)
	assert.Equal(t, 4, ifs[1].Line)
}
