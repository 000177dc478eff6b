package analyzer

import "fmt"

// UnknownLine marks a node or span whose source line is not known
const UnknownLine = -1

// TreeNode represents a labeled node of a submission AST
type TreeNode struct {
	// Label is the syntactic kind of the node (e.g. "MethodDeclaration")
	Label string

	// Value is the optional identifier or literal text
	Value string

	// Line is the 1-based source line, UnknownLine when absent
	Line int

	// Children in source order
	Children []*TreeNode

	// Span of lines covered by this subtree, filled by ComputeSpan
	MinLine int
	MaxLine int
}

// NewTreeNode creates a new tree node with the given label and line
func NewTreeNode(label string, line int) *TreeNode {
	if line <= 0 {
		line = UnknownLine
	}
	return &TreeNode{
		Label:    label,
		Line:     line,
		Children: []*TreeNode{},
		MinLine:  UnknownLine,
		MaxLine:  UnknownLine,
	}
}

// WithValue sets the node value and returns the node
func (t *TreeNode) WithValue(value string) *TreeNode {
	t.Value = value
	return t
}

// AddChild adds a child node to this node
func (t *TreeNode) AddChild(child *TreeNode) *TreeNode {
	if child != nil {
		t.Children = append(t.Children, child)
	}
	return t
}

// IsLeaf returns true if this node has no children
func (t *TreeNode) IsLeaf() bool {
	return len(t.Children) == 0
}

// Size returns the number of nodes in the subtree rooted at this node
func (t *TreeNode) Size() int {
	if t == nil {
		return 0
	}
	size := 1
	for _, child := range t.Children {
		size += child.Size()
	}
	return size
}

// Height returns the height of the subtree rooted at this node
func (t *TreeNode) Height() int {
	if t == nil || t.IsLeaf() {
		return 0
	}
	maxHeight := 0
	for _, child := range t.Children {
		if h := child.Height(); h > maxHeight {
			maxHeight = h
		}
	}
	return maxHeight + 1
}

// HasSpan reports whether both ends of the span are known
func (t *TreeNode) HasSpan() bool {
	return t.MinLine > 0 && t.MaxLine > 0
}

// SpanLength returns the number of lines covered by the span, 0 when unknown
func (t *TreeNode) SpanLength() int {
	if !t.HasSpan() {
		return 0
	}
	return t.MaxLine - t.MinLine + 1
}

// Walk visits the subtree in pre-order. Returning false from fn skips the node's children.
func (t *TreeNode) Walk(fn func(*TreeNode) bool) {
	if t == nil {
		return
	}
	if !fn(t) {
		return
	}
	for _, child := range t.Children {
		child.Walk(fn)
	}
}

// Collect returns every node of the subtree whose label is in labels, in pre-order
func (t *TreeNode) Collect(labels map[string]bool) []*TreeNode {
	var nodes []*TreeNode
	t.Walk(func(n *TreeNode) bool {
		if labels[n.Label] {
			nodes = append(nodes, n)
		}
		return true
	})
	return nodes
}

// String returns a string representation of the node
func (t *TreeNode) String() string {
	if t.Value != "" {
		return fmt.Sprintf("Node{Label: %s, Value: %s, Span: %d-%d, Children: %d}",
			t.Label, t.Value, t.MinLine, t.MaxLine, len(t.Children))
	}
	return fmt.Sprintf("Node{Label: %s, Span: %d-%d, Children: %d}",
		t.Label, t.MinLine, t.MaxLine, len(t.Children))
}

// ComputeSpan fills MinLine/MaxLine for every node of the subtree, bottom-up.
// A node's span covers its own line and the spans of all its descendants;
// nodes with no known line anywhere in their subtree keep UnknownLine.
func ComputeSpan(node *TreeNode) {
	if node == nil {
		return
	}

	minLine, maxLine := UnknownLine, UnknownLine
	if node.Line > 0 {
		minLine, maxLine = node.Line, node.Line
	}

	for _, child := range node.Children {
		ComputeSpan(child)
		if child.MinLine > 0 && (minLine == UnknownLine || child.MinLine < minLine) {
			minLine = child.MinLine
		}
		if child.MaxLine > 0 && child.MaxLine > maxLine {
			maxLine = child.MaxLine
		}
	}

	node.MinLine = minLine
	node.MaxLine = maxLine
}
