package analyzer

import (
	"strings"
)

// TypeVector maps a node label to its occurrence count in a tree
type TypeVector map[string]int

// Vectorize counts node labels over the whole tree
func Vectorize(root *TreeNode) TypeVector {
	vec := make(TypeVector)
	root.Walk(func(n *TreeNode) bool {
		vec[n.Label]++
		return true
	})
	return vec
}

// VectorizeRaw counts node types directly from a decoded document.
// Missing types count as LabelUnknown, the same as the tree builder.
func VectorizeRaw(raw *RawNode) TypeVector {
	vec := make(TypeVector)
	var walk func(n *RawNode)
	walk = func(n *RawNode) {
		label := strings.TrimSpace(n.Type)
		if label == "" {
			label = LabelUnknown
		}
		vec[label]++
		for i := range n.Children {
			walk(&n.Children[i])
		}
	}
	if raw != nil {
		walk(raw)
	}
	return vec
}

// Total returns the number of nodes counted
func (v TypeVector) Total() int {
	total := 0
	for _, c := range v {
		total += c
	}
	return total
}
