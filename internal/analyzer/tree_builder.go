package analyzer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/ludo-technologies/astsim/domain"
)

// RawNode is the decoded form of one node of an AST document.
// Line and Value are kept raw because producers emit them as numbers or strings.
type RawNode struct {
	Type     string          `json:"type"`
	Value    json.RawMessage `json:"value,omitempty"`
	Line     json.RawMessage `json:"line,omitempty"`
	Children []RawNode       `json:"children,omitempty"`
}

// TreeBuilder converts AST documents into TreeNode trees
type TreeBuilder struct{}

// NewTreeBuilder creates a new tree builder
func NewTreeBuilder() *TreeBuilder {
	return &TreeBuilder{}
}

// Build parses an AST document and returns its tree with spans computed.
// The document may also be a JSON string whose content is the document.
func (b *TreeBuilder) Build(data []byte) (*TreeNode, error) {
	raw, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	return b.BuildFromRaw(raw), nil
}

// BuildFromRaw converts an already decoded document and computes spans
func (b *TreeBuilder) BuildFromRaw(raw *RawNode) *TreeNode {
	if raw == nil {
		return nil
	}
	root := b.convert(raw)
	ComputeSpan(root)
	return root
}

func (b *TreeBuilder) convert(raw *RawNode) *TreeNode {
	label := strings.TrimSpace(raw.Type)
	if label == "" {
		label = LabelUnknown
	}

	node := NewTreeNode(label, parseLine(raw.Line))
	node.Value = parseValue(raw.Value)

	for i := range raw.Children {
		node.AddChild(b.convert(&raw.Children[i]))
	}
	return node
}

// BuildTree is a convenience wrapper around NewTreeBuilder().Build
func BuildTree(data []byte) (*TreeNode, error) {
	return NewTreeBuilder().Build(data)
}

// DecodeDocument decodes an AST document, unwrapping one level of JSON string encoding
func DecodeDocument(data []byte) (*RawNode, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, domain.NewInvalidInputError("empty AST document", nil)
	}

	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, domain.NewInvalidInputError("invalid AST document", err)
		}
		return DecodeDocument([]byte(inner))
	}

	var raw RawNode
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, domain.NewInvalidInputError("invalid AST document", err)
	}
	return &raw, nil
}

// parseLine accepts an integer or a numeric string; anything else is unknown
func parseLine(raw json.RawMessage) int {
	if len(raw) == 0 {
		return UnknownLine
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return positiveLine(string(n))
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return positiveLine(strings.TrimSpace(s))
	}
	return UnknownLine
}

func positiveLine(s string) int {
	line, err := strconv.Atoi(s)
	if err != nil {
		// "12.0" style numbers
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int(f)) {
			return UnknownLine
		}
		line = int(f)
	}
	if line <= 0 {
		return UnknownLine
	}
	return line
}

// parseValue renders scalar values as text; objects, arrays and null yield ""
func parseValue(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return ""
		}
		return s
	case '{', '[', 'n':
		return ""
	default:
		return string(trimmed)
	}
}
