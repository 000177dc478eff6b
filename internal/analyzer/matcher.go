package analyzer

import (
	"fmt"
	"strings"
)

// Match pairs a node of the "from" tree with a corresponding node of the "to" tree
type Match struct {
	A *TreeNode
	B *TreeNode
}

// SpanKey identifies a match by the spans of both sides
type SpanKey struct {
	FromStart, FromEnd, ToStart, ToEnd int
}

// Key returns the span key of the match
func (m Match) Key() SpanKey {
	return SpanKey{m.A.MinLine, m.A.MaxLine, m.B.MinLine, m.B.MaxLine}
}

type editOp int

const (
	opNone editOp = iota
	opDelete
	opInsert
	opRename
)

// alignCell is one entry of the child alignment table
type alignCell struct {
	cost         int
	op           editOp
	prevI, prevJ int
	matches      []Match
}

// TreeMatcher finds corresponding nodes between two trees.
// A matcher holds per-run memo state and is not safe for concurrent use.
type TreeMatcher struct {
	distance *EditDistanceAnalyzer
	passes   []MatchPass
}

// NewTreeMatcher creates a matcher with the given cost model and passes.
// With no passes the default alignment + category strategy is used.
func NewTreeMatcher(costModel CostModel, passes ...MatchPass) *TreeMatcher {
	if len(passes) == 0 {
		passes = DefaultMatchPasses()
	}
	return &TreeMatcher{
		distance: NewEditDistanceAnalyzer(costModel),
		passes:   passes,
	}
}

// Passes returns the names of the configured passes in execution order
func (m *TreeMatcher) Passes() []string {
	names := make([]string, len(m.passes))
	for i, p := range m.passes {
		names[i] = p.Name()
	}
	return names
}

// Match runs every pass and returns the merged, de-duplicated matches.
// Both trees must already carry spans (see ComputeSpan); they are only read,
// so cached trees can be matched from several goroutines at once.
func (m *TreeMatcher) Match(a, b *TreeNode) []Match {
	if a == nil || b == nil {
		return nil
	}
	m.distance.Reset()

	var all []Match
	for _, pass := range m.passes {
		all = append(all, pass.Collect(m, a, b)...)
	}
	return DedupeMatches(all)
}

// Align returns the matches found along the optimal child alignment only
func (m *TreeMatcher) Align(a, b *TreeNode) []Match {
	if a == nil || b == nil {
		return nil
	}
	return m.matchNode(a, b)
}

func (m *TreeMatcher) matchNode(a, b *TreeNode) []Match {
	rows, cols := len(a.Children), len(b.Children)

	table := make([][]alignCell, rows+1)
	for i := range table {
		table[i] = make([]alignCell, cols+1)
	}
	table[0][0] = alignCell{cost: 0, op: opNone, prevI: -1, prevJ: -1}

	for i := 1; i <= rows; i++ {
		table[i][0] = alignCell{
			cost:  table[i-1][0].cost + m.distance.DeleteCost(a.Children[i-1]),
			op:    opDelete,
			prevI: i - 1,
			prevJ: 0,
		}
	}
	for j := 1; j <= cols; j++ {
		table[0][j] = alignCell{
			cost:  table[0][j-1].cost + m.distance.InsertCost(b.Children[j-1]),
			op:    opInsert,
			prevI: 0,
			prevJ: j - 1,
		}
	}

	for i := 1; i <= rows; i++ {
		childA := a.Children[i-1]
		for j := 1; j <= cols; j++ {
			childB := b.Children[j-1]

			del := table[i-1][j].cost + m.distance.DeleteCost(childA)
			ins := table[i][j-1].cost + m.distance.InsertCost(childB)
			sub := m.matchNode(childA, childB)
			ren := table[i-1][j-1].cost + m.treeEditCost(childA, childB)

			// ties prefer rename so aligned subtrees keep their matches
			switch {
			case ren <= del && ren <= ins:
				table[i][j] = alignCell{cost: ren, op: opRename, prevI: i - 1, prevJ: j - 1, matches: sub}
			case del <= ins:
				table[i][j] = alignCell{cost: del, op: opDelete, prevI: i - 1, prevJ: j}
			default:
				table[i][j] = alignCell{cost: ins, op: opInsert, prevI: i, prevJ: j - 1}
			}
		}
	}

	var out []Match
	for i, j := rows, cols; i > 0 || j > 0; {
		cell := table[i][j]
		if cell.op == opRename {
			out = append(out, cell.matches...)
		}
		i, j = cell.prevI, cell.prevJ
	}

	if ShouldMatch(a, b) {
		out = append(out, Match{A: a, B: b})
	}
	return out
}

// treeEditCost is the rename cost of aligning two children directly
func (m *TreeMatcher) treeEditCost(a, b *TreeNode) int {
	if IsStructural(a.Label) && a.Label == b.Label {
		diff := len(a.Children) - len(b.Children)
		if diff < 0 {
			diff = -diff
		}
		return diff
	}
	return m.distance.distance(a, b)
}

// ShouldMatch decides whether two nodes correspond
func ShouldMatch(a, b *TreeNode) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Label == LabelCompilationUnit && b.Label == LabelCompilationUnit {
		return false
	}
	if a.MinLine < 1 || b.MinLine < 1 {
		return false
	}
	if a.Label != b.Label {
		return false
	}

	if SameContent(a, b) {
		return true
	}
	// declarations of different shape still match on an equal signature
	if declarationLabels[a.Label] {
		return SignatureOf(a).Equal(SignatureOf(b))
	}
	if IsStructural(a.Label) {
		return true
	}
	return IsNameIndependent(a.Label)
}

// SameContent reports whether two subtrees have the same shape:
// equal child counts and positional child labels, recursively.
// Child pairs that are both identifier-like are skipped.
func SameContent(a, b *TreeNode) bool {
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i, childA := range a.Children {
		childB := b.Children[i]
		if IsNameIndependent(childA.Label) && IsNameIndependent(childB.Label) {
			continue
		}
		if childA.Label != childB.Label {
			return false
		}
		if !SameContent(childA, childB) {
			return false
		}
	}
	return true
}

// MethodSignature is the name-blind fingerprint of a method or function declaration
type MethodSignature struct {
	ParamCount int
	ReturnType string
	Operators  []string
}

// Equal reports whether two signatures are identical
func (s MethodSignature) Equal(other MethodSignature) bool {
	if s.ParamCount != other.ParamCount || s.ReturnType != other.ReturnType {
		return false
	}
	if len(s.Operators) != len(other.Operators) {
		return false
	}
	for i := range s.Operators {
		if s.Operators[i] != other.Operators[i] {
			return false
		}
	}
	return true
}

// String returns a compact representation used in logs
func (s MethodSignature) String() string {
	return fmt.Sprintf("(%d) %s {%s}", s.ParamCount, s.ReturnType, strings.Join(s.Operators, " "))
}

// SignatureOf extracts the signature of a declaration node: parameter count,
// rendered return type and the operator tokens of the body in source order
func SignatureOf(decl *TreeNode) MethodSignature {
	var sig MethodSignature
	returnFound := false

	for _, child := range decl.Children {
		switch {
		case child.Label == LabelParameters:
			for _, p := range child.Children {
				if p.Label == LabelParameter {
					sig.ParamCount++
				}
			}
		case child.Label == LabelParameter:
			sig.ParamCount++
		case child.Label == LabelFunctionName:
		case !returnFound && returnTypeLabels[child.Label]:
			sig.ReturnType = renderType(child)
			returnFound = true
		default:
			child.Walk(func(n *TreeNode) bool {
				if operatorLabels[n.Label] {
					token := n.Value
					if token == "" {
						token = n.Label
					}
					sig.Operators = append(sig.Operators, token)
				}
				return true
			})
		}
	}
	return sig
}

// renderType renders a type subtree as Label:value(children...)
func renderType(node *TreeNode) string {
	var sb strings.Builder
	var render func(n *TreeNode)
	render = func(n *TreeNode) {
		sb.WriteString(n.Label)
		if n.Value != "" {
			sb.WriteString(":")
			sb.WriteString(n.Value)
		}
		if len(n.Children) > 0 {
			sb.WriteString("(")
			for i, c := range n.Children {
				if i > 0 {
					sb.WriteString(",")
				}
				render(c)
			}
			sb.WriteString(")")
		}
	}
	render(node)
	return sb.String()
}

// DedupeMatches removes matches whose span pairs were already seen, keeping
// the first. A declaration replaces an earlier non-declaration match of the
// same spans in place, so one-line declarations are not shadowed by their
// descendants.
func DedupeMatches(matches []Match) []Match {
	seen := make(map[SpanKey]int, len(matches))
	out := make([]Match, 0, len(matches))
	for _, match := range matches {
		key := match.Key()
		if i, ok := seen[key]; ok {
			if IsImportant(match.A.Label) && !IsImportant(out[i].A.Label) {
				out[i] = match
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, match)
	}
	return out
}
