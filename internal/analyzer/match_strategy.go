package analyzer

// MatchPass collects candidate matches between two trees.
// Passes are combined by TreeMatcher.Match and de-duplicated by span.
type MatchPass interface {
	// Name identifies the pass in logs and configuration
	Name() string

	// Collect returns the matches found by this pass
	Collect(m *TreeMatcher, a, b *TreeNode) []Match
}

// Pass names
const (
	PassAlignment    = "alignment"
	PassDeclarations = "declarations"
	PassLoops        = "loops"
	PassConditionals = "conditionals"
	PassVariables    = "variables"
)

// AlignmentPass returns the matches on the optimal child alignment path
type AlignmentPass struct{}

// Name returns the pass name
func (AlignmentPass) Name() string { return PassAlignment }

// Collect runs the alignment DP from the roots
func (AlignmentPass) Collect(m *TreeMatcher, a, b *TreeNode) []Match {
	return m.matchNode(a, b)
}

// CategoryPass compares every node of a category in one tree against every
// node of the same category in the other, independent of alignment
type CategoryPass struct {
	name   string
	labels map[string]bool
}

// NewCategoryPass creates a category pass over the given labels
func NewCategoryPass(name string, labels ...string) *CategoryPass {
	return &CategoryPass{name: name, labels: labelSet(labels...)}
}

// Name returns the pass name
func (p *CategoryPass) Name() string { return p.name }

// Collect applies ShouldMatch to the cross product of category nodes
func (p *CategoryPass) Collect(_ *TreeMatcher, a, b *TreeNode) []Match {
	nodesA := a.Collect(p.labels)
	if len(nodesA) == 0 {
		return nil
	}
	nodesB := b.Collect(p.labels)

	var out []Match
	for _, x := range nodesA {
		for _, y := range nodesB {
			if ShouldMatch(x, y) {
				out = append(out, Match{A: x, B: y})
			}
		}
	}
	return out
}

// DefaultMatchPasses returns the alignment pass followed by the exhaustive
// declaration, loop, conditional and variable passes
func DefaultMatchPasses() []MatchPass {
	return []MatchPass{
		AlignmentPass{},
		NewCategoryPass(PassDeclarations, LabelMethodDeclaration, LabelFunctionDeclaration),
		NewCategoryPass(PassLoops, LabelForStmt, LabelForEachStmt, LabelWhileStmt, LabelDoStmt),
		NewCategoryPass(PassConditionals, LabelIfStmt, LabelSwitchStmt),
		NewCategoryPass(PassVariables, LabelVariableDeclaration),
	}
}

// MatchPassesByName builds a pass list from names; unknown names are reported
func MatchPassesByName(names []string) ([]MatchPass, []string) {
	all := make(map[string]MatchPass)
	for _, p := range DefaultMatchPasses() {
		all[p.Name()] = p
	}

	var passes []MatchPass
	var unknown []string
	for _, name := range names {
		if p, ok := all[name]; ok {
			passes = append(passes, p)
		} else {
			unknown = append(unknown, name)
		}
	}
	return passes, unknown
}
