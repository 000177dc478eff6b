package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistanceAnalyzer_Distance_EmptyTrees(t *testing.T) {
	tests := []struct {
		name     string
		tree1    *TreeNode
		tree2    *TreeNode
		expected int
	}{
		{name: "both trees nil", tree1: nil, tree2: nil, expected: 0},
		{name: "first tree nil", tree1: nil, tree2: node("A", 1, node("B", 2)), expected: 2},
		{name: "second tree nil", tree1: node("A", 1), tree2: nil, expected: 1},
	}

	analyzer := NewEditDistanceAnalyzer(NewDefaultCostModel())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, analyzer.Distance(tt.tree1, tt.tree2))
		})
	}
}

func TestEditDistanceAnalyzer_Distance(t *testing.T) {
	tests := []struct {
		name       string
		tree1      *TreeNode
		tree2      *TreeNode
		distance   int
		similarity float64
	}{
		{
			name:       "single node rename",
			tree1:      node("A", 1),
			tree2:      node("B", 1),
			distance:   1,
			similarity: 0.0,
		},
		{
			name:       "child rename",
			tree1:      node("A", 1, node("B", 2)),
			tree2:      node("A", 1, node("C", 2)),
			distance:   1,
			similarity: 0.5,
		},
		{
			name:       "leaf insertion",
			tree1:      node("A", 1),
			tree2:      node("A", 1, node("B", 2)),
			distance:   1,
			similarity: 0.5,
		},
		{
			name:       "subtree deletion costs its size",
			tree1:      node("A", 1, node("B", 2, node("C", 3), node("D", 4)), node("E", 5)),
			tree2:      node("A", 1, node("E", 5)),
			distance:   3,
			similarity: 0.4,
		},
		{
			name:       "values are ignored",
			tree1:      node("A", 1, named(LabelVariableName, "x", 1)),
			tree2:      node("A", 1, named(LabelVariableName, "y", 1)),
			distance:   0,
			similarity: 1.0,
		},
		{
			name:       "reordered children",
			tree1:      node("A", 1, node("B", 2), node("C", 3)),
			tree2:      node("A", 1, node("C", 2), node("B", 3)),
			distance:   2,
			similarity: 1.0 / 3.0,
		},
	}

	analyzer := NewEditDistanceAnalyzer(NewDefaultCostModel())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.distance, analyzer.Distance(tt.tree1, tt.tree2))
			assert.InDelta(t, tt.similarity, analyzer.Similarity(tt.tree1, tt.tree2), 1e-9)
		})
	}
}

func TestEditDistanceAnalyzer_Identity(t *testing.T) {
	trees := []*TreeNode{
		node("A", 1),
		method("f", 1, 2, "+"),
		sumMethod(1, "sum", "i", "total"),
		node(LabelCompilationUnit, 0, method("f", 1, 1, "-"), method("g", 5, 0, "*")),
	}

	analyzer := NewEditDistanceAnalyzer(NewDefaultCostModel())
	for _, tree := range trees {
		assert.Equal(t, 0, analyzer.Distance(tree, tree))
		assert.Equal(t, 1.0, analyzer.Similarity(tree, tree))
	}
}

func TestEditDistanceAnalyzer_Symmetric(t *testing.T) {
	a := node("R", 1,
		node("A", 2, node("B", 3)),
		node("C", 4),
		node("D", 5, node("E", 6), node("F", 7)),
	)
	b := node("R", 1,
		node("C", 2),
		node("D", 3, node("F", 4)),
		node("G", 5),
	)

	for _, costModel := range []CostModel{NewDefaultCostModel(), NewStructuralCostModel()} {
		analyzer := NewEditDistanceAnalyzer(costModel)
		assert.Equal(t, analyzer.Distance(a, b), analyzer.Distance(b, a))
	}
}

func TestEditDistanceAnalyzer_VariableDeclarationNamesOnly(t *testing.T) {
	a := withSpans(node(LabelCompilationUnit, 0,
		node(LabelVariableDeclaration, 1,
			named("PrimitiveType", "int", 1),
			named(LabelVariableName, "count", 1),
		),
	))
	b := withSpans(node(LabelCompilationUnit, 0,
		node(LabelVariableDeclaration, 1,
			named("PrimitiveType", "int", 1),
			named(LabelVariableName, "n", 1),
		),
	))

	analyzer := NewEditDistanceAnalyzer(nil)
	assert.Equal(t, 0, analyzer.Distance(a, b))
	assert.Equal(t, 1.0, analyzer.Similarity(a, b))

	declA, declB := a.Children[0], b.Children[0]
	assert.True(t, ShouldMatch(declA, declB))
	assert.True(t, ShouldMatch(declA.Children[1], declB.Children[1]))
}

func TestNormalizedSimilarity_Clamped(t *testing.T) {
	assert.Equal(t, 0.0, NormalizedSimilarity(10, 2, 3))
	assert.Equal(t, 1.0, NormalizedSimilarity(0, 0, 0))
	assert.InDelta(t, 0.75, NormalizedSimilarity(1, 4, 2), 1e-9)
}

func TestStructuralCostModel_Rename(t *testing.T) {
	model := NewStructuralCostModel()

	assert.Equal(t, 0, model.Rename(node(LabelIfStmt, 1), node(LabelIfStmt, 2)))
	assert.Equal(t, 1, model.Rename(node(LabelForStmt, 1), node(LabelWhileStmt, 2)))
	assert.Equal(t, 1, model.Rename(node(LabelVariableName, 1), node(LabelParameter, 2)))
	assert.Equal(t, 2, model.Rename(node(LabelForStmt, 1), node("IntegerLiteral", 2)))
	assert.Equal(t, 2, model.Rename(nil, node("A", 1)))
}

func TestNewCostModel(t *testing.T) {
	model, err := NewCostModel("")
	assert.NoError(t, err)
	assert.IsType(t, &DefaultCostModel{}, model)

	model, err = NewCostModel(CostModelStructural)
	assert.NoError(t, err)
	assert.IsType(t, &StructuralCostModel{}, model)

	_, err = NewCostModel("zhang-shasha")
	assert.Error(t, err)
}
