package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDistance struct {
	calls int
	inner DistanceComputer
}

func (c *countingDistance) Distance(a, b *TreeNode) int {
	c.calls++
	return c.inner.Distance(a, b)
}

func newTestComparator() (*PairComparator, *countingDistance) {
	cmp := NewPairComparator(ComparatorOptions{CosineThreshold: 0.8, MinSegmentLines: 2})
	counter := &countingDistance{inner: cmp.Distance}
	cmp.Distance = counter
	return cmp, counter
}

func TestPairComparator_CoarseFilterGates(t *testing.T) {
	cmp, counter := newTestComparator()

	from := withSpans(node(LabelCompilationUnit, 0, node(LabelForStmt, 1), node(LabelForStmt, 2)))
	to := withSpans(node(LabelCompilationUnit, 0, node("StringLiteral", 1), node("StringLiteral", 2)))

	result := cmp.CompareTrees(from, to)
	assert.False(t, result.Passed)
	assert.Less(t, result.Cosine, 0.8)
	assert.Equal(t, 0.0, result.Score)
	assert.Empty(t, result.Segments)
	assert.Zero(t, counter.calls, "no edit distance below the threshold")
}

func TestPairComparator_IdenticalStructureAtOffset(t *testing.T) {
	cmp, counter := newTestComparator()

	from := node(LabelCompilationUnit, 0, sumMethod(1, "sum", "i", "total"))
	to := node(LabelCompilationUnit, 0, sumMethod(9, "accumulate", "k", "acc"))
	ComputeSpan(from)
	ComputeSpan(to)

	result := cmp.CompareTrees(from, to)
	require.True(t, result.Passed)
	assert.Equal(t, 1, counter.calls)
	assert.InDelta(t, 1.0, result.Cosine, 1e-9)
	assert.Equal(t, 0, result.Distance)
	assert.Equal(t, 1.0, result.Score)

	assert.Contains(t, result.Segments, Segment{FromStart: 1, FromEnd: 5, ToStart: 9, ToEnd: 13})
	assert.Equal(t, []Interval{{1, 5}}, result.FromRanges)
	assert.Equal(t, []Interval{{9, 13}}, result.ToRanges)
}

func TestPairComparator_PartialSimilarity(t *testing.T) {
	cmp, _ := newTestComparator()

	from := withSpans(node(LabelCompilationUnit, 0,
		sumMethod(1, "sum", "i", "total"),
		method("helper", 7, 1, "-"),
	))
	to := withSpans(node(LabelCompilationUnit, 0,
		sumMethod(1, "sum", "i", "total"),
	))

	result := cmp.CompareTrees(from, to)
	require.True(t, result.Passed)
	assert.Greater(t, result.Score, 0.0)
	assert.Less(t, result.Score, 1.0)
	assert.Equal(t, []Interval{{1, 5}}, result.FromRanges)
}
