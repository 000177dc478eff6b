package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveOverlaps(t *testing.T) {
	tests := []struct {
		name     string
		input    []Segment
		expected []Segment
	}{
		{
			name:     "strictly contained segment dropped",
			input:    []Segment{{1, 10, 1, 10}, {2, 4, 2, 4}},
			expected: []Segment{{1, 10, 1, 10}},
		},
		{
			name:     "input order does not matter",
			input:    []Segment{{2, 4, 2, 4}, {1, 10, 1, 10}},
			expected: []Segment{{1, 10, 1, 10}},
		},
		{
			name:     "identical duplicates both kept",
			input:    []Segment{{1, 5, 9, 13}, {1, 5, 9, 13}},
			expected: []Segment{{1, 5, 9, 13}, {1, 5, 9, 13}},
		},
		{
			name:     "same from range with different to ranges both kept",
			input:    []Segment{{1, 5, 9, 13}, {1, 5, 20, 24}},
			expected: []Segment{{1, 5, 9, 13}, {1, 5, 20, 24}},
		},
		{
			name:     "later segment evicts earlier contained one",
			input:    []Segment{{2, 4, 7, 9}, {2, 10, 7, 15}},
			expected: []Segment{{2, 10, 7, 15}},
		},
		{
			name:     "containment checks the from side only",
			input:    []Segment{{1, 10, 50, 51}, {3, 4, 1, 40}},
			expected: []Segment{{1, 10, 50, 51}},
		},
		{
			name:     "partial overlaps are kept",
			input:    []Segment{{1, 5, 1, 5}, {4, 8, 4, 8}},
			expected: []Segment{{1, 5, 1, 5}, {4, 8, 4, 8}},
		},
		{
			name:     "empty input",
			input:    nil,
			expected: []Segment{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveOverlaps(tt.input))
		})
	}
}

func TestResolveOverlaps_DoesNotMutateInput(t *testing.T) {
	input := []Segment{{5, 6, 5, 6}, {1, 10, 1, 10}}
	ResolveOverlaps(input)
	assert.Equal(t, []Segment{{5, 6, 5, 6}, {1, 10, 1, 10}}, input)
}

func TestToSegments_Filtering(t *testing.T) {
	shortA := withSpans(node("IntegerLiteral", 3))
	shortB := withSpans(node("IntegerLiteral", 8))

	declA := withSpans(node(LabelMethodDeclaration, 12))
	declB := withSpans(node(LabelMethodDeclaration, 30))

	longA := withSpans(node(LabelBlockStmt, 20, node("X", 22)))
	longB := withSpans(node(LabelBlockStmt, 40, node("X", 42)))

	unknownA := withSpans(node(LabelBlockStmt, 0))

	matches := []Match{
		{A: shortA, B: shortB},
		{A: declA, B: declB},
		{A: longA, B: longB},
		{A: unknownA, B: longB},
	}

	segs := ToSegments(matches, 2)
	assert.Equal(t, []Segment{{12, 12, 30, 30}, {20, 22, 40, 42}}, segs)
}

func TestToSegments_UsesShorterSide(t *testing.T) {
	a := withSpans(node(LabelIfStmt, 1, node("X", 4)))
	b := withSpans(node(LabelIfStmt, 10))

	assert.Empty(t, ToSegments([]Match{{A: a, B: b}}, 2))
	assert.Len(t, ToSegments([]Match{{A: a, B: b}}, 1), 1)
}

func TestSplitRanges(t *testing.T) {
	segs := []Segment{{1, 3, 20, 22}, {2, 5, 10, 12}, {9, 9, 13, 14}}
	from, to := SplitRanges(segs)

	assert.Equal(t, []Interval{{1, 5}, {9, 9}}, from)
	assert.Equal(t, []Interval{{10, 14}, {20, 22}}, to)
}

func TestSegment_Sides(t *testing.T) {
	s := Segment{FromStart: 1, FromEnd: 2, ToStart: 3, ToEnd: 4}
	assert.Equal(t, Interval{1, 2}, s.From())
	assert.Equal(t, Interval{3, 4}, s.To())
}
