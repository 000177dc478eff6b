package analyzer

// Comparison is the outcome of comparing two trees
type Comparison struct {
	// Cosine similarity of the label histograms
	Cosine float64

	// Passed is false when the coarse filter rejected the pair; all
	// remaining fields are then zero
	Passed bool

	Distance   int
	Score      float64
	Matches    []Match
	Segments   []Segment
	FromRanges []Interval
	ToRanges   []Interval
}

// PairComparator runs the full pipeline for one pair of trees:
// coarse filter, edit distance, matching, segments and merged ranges
type PairComparator struct {
	Filter          *CoarseFilter
	Distance        DistanceComputer
	Matcher         *TreeMatcher
	MinSegmentLines int
}

// ComparatorOptions configures NewPairComparator
type ComparatorOptions struct {
	CosineThreshold float64
	MinSegmentLines int
	CostModel       CostModel
	Passes          []MatchPass
}

// NewPairComparator creates a comparator. Comparators are not safe for
// concurrent use; create one per worker.
func NewPairComparator(opts ComparatorOptions) *PairComparator {
	costModel := opts.CostModel
	if costModel == nil {
		costModel = NewDefaultCostModel()
	}
	return &PairComparator{
		Filter:          NewCoarseFilter(opts.CosineThreshold),
		Distance:        NewEditDistanceAnalyzer(costModel),
		Matcher:         NewTreeMatcher(costModel, opts.Passes...),
		MinSegmentLines: opts.MinSegmentLines,
	}
}

// Compare compares two trees using their precomputed label vectors
func (c *PairComparator) Compare(from, to *TreeNode, fromVec, toVec TypeVector) Comparison {
	cos, ok := c.Filter.Passes(fromVec, toVec)
	if !ok {
		return Comparison{Cosine: cos}
	}

	distance := c.Distance.Distance(from, to)
	matches := c.Matcher.Match(from, to)
	segs := ToSegments(matches, c.MinSegmentLines)
	fromRanges, toRanges := SplitRanges(segs)

	return Comparison{
		Cosine:     cos,
		Passed:     true,
		Distance:   distance,
		Score:      NormalizedSimilarity(distance, from.Size(), to.Size()),
		Matches:    matches,
		Segments:   segs,
		FromRanges: fromRanges,
		ToRanges:   toRanges,
	}
}

// CompareTrees vectorizes both trees and compares them
func (c *PairComparator) CompareTrees(from, to *TreeNode) Comparison {
	return c.Compare(from, to, Vectorize(from), Vectorize(to))
}
