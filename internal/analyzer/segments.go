package analyzer

import "sort"

// Segment is a pair of corresponding line ranges, one per compared tree
type Segment struct {
	FromStart int `json:"from_start" yaml:"from_start"`
	FromEnd   int `json:"from_end" yaml:"from_end"`
	ToStart   int `json:"to_start" yaml:"to_start"`
	ToEnd     int `json:"to_end" yaml:"to_end"`
}

// From returns the "from" side as an interval
func (s Segment) From() Interval {
	return Interval{Start: s.FromStart, End: s.FromEnd}
}

// To returns the "to" side as an interval
func (s Segment) To() Interval {
	return Interval{Start: s.ToStart, End: s.ToEnd}
}

// ToSegments projects matches onto line ranges. A match is kept when both
// spans are known and the shorter side covers at least minLen lines, or
// when the "from" node is a class, method or function declaration.
// Overlaps are then resolved with ResolveOverlaps.
func ToSegments(matches []Match, minLen int) []Segment {
	segs := make([]Segment, 0, len(matches))
	for _, m := range matches {
		if !m.A.HasSpan() || !m.B.HasSpan() {
			continue
		}
		length := m.A.SpanLength()
		if l := m.B.SpanLength(); l < length {
			length = l
		}
		if length < minLen && !IsImportant(m.A.Label) {
			continue
		}
		segs = append(segs, Segment{
			FromStart: m.A.MinLine,
			FromEnd:   m.A.MaxLine,
			ToStart:   m.B.MinLine,
			ToEnd:     m.B.MaxLine,
		})
	}
	return ResolveOverlaps(segs)
}

// ResolveOverlaps drops segments whose "from" range is strictly contained in
// another kept segment's "from" range. Segments are visited in order of
// starting line; a later segment evicts earlier kept segments it strictly
// contains. Identical "from" ranges never contain each other, so both stay.
func ResolveOverlaps(segs []Segment) []Segment {
	sorted := make([]Segment, len(segs))
	copy(sorted, segs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FromStart < sorted[j].FromStart
	})

	result := make([]Segment, 0, len(sorted))
	for _, current := range sorted {
		contained := false
		kept := result[:0:0]
		for _, existing := range result {
			if contained {
				kept = append(kept, existing)
				continue
			}
			if strictlyContains(existing, current) {
				contained = true
				kept = append(kept, existing)
				continue
			}
			if strictlyContains(current, existing) {
				continue
			}
			kept = append(kept, existing)
		}
		result = kept
		if !contained {
			result = append(result, current)
		}
	}
	return result
}

// strictlyContains reports whether inner's "from" range lies within outer's and differs from it
func strictlyContains(outer, inner Segment) bool {
	if inner.FromStart == outer.FromStart && inner.FromEnd == outer.FromEnd {
		return false
	}
	return inner.FromStart >= outer.FromStart && inner.FromEnd <= outer.FromEnd
}

// SplitRanges projects segments onto each side and merges each side's ranges
func SplitRanges(segs []Segment) (from, to []Interval) {
	fromRanges := make([]Interval, 0, len(segs))
	toRanges := make([]Interval, 0, len(segs))
	for _, s := range segs {
		fromRanges = append(fromRanges, s.From())
		toRanges = append(toRanges, s.To())
	}
	return MergeRanges(fromRanges), MergeRanges(toRanges)
}
