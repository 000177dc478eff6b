package analyzer

import (
	"fmt"
	"sort"
)

// Interval is an inclusive range of source lines
type Interval struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of lines in the interval
func (i Interval) Len() int {
	return i.End - i.Start + 1
}

// String returns "start-end"
func (i Interval) String() string {
	return fmt.Sprintf("%d-%d", i.Start, i.End)
}

// MergeRanges merges overlapping and adjacent intervals into a sorted list of
// disjoint intervals. Adjacent means the next interval starts right after the
// current one ends.
func MergeRanges(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return []Interval{}
	}

	sorted := make([]Interval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End < sorted[j].End
	})

	merged := make([]Interval, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		if next.Start <= current.End+1 {
			if next.End > current.End {
				current.End = next.End
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}

// CoveredLines returns the total number of lines covered by disjoint intervals
func CoveredLines(intervals []Interval) int {
	total := 0
	for _, iv := range intervals {
		total += iv.Len()
	}
	return total
}
