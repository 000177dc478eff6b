package analyzer

import "math"

// DistanceComputer computes the edit distance between two trees
type DistanceComputer interface {
	Distance(tree1, tree2 *TreeNode) int
}

type nodePair struct {
	a, b *TreeNode
}

// EditDistanceAnalyzer computes ordered tree edit distance.
// Each node pair is aligned by a dynamic program over the two child sequences
// with delete, insert and rename-and-recurse transitions.
// An analyzer memoizes subproblems and is not safe for concurrent use.
type EditDistanceAnalyzer struct {
	costModel CostModel
	memo      map[nodePair]int
	insCost   map[*TreeNode]int
	delCost   map[*TreeNode]int
}

// NewEditDistanceAnalyzer creates a new analyzer with the given cost model
func NewEditDistanceAnalyzer(costModel CostModel) *EditDistanceAnalyzer {
	if costModel == nil {
		costModel = NewDefaultCostModel()
	}
	a := &EditDistanceAnalyzer{costModel: costModel}
	a.Reset()
	return a
}

// Reset drops all memoized subproblems
func (a *EditDistanceAnalyzer) Reset() {
	a.memo = make(map[nodePair]int)
	a.insCost = make(map[*TreeNode]int)
	a.delCost = make(map[*TreeNode]int)
}

// Distance computes the tree edit distance between two trees
func (a *EditDistanceAnalyzer) Distance(tree1, tree2 *TreeNode) int {
	a.Reset()
	return a.distance(tree1, tree2)
}

// distance is Distance without clearing the memo, for callers that
// compare many subtree pairs of the same two trees
func (a *EditDistanceAnalyzer) distance(tree1, tree2 *TreeNode) int {
	if tree1 == nil && tree2 == nil {
		return 0
	}
	if tree1 == nil {
		return a.InsertCost(tree2)
	}
	if tree2 == nil {
		return a.DeleteCost(tree1)
	}

	key := nodePair{tree1, tree2}
	if d, ok := a.memo[key]; ok {
		return d
	}

	d := a.costModel.Rename(tree1, tree2) + a.alignChildren(tree1.Children, tree2.Children)
	a.memo[key] = d
	return d
}

// alignChildren returns the minimum cost of transforming one child forest into the other
func (a *EditDistanceAnalyzer) alignChildren(children1, children2 []*TreeNode) int {
	m, n := len(children1), len(children2)
	if m == 0 && n == 0 {
		return 0
	}

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 1; j <= n; j++ {
		prev[j] = prev[j-1] + a.InsertCost(children2[j-1])
	}

	for i := 1; i <= m; i++ {
		del := a.DeleteCost(children1[i-1])
		curr[0] = prev[0] + del
		for j := 1; j <= n; j++ {
			best := prev[j] + del
			if ins := curr[j-1] + a.InsertCost(children2[j-1]); ins < best {
				best = ins
			}
			if ren := prev[j-1] + a.distance(children1[i-1], children2[j-1]); ren < best {
				best = ren
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

// InsertCost returns the cost of inserting the whole subtree rooted at root
func (a *EditDistanceAnalyzer) InsertCost(root *TreeNode) int {
	if root == nil {
		return 0
	}
	if c, ok := a.insCost[root]; ok {
		return c
	}
	cost := a.costModel.Insert(root)
	for _, child := range root.Children {
		cost += a.InsertCost(child)
	}
	a.insCost[root] = cost
	return cost
}

// DeleteCost returns the cost of deleting the whole subtree rooted at root
func (a *EditDistanceAnalyzer) DeleteCost(root *TreeNode) int {
	if root == nil {
		return 0
	}
	if c, ok := a.delCost[root]; ok {
		return c
	}
	cost := a.costModel.Delete(root)
	for _, child := range root.Children {
		cost += a.DeleteCost(child)
	}
	a.delCost[root] = cost
	return cost
}

// Similarity computes the normalized similarity 1 - distance/max(size), clamped to [0, 1]
func (a *EditDistanceAnalyzer) Similarity(tree1, tree2 *TreeNode) float64 {
	return NormalizedSimilarity(a.Distance(tree1, tree2), tree1.Size(), tree2.Size())
}

// NormalizedSimilarity converts a distance into a score in [0, 1]
func NormalizedSimilarity(distance, size1, size2 int) float64 {
	maxSize := size1
	if size2 > maxSize {
		maxSize = size2
	}
	if maxSize == 0 {
		return 1.0
	}
	sim := 1.0 - float64(distance)/float64(maxSize)
	return math.Max(0.0, math.Min(1.0, sim))
}
