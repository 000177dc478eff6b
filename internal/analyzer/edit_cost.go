package analyzer

import "fmt"

// CostModel defines the interface for calculating edit operation costs.
// Insert and Delete are per-node; subtree costs are the sum over the subtree.
type CostModel interface {
	// Insert returns the cost of inserting a node
	Insert(node *TreeNode) int

	// Delete returns the cost of deleting a node
	Delete(node *TreeNode) int

	// Rename returns the cost of renaming node1 to node2
	Rename(node1, node2 *TreeNode) int
}

// Cost model names accepted by NewCostModel
const (
	CostModelDefault    = "default"
	CostModelStructural = "structural"
)

// NewCostModel returns the cost model registered under name
func NewCostModel(name string) (CostModel, error) {
	switch name {
	case "", CostModelDefault:
		return NewDefaultCostModel(), nil
	case CostModelStructural:
		return NewStructuralCostModel(), nil
	default:
		return nil, fmt.Errorf("unknown cost model %q", name)
	}
}

// DefaultCostModel implements a uniform cost model: every inserted or deleted
// node costs 1 and renaming costs 1 unless the labels are equal
type DefaultCostModel struct{}

// NewDefaultCostModel creates a new default cost model
func NewDefaultCostModel() *DefaultCostModel {
	return &DefaultCostModel{}
}

// Insert returns the cost of inserting a node (always 1)
func (c *DefaultCostModel) Insert(node *TreeNode) int {
	return 1
}

// Delete returns the cost of deleting a node (always 1)
func (c *DefaultCostModel) Delete(node *TreeNode) int {
	return 1
}

// Rename returns the cost of renaming node1 to node2
func (c *DefaultCostModel) Rename(node1, node2 *TreeNode) int {
	if node1 == nil || node2 == nil {
		return 1
	}
	if node1.Label == node2.Label {
		return 0
	}
	return 1
}

// StructuralCostModel charges more for renames that cross node categories,
// so a loop turning into another loop is cheaper than a loop turning into a literal
type StructuralCostModel struct {
	SameCategoryRename  int
	CrossCategoryRename int
}

// NewStructuralCostModel creates a structural cost model with default weights
func NewStructuralCostModel() *StructuralCostModel {
	return &StructuralCostModel{
		SameCategoryRename:  1,
		CrossCategoryRename: 2,
	}
}

// Insert returns the cost of inserting a node
func (c *StructuralCostModel) Insert(node *TreeNode) int {
	return 1
}

// Delete returns the cost of deleting a node
func (c *StructuralCostModel) Delete(node *TreeNode) int {
	return 1
}

// Rename returns the cost of renaming node1 to node2
func (c *StructuralCostModel) Rename(node1, node2 *TreeNode) int {
	if node1 == nil || node2 == nil {
		return c.CrossCategoryRename
	}
	if node1.Label == node2.Label {
		return 0
	}
	if c.sameCategory(node1.Label, node2.Label) {
		return c.SameCategoryRename
	}
	return c.CrossCategoryRename
}

func (c *StructuralCostModel) sameCategory(label1, label2 string) bool {
	if IsStructural(label1) && IsStructural(label2) {
		return true
	}
	if IsNameIndependent(label1) && IsNameIndependent(label2) {
		return true
	}
	return operatorLabels[label1] && operatorLabels[label2]
}
