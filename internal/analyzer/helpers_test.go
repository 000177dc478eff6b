package analyzer

// node builds a test tree node; line <= 0 means unknown
func node(label string, line int, children ...*TreeNode) *TreeNode {
	n := NewTreeNode(label, line)
	for _, c := range children {
		n.AddChild(c)
	}
	return n
}

// named builds a leaf with a value
func named(label, value string, line int) *TreeNode {
	return NewTreeNode(label, line).WithValue(value)
}

// withSpans computes spans and returns the root
func withSpans(root *TreeNode) *TreeNode {
	ComputeSpan(root)
	return root
}

// method builds a declaration spanning lines start..start+2:
// signature on start, block on start+1, return of "a <op> b" on start+2
func method(name string, start, params int, op string) *TreeNode {
	paramList := node(LabelParameters, start)
	for i := 0; i < params; i++ {
		paramList.AddChild(node(LabelParameter, start,
			named("PrimitiveType", "int", start),
			named(LabelVariableName, "p", start),
		))
	}
	return node(LabelMethodDeclaration, start,
		named(LabelFunctionName, name, start),
		paramList,
		named(LabelReturnType, "int", start),
		node(LabelBlockStmt, start+1,
			node(LabelReturnStmt, start+2,
				node("BinaryExpr", start+2,
					named(LabelVariableName, "a", start+2),
					named(LabelVariableName, "b", start+2),
				).WithValue(op),
			),
		),
	)
}

// sumMethod builds a five-line method starting at line start, with
// identifiers taken from names so two copies differ only in naming
func sumMethod(start int, fn, counter, total string) *TreeNode {
	return node(LabelMethodDeclaration, start,
		named(LabelFunctionName, fn, start),
		node(LabelParameters, start,
			node(LabelParameter, start,
				named("PrimitiveType", "int", start),
				named(LabelVariableName, "n", start),
			),
		),
		named(LabelReturnType, "int", start),
		node(LabelBlockStmt, start+1,
			node(LabelVariableDeclaration, start+1,
				named("PrimitiveType", "int", start+1),
				named(LabelVariableName, total, start+1),
				named("IntegerLiteral", "0", start+1),
			),
			node(LabelForStmt, start+2,
				node("BinaryExpr", start+2,
					named(LabelVariableName, counter, start+2),
					named(LabelVariableName, "n", start+2),
				).WithValue("<"),
				node("ExpressionStmt", start+3,
					node("AssignExpr", start+3,
						named(LabelVariableName, total, start+3),
						named(LabelVariableName, counter, start+3),
					).WithValue("+="),
				),
			),
			node(LabelReturnStmt, start+4,
				named(LabelVariableName, total, start+4),
			),
		),
	)
}

// withReturnType replaces the return type value of a method built by method
func withReturnType(m *TreeNode, returnType string) *TreeNode {
	for _, c := range m.Children {
		if c.Label == LabelReturnType {
			c.Value = returnType
		}
	}
	return m
}

// withExtraStatement appends a statement to the body of a method built by method
func withExtraStatement(m *TreeNode) *TreeNode {
	for _, c := range m.Children {
		if c.Label == LabelBlockStmt {
			c.AddChild(node(LabelReturnStmt, m.Line+2, named("IntegerLiteral", "0", m.Line+2)))
		}
	}
	return m
}
