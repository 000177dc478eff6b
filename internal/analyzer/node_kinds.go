package analyzer

// Node labels with special meaning to the matcher
const (
	LabelUnknown         = "Unknown"
	LabelCompilationUnit = "CompilationUnit"

	LabelClassDeclaration    = "ClassDeclaration"
	LabelMethodDeclaration   = "MethodDeclaration"
	LabelFunctionDeclaration = "FunctionDeclaration"
	LabelVariableDeclaration = "VariableDeclaration"

	LabelForStmt     = "ForStmt"
	LabelForEachStmt = "ForEachStmt"
	LabelWhileStmt   = "WhileStmt"
	LabelDoStmt      = "DoStmt"
	LabelIfStmt      = "IfStmt"
	LabelSwitchStmt  = "SwitchStmt"
	LabelBlockStmt   = "BlockStmt"
	LabelReturnStmt  = "ReturnStmt"

	LabelFunctionName = "FunctionName"
	LabelVariableName = "VariableName"
	LabelParameter    = "Parameter"
	LabelParameters   = "ParameterList"
	LabelReturnType   = "ReturnType"
)

// structuralLabels are the control-flow and declaration kinds that match on shape alone
var structuralLabels = map[string]bool{
	LabelMethodDeclaration:   true,
	LabelFunctionDeclaration: true,
	LabelForStmt:             true,
	LabelForEachStmt:         true,
	LabelWhileStmt:           true,
	LabelDoStmt:              true,
	LabelIfStmt:              true,
	LabelSwitchStmt:          true,
	LabelBlockStmt:           true,
	LabelReturnStmt:          true,
	LabelVariableDeclaration: true,
}

// nameIndependentLabels carry identifiers whose text is ignored when matching
var nameIndependentLabels = map[string]bool{
	LabelFunctionName: true,
	LabelVariableName: true,
	LabelParameter:    true,
}

// importantLabels always produce a segment, regardless of its length
var importantLabels = map[string]bool{
	LabelMethodDeclaration:   true,
	LabelFunctionDeclaration: true,
	LabelClassDeclaration:    true,
}

// declarationLabels are compared by signature instead of by shape alone
var declarationLabels = map[string]bool{
	LabelMethodDeclaration:   true,
	LabelFunctionDeclaration: true,
}

// returnTypeLabels identify the child holding a declaration's return type
var returnTypeLabels = map[string]bool{
	LabelReturnType:        true,
	"Type":                 true,
	"PrimitiveType":        true,
	"VoidType":             true,
	"ClassOrInterfaceType": true,
	"ArrayType":            true,
	"TypeAnnotation":       true,
}

// operatorLabels identify expression nodes whose operator token is significant
var operatorLabels = map[string]bool{
	"BinaryExpr":         true,
	"UnaryExpr":          true,
	"AssignExpr":         true,
	"CompoundAssignExpr": true,
	"ConditionalExpr":    true,
	"InstanceOfExpr":     true,
	"Operator":           true,
	"BinaryOperator":     true,
	"UnaryOperator":      true,
	"AssignOperator":     true,
}

// IsStructural reports whether label is a structural kind
func IsStructural(label string) bool {
	return structuralLabels[label]
}

// IsNameIndependent reports whether label is an identifier-only kind
func IsNameIndependent(label string) bool {
	return nameIndependentLabels[label]
}

// IsImportant reports whether label is a declaration that always yields a segment
func IsImportant(label string) bool {
	return importantLabels[label]
}

func labelSet(labels ...string) map[string]bool {
	set := make(map[string]bool, len(labels))
	for _, l := range labels {
		set[l] = true
	}
	return set
}
