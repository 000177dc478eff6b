package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers all astsim MCP tools with the server
func RegisterTools(s *server.MCPServer, handlers *HandlerSet) {
	s.AddTool(mcp.NewTool("compare_asts",
		mcp.WithDescription("Compare two labeled AST documents and report structural similarity with the matching line ranges"),
		mcp.WithString("from_path",
			mcp.Required(),
			mcp.Description("Path to the first AST document (JSON)")),
		mcp.WithString("to_path",
			mcp.Required(),
			mcp.Description("Path to the second AST document (JSON)")),
		mcp.WithNumber("cosine_threshold",
			mcp.Description("Label-histogram similarity a pair must reach before exact comparison, 0.0-1.0 (default: 0.8)")),
		mcp.WithNumber("min_lines",
			mcp.Description("Shortest segment in lines worth reporting (default: 2)")),
	), handlers.HandleCompareASTs)

	s.AddTool(mcp.NewTool("analyze_directory",
		mcp.WithDescription("Compare every pair of submission files in a directory and rank the most similar pairs"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Directory of submission files {submissionId, studentId, assignmentId, ast}")),
		mcp.WithBoolean("recursive",
			mcp.Description("Recursively search directories (default: true)")),
		mcp.WithNumber("assignment_id",
			mcp.Description("Assignment to analyze when the files span several")),
		mcp.WithNumber("min_score",
			mcp.Description("Hide pairs scoring below this value (default: 0.0)")),
		mcp.WithArray("include_patterns",
			mcp.WithStringItems(),
			mcp.Description("Glob patterns of submission files (default: **/*.json)")),
		mcp.WithString("output_mode",
			mcp.Enum("summary", "full"),
			mcp.Description("summary: counters and top pairs; full: every pair with segments (default: summary)")),
	), handlers.HandleAnalyzeDirectory)
}
