package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ludo-technologies/astsim/app"
	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/service"
)

// HandlerSet exposes MCP tool handlers with shared dependencies.
type HandlerSet struct {
	deps *Dependencies
}

// NewHandlerSet constructs a handler set.
func NewHandlerSet(deps *Dependencies) *HandlerSet {
	if deps == nil {
		deps = NewDependencies(nil, "")
	}
	return &HandlerSet{deps: deps}
}

func requireExistingPath(args map[string]interface{}, name string) (string, *mcp.CallToolResult) {
	path, ok := args[name].(string)
	if !ok || path == "" {
		return "", mcp.NewToolResultError(fmt.Sprintf("%s parameter is required and must be a string", name))
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", mcp.NewToolResultError(fmt.Sprintf("path does not exist: %s", path))
	}
	return path, nil
}

func stringList(args map[string]interface{}, name string) []string {
	raw, ok := args[name].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// HandleCompareASTs handles the compare_asts tool
func (h *HandlerSet) HandleCompareASTs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	fromPath, errResult := requireExistingPath(args, "from_path")
	if errResult != nil {
		return errResult, nil
	}
	toPath, errResult := requireExistingPath(args, "to_path")
	if errResult != nil {
		return errResult, nil
	}

	cfg, err := h.deps.Config()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load configuration: %v", err)), nil
	}

	req := app.CompareRequest{
		FromPath:     fromPath,
		ToPath:       toPath,
		OutputFormat: domain.OutputFormatJSON,
	}
	if v, ok := args["cosine_threshold"].(float64); ok {
		if v < 0 || v > 1 {
			return mcp.NewToolResultError("cosine_threshold must be between 0.0 and 1.0"), nil
		}
		req.CosineThreshold = &v
	}
	if v, ok := args["min_lines"].(float64); ok {
		lines := int(v)
		req.MinSegmentLines = &lines
	}

	uc, closeSession, err := h.deps.BuildCompareUseCase(cfg, service.FormatterOptions{ShowSegments: true})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create comparator: %v", err)), nil
	}
	defer closeSession()

	var buf bytes.Buffer
	req.OutputWriter = &buf
	if _, err := uc.Execute(ctx, req); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("comparison failed: %v", err)), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// HandleAnalyzeDirectory handles the analyze_directory tool
func (h *HandlerSet) HandleAnalyzeDirectory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("invalid arguments format"), nil
	}
	path, errResult := requireExistingPath(args, "path")
	if errResult != nil {
		return errResult, nil
	}

	cfg, err := h.deps.Config()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load configuration: %v", err)), nil
	}

	req := app.BatchRequest{
		Paths:           []string{path},
		Recursive:       cfg.Input.Recursive,
		IncludePatterns: cfg.Input.IncludePatterns,
		ExcludePatterns: cfg.Input.ExcludePatterns,
		OutputFormat:    domain.OutputFormatJSON,
	}
	if v, ok := args["recursive"].(bool); ok {
		req.Recursive = v
	}
	if v, ok := args["assignment_id"].(float64); ok {
		req.AssignmentID = int64(v)
	}
	if patterns := stringList(args, "include_patterns"); len(patterns) > 0 {
		req.IncludePatterns = patterns
	}

	opts := service.FormatterOptions{MinScore: cfg.Output.MinScore}
	if v, ok := args["min_score"].(float64); ok {
		opts.MinScore = v
	}
	outputMode := "summary"
	if v, ok := args["output_mode"].(string); ok {
		outputMode = v
	}
	switch outputMode {
	case "summary":
	case "full":
		opts.ShowSegments = true
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown output_mode: %s", outputMode)), nil
	}

	uc, closeSession, err := h.deps.BuildBatchUseCase(cfg, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create analyzer: %v", err)), nil
	}
	defer closeSession()

	var buf bytes.Buffer
	req.OutputWriter = &buf
	summary, err := uc.Execute(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}
	if outputMode == "full" {
		return mcp.NewToolResultText(buf.String()), nil
	}

	var filtered domain.BatchSummary
	if err := json.Unmarshal(buf.Bytes(), &filtered); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to decode result: %v", err)), nil
	}
	jsonData, err := json.Marshal(formatBatchSummary(summary, filtered.Results))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

// formatBatchSummary keeps the counters and the most similar pairs
func formatBatchSummary(summary *domain.BatchSummary, results []domain.PairResult) map[string]interface{} {
	const maxPairs = 20
	pairs := make([]map[string]interface{}, 0, len(results))
	for i, r := range results {
		if i == maxPairs {
			break
		}
		pairs = append(pairs, map[string]interface{}{
			"from_submission": r.Result.FromSubmissionID,
			"to_submission":   r.Result.ToSubmissionID,
			"from_student":    r.Result.FromStudentID,
			"to_student":      r.Result.ToStudentID,
			"score":           r.Result.Score,
			"from_ranges":     r.FromRanges,
			"to_ranges":       r.ToRanges,
		})
	}
	return map[string]interface{}{
		"assignment_id":        summary.AssignmentID,
		"submissions":          summary.Submissions,
		"pairs":                summary.Pairs,
		"compared":             summary.Compared,
		"skipped_same_student": summary.SkippedSameStudent,
		"reported_pairs":       len(results),
		"top_pairs":            pairs,
	}
}
