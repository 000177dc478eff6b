package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ludo-technologies/astsim/domain"
)

// CompareRequest describes an on-demand comparison of two AST files
type CompareRequest struct {
	FromPath        string
	ToPath          string
	CosineThreshold *float64
	MinSegmentLines *int

	OutputFormat domain.OutputFormat
	OutputWriter io.Writer
	OutputPath   string
}

// CompareUseCase orchestrates the two-file comparison workflow
type CompareUseCase struct {
	service   domain.SimilarityService
	formatter domain.SimilarityOutputFormatter
	output    domain.ReportWriter
}

// NewCompareUseCase creates a new compare use case
func NewCompareUseCase(
	service domain.SimilarityService,
	formatter domain.SimilarityOutputFormatter,
	output domain.ReportWriter,
) *CompareUseCase {
	return &CompareUseCase{
		service:   service,
		formatter: formatter,
		output:    output,
	}
}

// Execute reads both files, compares them and writes the report
func (uc *CompareUseCase) Execute(ctx context.Context, req CompareRequest) (*domain.PairReport, error) {
	if err := uc.validateRequest(req); err != nil {
		return nil, err
	}

	from, err := ReadDocument(req.FromPath)
	if err != nil {
		return nil, err
	}
	to, err := ReadDocument(req.ToPath)
	if err != nil {
		return nil, err
	}

	report, err := uc.service.ComparePair(ctx, &domain.ComparePairRequest{
		From:            from,
		To:              to,
		CosineThreshold: req.CosineThreshold,
		MinSegmentLines: req.MinSegmentLines,
	})
	if err != nil {
		return nil, err
	}

	err = uc.output.Write(req.OutputWriter, req.OutputPath, func(w io.Writer) error {
		return uc.formatter.FormatPairReport(report, req.OutputFormat, w)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (uc *CompareUseCase) validateRequest(req CompareRequest) error {
	if req.FromPath == "" || req.ToPath == "" {
		return domain.NewInvalidInputError("two AST files are required", nil)
	}
	if req.OutputWriter == nil && req.OutputPath == "" {
		return domain.NewInvalidInputError("output writer is required", nil)
	}
	return nil
}

// ReadDocument loads an AST document from path. A submission file
// ({"submissionId", ..., "ast"}) is accepted as well and yields its ast.
func ReadDocument(path string) (json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewFileNotFoundError(path, err)
	}
	return ExtractDocument(data, path)
}

// ExtractDocument unwraps the ast field of a submission file envelope
func ExtractDocument(data []byte, name string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("%s is empty", name), nil)
	}
	if trimmed[0] != '{' {
		return trimmed, nil
	}

	var envelope struct {
		Type *json.RawMessage `json:"type"`
		AST  json.RawMessage  `json:"ast"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("%s is not valid JSON", name), err)
	}
	if envelope.Type == nil && len(envelope.AST) > 0 {
		return envelope.AST, nil
	}
	return trimmed, nil
}
