package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ludo-technologies/astsim/domain"
)

// BatchRequest describes a batch run over submission files on disk
type BatchRequest struct {
	Paths           []string
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// AssignmentID selects one assignment when the files span several
	AssignmentID int64
	// GroupID labels the run; a random id is used when empty
	GroupID string

	OutputFormat domain.OutputFormat
	OutputWriter io.Writer
	OutputPath   string
}

// BatchUseCase loads submission files into the store and analyzes them as one batch
type BatchUseCase struct {
	service     domain.SimilarityService
	submissions domain.SubmissionRepository
	files       domain.SubmissionFileReader
	formatter   domain.SimilarityOutputFormatter
	output      domain.ReportWriter
	logger      *slog.Logger
}

// NewBatchUseCase creates a new batch use case
func NewBatchUseCase(
	service domain.SimilarityService,
	submissions domain.SubmissionRepository,
	files domain.SubmissionFileReader,
	formatter domain.SimilarityOutputFormatter,
	output domain.ReportWriter,
	logger *slog.Logger,
) *BatchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchUseCase{
		service:     service,
		submissions: submissions,
		files:       files,
		formatter:   formatter,
		output:      output,
		logger:      logger,
	}
}

// Execute performs the complete batch workflow
func (uc *BatchUseCase) Execute(ctx context.Context, req BatchRequest) (*domain.BatchSummary, error) {
	if len(req.Paths) == 0 {
		return nil, domain.NewInvalidInputError("no input paths specified", nil)
	}
	if req.OutputWriter == nil && req.OutputPath == "" {
		return nil, domain.NewInvalidInputError("output writer is required", nil)
	}

	paths, err := uc.files.CollectSubmissionFiles(req.Paths, req.Recursive, req.IncludePatterns, req.ExcludePatterns)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, domain.NewInvalidInputError("no submission files found in the specified paths", nil)
	}

	msg, err := uc.load(ctx, req, paths)
	if err != nil {
		return nil, err
	}

	summary, err := uc.service.AnalyzeBatch(ctx, msg)
	if err != nil {
		return nil, err
	}

	err = uc.output.Write(req.OutputWriter, req.OutputPath, func(w io.Writer) error {
		return uc.formatter.FormatBatchSummary(summary, req.OutputFormat, w)
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// load stores the submissions of the selected assignment and returns the
// batch message that covers them. Unreadable files are skipped with a warning.
func (uc *BatchUseCase) load(ctx context.Context, req BatchRequest, paths []string) (domain.BatchMessage, error) {
	byAssignment := make(map[int64][]*domain.SubmissionFile)
	for _, path := range paths {
		file, err := uc.files.ReadSubmissionFile(path)
		if err != nil {
			uc.logger.WarnContext(ctx, "submission file skipped",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		byAssignment[file.AssignmentID] = append(byAssignment[file.AssignmentID], file)
	}

	assignmentID := req.AssignmentID
	if assignmentID == 0 {
		if len(byAssignment) > 1 {
			ids := make([]int64, 0, len(byAssignment))
			for id := range byAssignment {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			return domain.BatchMessage{}, domain.NewInvalidInputError(
				fmt.Sprintf("submission files span assignments %v; select one", ids), nil)
		}
		for id := range byAssignment {
			assignmentID = id
		}
	}

	files := byAssignment[assignmentID]
	if len(files) == 0 {
		return domain.BatchMessage{}, domain.NewAssignmentNotFoundError(assignmentID)
	}

	now := time.Now().UTC()
	ids := make([]int64, 0, len(files))
	for _, file := range files {
		sub := file.Submission(now)
		if err := uc.submissions.PutSubmission(ctx, &sub); err != nil {
			return domain.BatchMessage{}, err
		}
		ids = append(ids, file.SubmissionID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	groupID := req.GroupID
	if groupID == "" {
		groupID = uuid.NewString()
	}
	uc.logger.InfoContext(ctx, "submissions loaded",
		slog.String("group_id", groupID),
		slog.Int64("assignment_id", assignmentID),
		slog.Int("submissions", len(ids)))

	return domain.BatchMessage{
		MessageType:   domain.MessageParsingCompleted,
		GroupID:       groupID,
		AssignmentID:  assignmentID,
		SubmissionIDs: ids,
		TotalFiles:    len(ids),
		Timestamp:     now,
	}, nil
}
