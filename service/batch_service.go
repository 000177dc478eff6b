package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ludo-technologies/astsim/domain"
)

// TaskRunner runs analyses asynchronously on a worker pool
type TaskRunner struct {
	pool        *WorkerPool
	similarity  *SimilarityServiceImpl
	submissions domain.SubmissionRepository
	logger      *slog.Logger
}

// NewTaskRunner creates a runner that executes on pool
func NewTaskRunner(pool *WorkerPool, similarity *SimilarityServiceImpl, submissions domain.SubmissionRepository, logger *slog.Logger) *TaskRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRunner{pool: pool, similarity: similarity, submissions: submissions, logger: logger}
}

// RunSubmission schedules AnalyzeSubmission for one start submission. The
// analysis outlives ctx's cancellation; failures are recorded in the
// runtime registry and logged.
func (r *TaskRunner) RunSubmission(ctx context.Context, assignmentID, submissionID int64) error {
	sub, err := r.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	key := RuntimeKey{AssignmentID: assignmentID, StudentID: sub.StudentID, SubmissionID: submissionID}
	registry := r.similarity.Registry()
	registry.MarkStarted(key)

	taskCtx := context.WithoutCancel(ctx)
	r.pool.Submit(func() {
		if err := r.similarity.AnalyzeSubmission(taskCtx, assignmentID, sub.StudentID, submissionID); err != nil {
			registry.MarkError(key)
			r.logger.ErrorContext(taskCtx, "async analysis failed",
				slog.Int64("assignment_id", assignmentID),
				slog.Int64("from_submission", submissionID),
				slog.String("error", err.Error()))
		}
	})
	return nil
}

// RunBatch schedules AnalyzeBatch for a batch message
func (r *TaskRunner) RunBatch(ctx context.Context, msg domain.BatchMessage) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	taskCtx := context.WithoutCancel(ctx)
	r.pool.Submit(func() {
		if _, err := r.similarity.AnalyzeBatch(taskCtx, msg); err != nil {
			r.logger.ErrorContext(taskCtx, "async batch failed",
				slog.String("group_id", msg.GroupID),
				slog.Int64("assignment_id", msg.AssignmentID),
				slog.String("error", err.Error()))
		}
	})
	return nil
}

// BatchService starts and monitors per-submission analyses of an assignment
type BatchService struct {
	runner      *TaskRunner
	similarity  *SimilarityServiceImpl
	submissions domain.SubmissionRepository
}

// NewBatchService creates a batch service
func NewBatchService(runner *TaskRunner, similarity *SimilarityServiceImpl, submissions domain.SubmissionRepository) *BatchService {
	return &BatchService{runner: runner, similarity: similarity, submissions: submissions}
}

// normalizeIDs drops non-positive ids, removes duplicates and sorts
func normalizeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// startSubmissions derives the submissions whose analysis a request covers.
// A single id stands for every submission with an AST from that id on,
// except the last one, which has nothing left to compare with.
func (b *BatchService) startSubmissions(ctx context.Context, assignmentID int64, ids []int64) ([]int64, error) {
	if len(ids) != 1 {
		return ids, nil
	}

	all, err := b.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	var expanded []int64
	for _, sub := range all {
		if sub.SubmissionID >= ids[0] && sub.HasAST() {
			expanded = append(expanded, sub.SubmissionID)
		}
	}
	if len(expanded) <= 1 {
		return []int64{}, nil
	}
	return expanded[:len(expanded)-1], nil
}

func (b *BatchService) resolve(ctx context.Context, assignmentID int64, submissionIDs []int64) ([]int64, error) {
	if len(submissionIDs) == 0 {
		return nil, domain.NewInvalidInputError("submissionIds must not be empty", nil)
	}
	ids := normalizeIDs(submissionIDs)
	if len(ids) == 0 {
		return nil, domain.NewInvalidInputError("submissionIds must contain positive ids", nil)
	}
	return b.startSubmissions(ctx, assignmentID, ids)
}

// Start schedules the analysis of every start submission
func (b *BatchService) Start(ctx context.Context, assignmentID int64, submissionIDs []int64) (*domain.StartResponse, error) {
	starts, err := b.resolve(ctx, assignmentID, submissionIDs)
	if err != nil {
		return nil, err
	}

	for _, id := range starts {
		if err := b.runner.RunSubmission(ctx, assignmentID, id); err != nil {
			return nil, err
		}
	}

	return &domain.StartResponse{
		Accepted:             true,
		RequestedCount:       len(submissionIDs),
		StartedCount:         len(starts),
		StartedSubmissionIDs: starts,
	}, nil
}

// Status aggregates the progress of every start submission. The overall
// status is ERROR if any is ERROR, else READY if any is not DONE.
func (b *BatchService) Status(ctx context.Context, assignmentID int64, submissionIDs []int64) (*domain.StatusResponse, error) {
	starts, err := b.resolve(ctx, assignmentID, submissionIDs)
	if err != nil {
		return nil, err
	}

	resp := &domain.StatusResponse{
		Status:         domain.StatusDone,
		PerSubmissions: make([]domain.SubmissionStatus, 0, len(starts)),
	}
	for _, id := range starts {
		sub, err := b.submissions.GetSubmission(ctx, id)
		if err != nil {
			return nil, err
		}
		progress, err := b.similarity.Status(ctx, assignmentID, sub.StudentID, id)
		if err != nil {
			return nil, err
		}

		resp.Total += progress.Total
		resp.Done += progress.Done
		resp.Skipped += progress.Skipped
		resp.PerSubmissions = append(resp.PerSubmissions, domain.SubmissionStatus{
			SubmissionID: id,
			Status:       progress.Status,
			Total:        progress.Total,
			Done:         progress.Done,
			Skipped:      progress.Skipped,
		})

		switch {
		case progress.Status == domain.StatusError:
			resp.Status = domain.StatusError
		case resp.Status != domain.StatusError && progress.Status != domain.StatusDone:
			resp.Status = domain.StatusReady
		}
	}
	return resp, nil
}
