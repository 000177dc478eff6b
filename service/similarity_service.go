package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/internal/analyzer"
	"github.com/ludo-technologies/astsim/internal/config"
	"github.com/ludo-technologies/astsim/internal/constants"
)

// SimilarityOptions tunes the analysis pipeline
type SimilarityOptions struct {
	CosineThreshold        float64
	CompareCosineThreshold float64
	MinSegmentLines        int
	CostModel              string
	MatchPasses            []string
	Workers                int
	StaleAfter             time.Duration
}

// DefaultSimilarityOptions returns the built-in tunables
func DefaultSimilarityOptions() SimilarityOptions {
	return SimilarityOptions{
		CosineThreshold:        constants.DefaultCosineThreshold,
		CompareCosineThreshold: constants.DefaultCompareCosineThreshold,
		MinSegmentLines:        constants.DefaultMinSegmentLines,
		CostModel:              analyzer.CostModelDefault,
		Workers:                constants.DefaultBatchWorkers,
		StaleAfter:             constants.DefaultStaleAfter,
	}
}

// SimilarityOptionsFromConfig maps the analysis and batch sections of cfg
func SimilarityOptionsFromConfig(cfg *config.Config) SimilarityOptions {
	return SimilarityOptions{
		CosineThreshold:        cfg.Analysis.CosineThreshold,
		CompareCosineThreshold: cfg.Analysis.CompareCosineThreshold,
		MinSegmentLines:        cfg.Analysis.MinSegmentLines,
		CostModel:              cfg.Analysis.CostModel,
		MatchPasses:            cfg.Analysis.MatchPasses,
		Workers:                cfg.Batch.Workers,
		StaleAfter:             cfg.Batch.StaleAfter(),
	}
}

// SimilarityServiceImpl implements domain.SimilarityService
type SimilarityServiceImpl struct {
	submissions domain.SubmissionRepository
	results     domain.ResultRepository
	publisher   domain.EventPublisher
	registry    *RuntimeRegistry
	cache       *SubmissionCache
	costModel   analyzer.CostModel
	opts        SimilarityOptions
	logger      *slog.Logger
	now         func() time.Time
}

// NewSimilarityService creates the service. A nil publisher discards events,
// a nil registry or logger gets a fresh default.
func NewSimilarityService(
	submissions domain.SubmissionRepository,
	results domain.ResultRepository,
	publisher domain.EventPublisher,
	registry *RuntimeRegistry,
	opts SimilarityOptions,
	logger *slog.Logger,
) (*SimilarityServiceImpl, error) {
	costModel, err := analyzer.NewCostModel(opts.CostModel)
	if err != nil {
		return nil, domain.NewConfigError("invalid cost model", err)
	}
	if _, unknown := analyzer.MatchPassesByName(opts.MatchPasses); len(unknown) > 0 {
		return nil, domain.NewConfigError(fmt.Sprintf("unknown match passes: %v", unknown), nil)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = constants.DefaultStaleAfter
	}
	if opts.MinSegmentLines < 1 {
		opts.MinSegmentLines = constants.DefaultMinSegmentLines
	}
	if publisher == nil {
		publisher = MultiPublisher{}
	}
	if registry == nil {
		registry = NewRuntimeRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &SimilarityServiceImpl{
		submissions: submissions,
		results:     results,
		publisher:   publisher,
		registry:    registry,
		cache:       NewSubmissionCache(),
		costModel:   costModel,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}, nil
}

// Registry returns the runtime registry shared with the task runner
func (s *SimilarityServiceImpl) Registry() *RuntimeRegistry {
	return s.registry
}

// Cache returns the shared tree and vector cache
func (s *SimilarityServiceImpl) Cache() *SubmissionCache {
	return s.cache
}

// newComparator returns a comparator for one goroutine
func (s *SimilarityServiceImpl) newComparator(threshold float64, minLines int) *analyzer.PairComparator {
	var passes []analyzer.MatchPass
	if len(s.opts.MatchPasses) > 0 {
		passes, _ = analyzer.MatchPassesByName(s.opts.MatchPasses)
	}
	return analyzer.NewPairComparator(analyzer.ComparatorOptions{
		CosineThreshold: threshold,
		MinSegmentLines: minLines,
		CostModel:       s.costModel,
		Passes:          passes,
	})
}

// compareSubmissions runs the pipeline on two stored submissions. Trees are
// only built when the coarse filter passes.
func (s *SimilarityServiceImpl) compareSubmissions(ctx context.Context, cmp *analyzer.PairComparator, from, to *domain.Submission) (analyzer.Comparison, error) {
	fromVec, err := s.cache.Vector(from.SubmissionID, from.AST)
	if err != nil {
		return analyzer.Comparison{}, fmt.Errorf("submission %d: %w", from.SubmissionID, err)
	}
	toVec, err := s.cache.Vector(to.SubmissionID, to.AST)
	if err != nil {
		return analyzer.Comparison{}, fmt.Errorf("submission %d: %w", to.SubmissionID, err)
	}

	if cos, ok := cmp.Filter.Passes(fromVec, toVec); !ok {
		comparisonsTotal.WithLabelValues(outcomeFiltered).Inc()
		return analyzer.Comparison{Cosine: cos}, nil
	}

	fromTree, err := s.cache.Tree(from.SubmissionID, from.AST)
	if err != nil {
		return analyzer.Comparison{}, fmt.Errorf("submission %d: %w", from.SubmissionID, err)
	}
	toTree, err := s.cache.Tree(to.SubmissionID, to.AST)
	if err != nil {
		return analyzer.Comparison{}, fmt.Errorf("submission %d: %w", to.SubmissionID, err)
	}

	_, span := startPairSpan(ctx, from.SubmissionID, to.SubmissionID)
	start := time.Now()
	result := cmp.Compare(fromTree, toTree, fromVec, toVec)
	comparisonDuration.Observe(time.Since(start).Seconds())
	comparisonsTotal.WithLabelValues(outcomeCompared).Inc()
	segmentsTotal.Add(float64(len(result.Segments)))
	span.SetAttributes(
		attribute.Float64("astsim.score", result.Score),
		attribute.Int("astsim.segments", len(result.Segments)),
	)
	span.End()

	s.logger.DebugContext(ctx, "pair compared",
		slog.Int64("from_submission", from.SubmissionID),
		slog.Int64("to_submission", to.SubmissionID),
		slog.Float64("cosine", result.Cosine),
		slog.Float64("score", result.Score),
		slog.Int("matches", len(result.Matches)),
		slog.Int("segments", len(result.Segments)))
	return result, nil
}

func newResult(assignmentID int64, from, to *domain.Submission, cmp analyzer.Comparison) *domain.SimilarityResult {
	return &domain.SimilarityResult{
		AssignmentID:     assignmentID,
		FromSubmissionID: from.SubmissionID,
		ToSubmissionID:   to.SubmissionID,
		FromStudentID:    from.StudentID,
		ToStudentID:      to.StudentID,
		Score:            cmp.Score,
		Cosine:           cmp.Cosine,
	}
}

// AnalyzeSubmission compares a submission with every later submission of
// its assignment that has an AST, in id order, and stores one result per
// pair together with the merged line ranges of both students. A failure to
// store the ranges keeps the result; a failure to store the result marks
// the analysis as failed and moves on to the next candidate.
func (s *SimilarityServiceImpl) AnalyzeSubmission(ctx context.Context, assignmentID, studentID, submissionID int64) error {
	key := RuntimeKey{AssignmentID: assignmentID, StudentID: studentID, SubmissionID: submissionID}
	fail := func(err error) error {
		s.registry.MarkError(key)
		analysisErrors.WithLabelValues(domain.ErrorCode(err)).Inc()
		return err
	}

	if assignmentID <= 0 || studentID <= 0 || submissionID <= 0 {
		return fail(domain.NewInvalidInputError("assignmentId, studentId and submissionId are required", nil))
	}

	from, err := s.submissions.GetSubmission(ctx, submissionID)
	if err != nil {
		return fail(err)
	}
	if from.StudentID != studentID {
		return fail(domain.NewStudentSubmissionMismatchError(studentID, submissionID))
	}
	if from.AssignmentID != assignmentID {
		return fail(domain.NewInvalidInputError(
			fmt.Sprintf("submission %d belongs to assignment %d", submissionID, from.AssignmentID), nil))
	}
	if !from.HasAST() {
		return fail(domain.NewInvalidInputError(fmt.Sprintf("submission %d has no AST", submissionID), nil))
	}

	all, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return fail(err)
	}

	logger := s.logger.With(
		slog.Int64("assignment_id", assignmentID),
		slog.Int64("from_submission", submissionID))

	cmp := s.newComparator(s.opts.CosineThreshold, s.opts.MinSegmentLines)
	for _, candidate := range all {
		if candidate.SubmissionID <= submissionID || !candidate.HasAST() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if candidate.StudentID == studentID {
			return fail(domain.NewSameStudentError(studentID, submissionID, candidate.SubmissionID))
		}

		comparison, err := s.compareSubmissions(ctx, cmp, from, candidate)
		if err != nil {
			s.registry.MarkError(key)
			logger.ErrorContext(ctx, "comparison failed",
				slog.Int64("to_submission", candidate.SubmissionID),
				slog.String("error", err.Error()))
			continue
		}

		saved, err := s.upsertResult(ctx, newResult(assignmentID, from, candidate, comparison))
		if err != nil {
			s.registry.MarkError(key)
			logger.ErrorContext(ctx, "result not stored, skipping pair",
				slog.Int64("to_submission", candidate.SubmissionID),
				slog.String("error", err.Error()))
			continue
		}

		if len(comparison.Segments) > 0 {
			lines := codeLines(saved.ID, from.StudentID, candidate.StudentID, comparison.FromRanges, comparison.ToRanges)
			if err := s.results.ReplaceCodeLines(ctx, []int64{saved.ID}, lines); err != nil {
				logger.WarnContext(ctx, "code lines not stored, result kept",
					slog.Int64("result_id", saved.ID),
					slog.String("error", err.Error()))
			}
		}
		s.registry.MarkProgress(key)
	}
	return nil
}

// upsertResult returns the stored result of the pair when one exists and
// stores r otherwise
func (s *SimilarityServiceImpl) upsertResult(ctx context.Context, r *domain.SimilarityResult) (*domain.SimilarityResult, error) {
	existing, err := s.results.FindResult(ctx, r.AssignmentID, r.FromSubmissionID, r.ToSubmissionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrResultNotFound) {
		return nil, err
	}
	if err := s.results.SaveResults(ctx, []*domain.SimilarityResult{r}); err != nil {
		return nil, err
	}
	return r, nil
}

func codeLines(resultID, fromStudent, toStudent int64, from, to []analyzer.Interval) []domain.CodeLine {
	lines := make([]domain.CodeLine, 0, len(from)+len(to))
	for _, iv := range from {
		lines = append(lines, domain.CodeLine{ResultID: resultID, StudentID: fromStudent, StartLine: iv.Start, EndLine: iv.End})
	}
	for _, iv := range to {
		lines = append(lines, domain.CodeLine{ResultID: resultID, StudentID: toStudent, StartLine: iv.Start, EndLine: iv.End})
	}
	return lines
}

// pairOutcome is one compared pair produced by a batch task
type pairOutcome struct {
	result     *domain.SimilarityResult
	comparison analyzer.Comparison
}

type batchTaskResult struct {
	pairs       []pairOutcome
	sameStudent int
	failed      int
}

// AnalyzeBatch compares every pair of the listed submissions that have an
// AST. Each "from" submission is one task on a bounded pool; a task that
// finds the pool saturated runs on the caller. Results and code lines are
// persisted only after every task finished.
func (s *SimilarityServiceImpl) AnalyzeBatch(ctx context.Context, msg domain.BatchMessage) (*domain.BatchSummary, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	ctx, span := startBatchSpan(ctx, "SimilarityService.AnalyzeBatch", msg.AssignmentID, len(msg.SubmissionIDs))
	defer span.End()
	start := time.Now()

	logger := s.logger.With(
		slog.String("group_id", msg.GroupID),
		slog.Int64("assignment_id", msg.AssignmentID))

	docs, err := s.loadBatch(ctx, msg, logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	outputs := make([]batchTaskResult, len(docs))
	var processed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for i := range docs {
		i := i
		task := func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			outputs[i] = s.processFrom(ctx, msg.AssignmentID, docs, i, logger)
			n := processed.Add(1)
			if err := s.publisher.PublishProgress(ctx, msg.GroupID, int(n), len(docs)); err != nil {
				logger.WarnContext(ctx, "progress event not published", slog.String("error", err.Error()))
			}
			return nil
		}
		if !g.TryGo(task) {
			if err := task(); err != nil {
				break
			}
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	summary := &domain.BatchSummary{
		GroupID:      msg.GroupID,
		AssignmentID: msg.AssignmentID,
		Submissions:  len(docs),
		Results:      []domain.PairResult{},
	}
	var all []*domain.SimilarityResult
	var pairs []pairOutcome
	for _, out := range outputs {
		summary.SkippedSameStudent += out.sameStudent
		for _, p := range out.pairs {
			all = append(all, p.result)
			pairs = append(pairs, p)
			if p.comparison.Passed {
				summary.Compared++
			}
		}
	}
	summary.Pairs = len(pairs)

	if len(all) > 0 {
		if err := s.results.SaveResults(ctx, all); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "results not stored")
			return nil, err
		}
		logger.InfoContext(ctx, "results stored", slog.Int("count", len(all)))
	}

	var resultIDs []int64
	var lines []domain.CodeLine
	for _, p := range pairs {
		if len(p.comparison.Segments) == 0 {
			continue
		}
		resultIDs = append(resultIDs, p.result.ID)
		lines = append(lines, codeLines(p.result.ID, p.result.FromStudentID, p.result.ToStudentID,
			p.comparison.FromRanges, p.comparison.ToRanges)...)
	}
	if len(resultIDs) > 0 {
		if err := s.results.ReplaceCodeLines(ctx, resultIDs, lines); err != nil {
			logger.ErrorContext(ctx, "code lines not stored, results kept", slog.String("error", err.Error()))
		} else {
			summary.CodeLines = len(lines)
		}
	}

	for _, p := range pairs {
		summary.Results = append(summary.Results, toPairResult(p))
	}

	if err := s.publisher.PublishCompleted(ctx, msg.Completed(s.now().UTC())); err != nil {
		logger.ErrorContext(ctx, "completion event not published", slog.String("error", err.Error()))
	}

	elapsed := time.Since(start)
	batchDuration.Observe(elapsed.Seconds())
	summary.DurationMs = elapsed.Milliseconds()
	span.SetAttributes(
		attribute.Int("astsim.pairs", summary.Pairs),
		attribute.Int("astsim.compared", summary.Compared),
	)
	logger.InfoContext(ctx, "batch analysis finished",
		slog.Int("submissions", summary.Submissions),
		slog.Int("pairs", summary.Pairs),
		slog.Int("compared", summary.Compared),
		slog.Int("skipped_same_student", summary.SkippedSameStudent),
		slog.Duration("duration", elapsed))
	return summary, nil
}

// loadBatch returns the listed submissions of the assignment that have a
// decodable AST, ordered by id, with their vectors already cached
func (s *SimilarityServiceImpl) loadBatch(ctx context.Context, msg domain.BatchMessage, logger *slog.Logger) ([]*domain.Submission, error) {
	wanted := make(map[int64]bool, len(msg.SubmissionIDs))
	for _, id := range msg.SubmissionIDs {
		wanted[id] = true
	}

	all, err := s.submissions.ListByAssignment(ctx, msg.AssignmentID)
	if err != nil {
		return nil, err
	}

	docs := make([]*domain.Submission, 0, len(wanted))
	for _, sub := range all {
		if !wanted[sub.SubmissionID] || !sub.HasAST() {
			continue
		}
		if _, err := s.cache.Vector(sub.SubmissionID, sub.AST); err != nil {
			logger.WarnContext(ctx, "submission skipped, AST not decodable",
				slog.Int64("submission_id", sub.SubmissionID),
				slog.String("error", err.Error()))
			continue
		}
		docs = append(docs, sub)
	}
	return docs, nil
}

// processFrom compares docs[i] with every later document
func (s *SimilarityServiceImpl) processFrom(ctx context.Context, assignmentID int64, docs []*domain.Submission, i int, logger *slog.Logger) batchTaskResult {
	var out batchTaskResult
	from := docs[i]
	cmp := s.newComparator(s.opts.CosineThreshold, s.opts.MinSegmentLines)

	for _, to := range docs[i+1:] {
		if to.StudentID == from.StudentID {
			out.sameStudent++
			comparisonsTotal.WithLabelValues(outcomeSkipped).Inc()
			continue
		}
		comparison, err := s.compareSubmissions(ctx, cmp, from, to)
		if err != nil {
			out.failed++
			logger.ErrorContext(ctx, "comparison failed",
				slog.Int64("from_submission", from.SubmissionID),
				slog.Int64("to_submission", to.SubmissionID),
				slog.String("error", err.Error()))
			continue
		}
		out.pairs = append(out.pairs, pairOutcome{
			result:     newResult(assignmentID, from, to, comparison),
			comparison: comparison,
		})
	}
	return out
}

func toPairResult(p pairOutcome) domain.PairResult {
	return domain.PairResult{
		Result:     *p.result,
		Segments:   toLineSegments(p.comparison.Segments),
		FromRanges: toLineRanges(p.comparison.FromRanges),
		ToRanges:   toLineRanges(p.comparison.ToRanges),
	}
}

func toLineSegments(segs []analyzer.Segment) []domain.LineSegment {
	out := make([]domain.LineSegment, len(segs))
	for i, seg := range segs {
		out[i] = domain.LineSegment{FromStart: seg.FromStart, FromEnd: seg.FromEnd, ToStart: seg.ToStart, ToEnd: seg.ToEnd}
	}
	return out
}

func toLineRanges(ivs []analyzer.Interval) []domain.LineRange {
	out := make([]domain.LineRange, len(ivs))
	for i, iv := range ivs {
		out[i] = domain.LineRange{Start: iv.Start, End: iv.End}
	}
	return out
}

// ComparePair compares two raw documents with the on-demand threshold.
// Nothing is cached or stored.
func (s *SimilarityServiceImpl) ComparePair(ctx context.Context, req *domain.ComparePairRequest) (*domain.PairReport, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	threshold := s.opts.CompareCosineThreshold
	if req.CosineThreshold != nil {
		threshold = *req.CosineThreshold
	}
	minLines := s.opts.MinSegmentLines
	if req.MinSegmentLines != nil {
		minLines = *req.MinSegmentLines
	}

	start := time.Now()
	fromTree, err := analyzer.BuildTree(req.From)
	if err != nil {
		return nil, domain.NewInvalidInputError("invalid from document", err)
	}
	toTree, err := analyzer.BuildTree(req.To)
	if err != nil {
		return nil, domain.NewInvalidInputError("invalid to document", err)
	}

	cmp := s.newComparator(threshold, minLines)
	result := cmp.CompareTrees(fromTree, toTree)
	if result.Passed {
		comparisonsTotal.WithLabelValues(outcomeCompared).Inc()
	} else {
		comparisonsTotal.WithLabelValues(outcomeFiltered).Inc()
	}

	report := &domain.PairReport{
		Cosine:     result.Cosine,
		Passed:     result.Passed,
		Score:      result.Score,
		FromNodes:  fromTree.Size(),
		ToNodes:    toTree.Size(),
		Matches:    len(result.Matches),
		Segments:   toLineSegments(result.Segments),
		FromRanges: toLineRanges(result.FromRanges),
		ToRanges:   toLineRanges(result.ToRanges),
		FromLines:  analyzer.CoveredLines(result.FromRanges),
		ToLines:    analyzer.CoveredLines(result.ToRanges),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if result.Passed {
		distance := result.Distance
		report.Distance = &distance
	}
	return report, nil
}

// Status reports the progress of AnalyzeSubmission for one submission.
// DONE clears the runtime entry; a recorded error or an analysis without
// activity for longer than the staleness window is ERROR.
func (s *SimilarityServiceImpl) Status(ctx context.Context, assignmentID, studentID, submissionID int64) (*domain.AnalysisProgress, error) {
	all, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	progress := &domain.AnalysisProgress{}
	for _, sub := range all {
		if sub.SubmissionID <= submissionID {
			continue
		}
		if sub.HasAST() {
			progress.Total++
		} else {
			progress.Skipped++
		}
	}

	progress.Done, err = s.results.CountByFrom(ctx, assignmentID, submissionID)
	if err != nil {
		return nil, err
	}

	key := RuntimeKey{AssignmentID: assignmentID, StudentID: studentID, SubmissionID: submissionID}
	switch {
	case progress.Total == 0 || progress.Done >= progress.Total:
		s.registry.Clear(key)
		progress.Status = domain.StatusDone
	case hasError(s.registry, key):
		progress.Status = domain.StatusError
	case s.now().Sub(s.registry.LastActivity(key)) > s.opts.StaleAfter:
		progress.Status = domain.StatusError
	default:
		progress.Status = domain.StatusReady
	}
	return progress, nil
}

func hasError(r *RuntimeRegistry, key RuntimeKey) bool {
	_, ok := r.LastErrorAt(key)
	return ok
}
