package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Submission is one student's parsed program for an assignment. AST holds the
// labeled-tree document exactly as it was received and may be absent.
type Submission struct {
	SubmissionID int64           `json:"submissionId" yaml:"submission_id"`
	StudentID    int64           `json:"studentId" yaml:"student_id"`
	AssignmentID int64           `json:"assignmentId" yaml:"assignment_id"`
	AST          json.RawMessage `json:"ast,omitempty" yaml:"-"`
	UpdatedAt    time.Time       `json:"updatedAt" yaml:"updated_at"`
}

// HasAST reports whether the submission carries a non-null document
func (s *Submission) HasAST() bool {
	trimmed := bytes.TrimSpace(s.AST)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Validate checks the identifiers of a submission
func (s *Submission) Validate() error {
	if s.SubmissionID <= 0 {
		return NewValidationError("submissionId must be positive")
	}
	if s.StudentID <= 0 {
		return NewValidationError("studentId must be positive")
	}
	if s.AssignmentID <= 0 {
		return NewValidationError("assignmentId must be positive")
	}
	return nil
}

// SimilarityResult is the stored score of one ordered submission pair.
// (AssignmentID, FromSubmissionID, ToSubmissionID) is unique.
type SimilarityResult struct {
	ID               int64     `json:"resultId" yaml:"result_id" csv:"result_id"`
	AssignmentID     int64     `json:"assignmentId" yaml:"assignment_id" csv:"assignment_id"`
	FromSubmissionID int64     `json:"fromSubmissionId" yaml:"from_submission_id" csv:"from_submission_id"`
	ToSubmissionID   int64     `json:"toSubmissionId" yaml:"to_submission_id" csv:"to_submission_id"`
	FromStudentID    int64     `json:"fromStudentId" yaml:"from_student_id" csv:"from_student_id"`
	ToStudentID      int64     `json:"toStudentId" yaml:"to_student_id" csv:"to_student_id"`
	Score            float64   `json:"score" yaml:"score" csv:"score"`
	Cosine           float64   `json:"cosine" yaml:"cosine" csv:"cosine"`
	CreatedAt        time.Time `json:"createdAt" yaml:"created_at" csv:"-"`
}

// PairKey identifies a result independent of its id
func (r *SimilarityResult) PairKey() string {
	return PairKey(r.AssignmentID, r.FromSubmissionID, r.ToSubmissionID)
}

// PairKey formats the unique key of an ordered submission pair
func PairKey(assignmentID, fromSubmission, toSubmission int64) string {
	return fmt.Sprintf("%d:%d:%d", assignmentID, fromSubmission, toSubmission)
}

// CodeLine is one merged line range of one student inside a result
type CodeLine struct {
	ID        int64 `json:"codelineId" yaml:"codeline_id"`
	ResultID  int64 `json:"resultId" yaml:"result_id"`
	StudentID int64 `json:"studentId" yaml:"student_id"`
	StartLine int   `json:"startLine" yaml:"start_line"`
	EndLine   int   `json:"endLine" yaml:"end_line"`
}

// LineRange is an inclusive source line range
type LineRange struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

func (r LineRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// LineSegment pairs a line range of the "from" submission with the
// corresponding range of the "to" submission
type LineSegment struct {
	FromStart int `json:"fromStart" yaml:"from_start"`
	FromEnd   int `json:"fromEnd" yaml:"from_end"`
	ToStart   int `json:"toStart" yaml:"to_start"`
	ToEnd     int `json:"toEnd" yaml:"to_end"`
}

// MessageType names the lifecycle messages exchanged with the upload pipeline
type MessageType string

const (
	MessageFileUploaded        MessageType = "FILE_UPLOADED"
	MessageParsingCompleted    MessageType = "PARSING_COMPLETED"
	MessageSimilarityCompleted MessageType = "SIMILARITY_COMPLETED"
)

// BatchMessage announces a group of parsed submissions ready for analysis,
// and is echoed back with SIMILARITY_COMPLETED when the batch finishes
type BatchMessage struct {
	MessageType   MessageType `json:"messageType" yaml:"message_type"`
	GroupID       string      `json:"groupId" yaml:"group_id" binding:"required"`
	AssignmentID  int64       `json:"assignmentId" yaml:"assignment_id" binding:"required,gt=0"`
	SubmissionIDs []int64     `json:"submissionIds" yaml:"submission_ids" binding:"required,min=1,dive,gt=0"`
	TotalFiles    int         `json:"totalFiles" yaml:"total_files"`
	Timestamp     time.Time   `json:"timestamp" yaml:"timestamp"`
}

// Validate checks that the message names an assignment and submissions
func (m *BatchMessage) Validate() error {
	if m.GroupID == "" {
		return NewValidationError("groupId is required")
	}
	if m.AssignmentID <= 0 {
		return NewValidationError("assignmentId must be positive")
	}
	if len(m.SubmissionIDs) == 0 {
		return NewValidationError("submissionIds cannot be empty")
	}
	for _, id := range m.SubmissionIDs {
		if id <= 0 {
			return NewValidationError(fmt.Sprintf("invalid submission id %d", id))
		}
	}
	return nil
}

// Completed returns the SIMILARITY_COMPLETED echo of m
func (m BatchMessage) Completed(at time.Time) BatchMessage {
	done := m
	done.MessageType = MessageSimilarityCompleted
	done.SubmissionIDs = append([]int64(nil), m.SubmissionIDs...)
	done.Timestamp = at
	return done
}

// AnalysisStatus is the polled state of an analysis
type AnalysisStatus string

const (
	StatusReady AnalysisStatus = "READY"
	StatusDone  AnalysisStatus = "DONE"
	StatusError AnalysisStatus = "ERROR"
)

// AnalysisProgress reports how far the analysis of one submission has come.
// Total counts later submissions with an AST, Done the stored results and
// Skipped the later submissions without an AST.
type AnalysisProgress struct {
	Status  AnalysisStatus `json:"status" yaml:"status"`
	Total   int            `json:"total" yaml:"total"`
	Done    int            `json:"done" yaml:"done"`
	Skipped int            `json:"skipped" yaml:"skipped"`
}

// SubmissionStatus is the progress of one start submission within a status response
type SubmissionStatus struct {
	SubmissionID int64          `json:"submissionId" yaml:"submission_id"`
	Status       AnalysisStatus `json:"status" yaml:"status"`
	Total        int            `json:"total" yaml:"total"`
	Done         int            `json:"done" yaml:"done"`
	Skipped      int            `json:"skipped" yaml:"skipped"`
}

// StartResponse reports which submissions had analysis scheduled
type StartResponse struct {
	Accepted             bool    `json:"accepted" yaml:"accepted"`
	RequestedCount       int     `json:"requestedCount" yaml:"requested_count"`
	StartedCount         int     `json:"startedCount" yaml:"started_count"`
	StartedSubmissionIDs []int64 `json:"startedSubmissionIds" yaml:"started_submission_ids"`
}

// StatusResponse aggregates the progress of several start submissions
type StatusResponse struct {
	Status         AnalysisStatus     `json:"status" yaml:"status"`
	Total          int                `json:"total" yaml:"total"`
	Done           int                `json:"done" yaml:"done"`
	Skipped        int                `json:"skipped" yaml:"skipped"`
	PerSubmissions []SubmissionStatus `json:"perSubmissions" yaml:"per_submissions"`
}

// PairReport is the outcome of comparing two documents directly
type PairReport struct {
	Cosine     float64       `json:"cosineSimilarity" yaml:"cosine_similarity"`
	Passed     bool          `json:"passedFilter" yaml:"passed_filter"`
	Distance   *int          `json:"treeEditDistance,omitempty" yaml:"tree_edit_distance,omitempty"`
	Score      float64       `json:"normalizedSimilarity" yaml:"normalized_similarity"`
	FromNodes  int           `json:"fromNodes" yaml:"from_nodes"`
	ToNodes    int           `json:"toNodes" yaml:"to_nodes"`
	Matches    int           `json:"matches" yaml:"matches"`
	Segments   []LineSegment `json:"segments" yaml:"segments"`
	FromRanges []LineRange   `json:"fromRanges" yaml:"from_ranges"`
	ToRanges   []LineRange   `json:"toRanges" yaml:"to_ranges"`
	FromLines  int           `json:"fromCoveredLines" yaml:"from_covered_lines"`
	ToLines    int           `json:"toCoveredLines" yaml:"to_covered_lines"`
	DurationMs int64         `json:"durationMs" yaml:"duration_ms"`
}

// PairResult is a scored pair together with its merged per-student ranges
type PairResult struct {
	Result     SimilarityResult `json:"result" yaml:"result"`
	Segments   []LineSegment    `json:"segments,omitempty" yaml:"segments,omitempty"`
	FromRanges []LineRange      `json:"fromRanges" yaml:"from_ranges"`
	ToRanges   []LineRange      `json:"toRanges" yaml:"to_ranges"`
}

// HasRanges reports whether any segment survived for the pair
func (p *PairResult) HasRanges() bool {
	return len(p.FromRanges) > 0 || len(p.ToRanges) > 0
}

// BatchSummary describes a finished batch analysis
type BatchSummary struct {
	GroupID            string       `json:"groupId" yaml:"group_id"`
	AssignmentID       int64        `json:"assignmentId" yaml:"assignment_id"`
	Submissions        int          `json:"submissions" yaml:"submissions"`
	Pairs              int          `json:"pairs" yaml:"pairs"`
	Compared           int          `json:"compared" yaml:"compared"`
	SkippedSameStudent int          `json:"skippedSameStudent" yaml:"skipped_same_student"`
	CodeLines          int          `json:"codeLines" yaml:"code_lines"`
	DurationMs         int64        `json:"durationMs" yaml:"duration_ms"`
	Results            []PairResult `json:"results" yaml:"results"`
}

// ComparePairRequest asks for an on-demand comparison of two documents
type ComparePairRequest struct {
	From            json.RawMessage `json:"from" binding:"required"`
	To              json.RawMessage `json:"to" binding:"required"`
	CosineThreshold *float64        `json:"cosineThreshold,omitempty" binding:"omitempty,gte=0,lte=1"`
	MinSegmentLines *int            `json:"minSegmentLines,omitempty" binding:"omitempty,gte=1"`
}

// Validate checks that both documents are present
func (r *ComparePairRequest) Validate() error {
	if len(bytes.TrimSpace(r.From)) == 0 {
		return NewValidationError("from document is required")
	}
	if len(bytes.TrimSpace(r.To)) == 0 {
		return NewValidationError("to document is required")
	}
	if r.CosineThreshold != nil && (*r.CosineThreshold < 0 || *r.CosineThreshold > 1) {
		return NewValidationError("cosineThreshold must be between 0.0 and 1.0")
	}
	if r.MinSegmentLines != nil && *r.MinSegmentLines < 1 {
		return NewValidationError("minSegmentLines must be >= 1")
	}
	return nil
}

// SubmissionRepository stores submissions and their documents
type SubmissionRepository interface {
	// PutSubmission inserts or replaces a submission
	PutSubmission(ctx context.Context, s *Submission) error

	// GetSubmission returns ErrSubmissionNotFound when the id is unknown
	GetSubmission(ctx context.Context, submissionID int64) (*Submission, error)

	// ListByAssignment returns the submissions of an assignment ordered by id
	ListByAssignment(ctx context.Context, assignmentID int64) ([]*Submission, error)
}

// ResultRepository stores similarity results and their code lines
type ResultRepository interface {
	// FindResult returns ErrResultNotFound when the pair has no result
	FindResult(ctx context.Context, assignmentID, fromSubmission, toSubmission int64) (*SimilarityResult, error)

	// GetResult returns ErrResultNotFound when the id is unknown
	GetResult(ctx context.Context, resultID int64) (*SimilarityResult, error)

	// SaveResults upserts results by pair key, assigning ids in place.
	// An existing row for the same pair keeps its id and is updated.
	SaveResults(ctx context.Context, results []*SimilarityResult) error

	// CountByFrom counts the stored results whose "from" side is the submission
	CountByFrom(ctx context.Context, assignmentID, fromSubmission int64) (int, error)

	// ListResults returns every result of an assignment ordered by id
	ListResults(ctx context.Context, assignmentID int64) ([]*SimilarityResult, error)

	// ReplaceCodeLines deletes the code lines of resultIDs and stores lines
	ReplaceCodeLines(ctx context.Context, resultIDs []int64, lines []CodeLine) error

	// ListCodeLines returns the code lines of a result
	ListCodeLines(ctx context.Context, resultID int64) ([]CodeLine, error)
}

// EventPublisher announces batch progress and completion
type EventPublisher interface {
	PublishProgress(ctx context.Context, groupID string, processed, total int) error
	PublishCompleted(ctx context.Context, msg BatchMessage) error
}

// SimilarityService defines the analysis operations exposed to the outer layers
type SimilarityService interface {
	// AnalyzeSubmission compares a submission with every later submission of its assignment
	AnalyzeSubmission(ctx context.Context, assignmentID, studentID, submissionID int64) error

	// AnalyzeBatch compares every pair of the listed submissions
	AnalyzeBatch(ctx context.Context, msg BatchMessage) (*BatchSummary, error)

	// ComparePair compares two raw documents without persisting anything
	ComparePair(ctx context.Context, req *ComparePairRequest) (*PairReport, error)

	// Status reports the progress of AnalyzeSubmission for one submission
	Status(ctx context.Context, assignmentID, studentID, submissionID int64) (*AnalysisProgress, error)
}

// SimilarityOutputFormatter renders analysis results
type SimilarityOutputFormatter interface {
	FormatPairReport(report *PairReport, format OutputFormat, writer io.Writer) error
	FormatBatchSummary(summary *BatchSummary, format OutputFormat, writer io.Writer) error
}

// SubmissionFile is the on-disk form of a submission consumed by batch runs
type SubmissionFile struct {
	SubmissionID int64           `json:"submissionId"`
	StudentID    int64           `json:"studentId"`
	AssignmentID int64           `json:"assignmentId"`
	AST          json.RawMessage `json:"ast"`
}

// Submission converts the file to a submission updated at updatedAt
func (f *SubmissionFile) Submission(updatedAt time.Time) Submission {
	return Submission{
		SubmissionID: f.SubmissionID,
		StudentID:    f.StudentID,
		AssignmentID: f.AssignmentID,
		AST:          f.AST,
		UpdatedAt:    updatedAt,
	}
}

// SubmissionFileReader finds and decodes submission files
type SubmissionFileReader interface {
	CollectSubmissionFiles(paths []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error)
	ReadSubmissionFile(path string) (*SubmissionFile, error)
}
