package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/internal/version"
	"github.com/ludo-technologies/astsim/service"
)

var validate = validator.New()

// ErrorResponse is the body of every failed request outside the analyze envelope
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// PutSubmissionRequest stores or replaces the document of a submission
type PutSubmissionRequest struct {
	StudentID    int64           `json:"studentId" validate:"required,gt=0"`
	AssignmentID int64           `json:"assignmentId" validate:"required,gt=0"`
	AST          json.RawMessage `json:"ast"`
}

// SubmissionIDsRequest names the start submissions of an assignment
type SubmissionIDsRequest struct {
	SubmissionIDs []int64 `json:"submissionIds" validate:"required,min=1"`
}

// BatchRequest announces a group of parsed submissions. GroupID is generated
// when absent.
type BatchRequest struct {
	GroupID       string  `json:"groupId"`
	AssignmentID  int64   `json:"assignmentId" validate:"required,gt=0"`
	SubmissionIDs []int64 `json:"submissionIds" validate:"required,min=1,dive,gt=0"`
	TotalFiles    int     `json:"totalFiles" validate:"gte=0"`
}

// AnalyzeMessage is the inner status of an analyze envelope
type AnalyzeMessage struct {
	Status  domain.AnalysisStatus `json:"status"`
	Code    string                `json:"code,omitempty"`
	Message string                `json:"message,omitempty"`
}

// AnalyzeEnvelope is the response of POST /v1/similarity/analyze. The HTTP
// status is always 200; failures are reported in Message.
type AnalyzeEnvelope struct {
	Status  int            `json:"status"`
	Success bool           `json:"success"`
	Message AnalyzeMessage `json:"message"`
}

// ResultLinesResponse is a stored result with its merged code lines
type ResultLinesResponse struct {
	Result    *domain.SimilarityResult `json:"result"`
	CodeLines []domain.CodeLine        `json:"codeLines"`
}

// codeInternal is reported by the analyze envelope for failures without a domain code
const codeInternal = "INTERNAL_SERVER_ERROR"

// Handlers contains the HTTP handlers of the similarity API
type Handlers struct {
	similarity  *service.SimilarityServiceImpl
	batch       *service.BatchService
	runner      *service.TaskRunner
	submissions domain.SubmissionRepository
	results     domain.ResultRepository
	hub         *service.EventHub
	heartbeat   time.Duration
}

// Dependencies wires the services behind the handlers
type Dependencies struct {
	Similarity  *service.SimilarityServiceImpl
	Batch       *service.BatchService
	Runner      *service.TaskRunner
	Submissions domain.SubmissionRepository
	Results     domain.ResultRepository
	Hub         *service.EventHub
}

// NewHandlers creates handlers for deps
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		similarity:  deps.Similarity,
		batch:       deps.Batch,
		runner:      deps.Runner,
		submissions: deps.Submissions,
		results:     deps.Results,
		hub:         deps.Hub,
		heartbeat:   15 * time.Second,
	}
}

// getOrCreateRequestID returns the request id set by RequestID, creating one
// for handlers mounted without the middleware
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	requestID := c.GetHeader(HeaderRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header(HeaderRequestID, requestID)
	c.Set(requestIDKey, requestID)
	return requestID
}

func handlerLogger(c *gin.Context, handler string) *slog.Logger {
	return slog.With("request_id", getOrCreateRequestID(c), "handler", handler)
}

// bindJSON decodes the body into req and validates its validate tags
func bindJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return err
	}
	return validate.Struct(req)
}

// statusForError maps domain error codes to HTTP statuses
func statusForError(err error) int {
	switch domain.ErrorCode(err) {
	case domain.ErrCodeInvalidInput,
		domain.ErrCodeSameSubmissionComparison,
		domain.ErrCodeSameStudentComparison,
		domain.ErrCodeStudentSubmissionMismatch,
		domain.ErrCodeUnsupportedFormat:
		return http.StatusBadRequest
	case domain.ErrCodeSubmissionNotFound,
		domain.ErrCodeAssignmentNotFound,
		domain.ErrCodeResultNotFound,
		domain.ErrCodeFileNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusForError(err)
	code := domain.ErrorCode(err)
	if code == "" {
		code = codeInternal
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
	} else {
		logger.Warn("request rejected", "error", err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func invalidRequest(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Invalid request", "error", err)
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: err.Error(),
		Code:  domain.ErrCodeInvalidInput,
	})
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewInvalidInputError(name+" must be a positive integer", nil)
	}
	return id, nil
}

func queryID(c *gin.Context, name string) (int64, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return 0, domain.NewInvalidInputError(name+" is required", nil)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.NewInvalidInputError(name+" must be an integer", err)
	}
	return id, nil
}

// HandleHealth handles GET /health
func (h *Handlers) HandleHealth(c *gin.Context) {
	build := version.Get()
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": build.Version,
		"commit":  build.Commit,
	})
}

// HandlePutSubmission handles PUT /v1/submissions/:submissionId.
//
// Stores the submission and drops any cached tree built from its previous
// document.
func (h *Handlers) HandlePutSubmission(c *gin.Context) {
	logger := handlerLogger(c, "HandlePutSubmission")

	submissionID, err := pathID(c, "submissionId")
	if err != nil {
		invalidRequest(c, logger, err)
		return
	}
	var req PutSubmissionRequest
	if err := bindJSON(c, &req); err != nil {
		invalidRequest(c, logger, err)
		return
	}

	sub := &domain.Submission{
		SubmissionID: submissionID,
		StudentID:    req.StudentID,
		AssignmentID: req.AssignmentID,
		AST:          req.AST,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := h.submissions.PutSubmission(c.Request.Context(), sub); err != nil {
		writeError(c, logger, err)
		return
	}
	h.similarity.Cache().Forget(submissionID)

	logger.Info("Submission stored",
		"submission_id", submissionID,
		"assignment_id", req.AssignmentID,
		"has_ast", sub.HasAST())
	c.JSON(http.StatusOK, gin.H{
		"submissionId": sub.SubmissionID,
		"studentId":    sub.StudentID,
		"assignmentId": sub.AssignmentID,
		"hasAst":       sub.HasAST(),
		"updatedAt":    sub.UpdatedAt,
	})
}

// HandleAnalyze handles POST /v1/similarity/analyze?assignmentId&studentId&submissionId.
//
// Runs the analysis synchronously and reports the outcome in an envelope
// whose HTTP status is always 200.
func (h *Handlers) HandleAnalyze(c *gin.Context) {
	logger := handlerLogger(c, "HandleAnalyze")

	var ids [3]int64
	for i, name := range []string{"assignmentId", "studentId", "submissionId"} {
		id, err := queryID(c, name)
		if err != nil {
			invalidRequest(c, logger, err)
			return
		}
		ids[i] = id
	}

	err := h.similarity.AnalyzeSubmission(c.Request.Context(), ids[0], ids[1], ids[2])
	if err != nil {
		code := domain.ErrorCode(err)
		message := err.Error()
		var de domain.DomainError
		if errors.As(err, &de) {
			message = de.Message
		} else {
			code = codeInternal
		}
		logger.Warn("Analysis failed", "error", err, "code", code)
		c.JSON(http.StatusOK, AnalyzeEnvelope{
			Status:  http.StatusOK,
			Success: true,
			Message: AnalyzeMessage{Status: domain.StatusError, Code: code, Message: message},
		})
		return
	}

	c.JSON(http.StatusOK, AnalyzeEnvelope{
		Status:  http.StatusOK,
		Success: true,
		Message: AnalyzeMessage{Status: domain.StatusDone},
	})
}

// HandleStart handles POST /v1/similarity/assignments/:assignmentId/start
func (h *Handlers) HandleStart(c *gin.Context) {
	logger := handlerLogger(c, "HandleStart")

	assignmentID, req, ok := h.bindAssignmentRequest(c, logger)
	if !ok {
		return
	}
	resp, err := h.batch.Start(c.Request.Context(), assignmentID, req.SubmissionIDs)
	if err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Analyses scheduled",
		"assignment_id", assignmentID,
		"started", resp.StartedCount)
	c.JSON(http.StatusAccepted, resp)
}

// HandleStatus handles POST /v1/similarity/assignments/:assignmentId/status
func (h *Handlers) HandleStatus(c *gin.Context) {
	logger := handlerLogger(c, "HandleStatus")

	assignmentID, req, ok := h.bindAssignmentRequest(c, logger)
	if !ok {
		return
	}
	resp, err := h.batch.Status(c.Request.Context(), assignmentID, req.SubmissionIDs)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) bindAssignmentRequest(c *gin.Context, logger *slog.Logger) (int64, SubmissionIDsRequest, bool) {
	var req SubmissionIDsRequest
	assignmentID, err := pathID(c, "assignmentId")
	if err != nil {
		invalidRequest(c, logger, err)
		return 0, req, false
	}
	if err := bindJSON(c, &req); err != nil {
		invalidRequest(c, logger, err)
		return 0, req, false
	}
	return assignmentID, req, true
}

// HandleListResults handles GET /v1/similarity/assignments/:assignmentId/results
func (h *Handlers) HandleListResults(c *gin.Context) {
	logger := handlerLogger(c, "HandleListResults")

	assignmentID, err := pathID(c, "assignmentId")
	if err != nil {
		invalidRequest(c, logger, err)
		return
	}
	results, err := h.results.ListResults(c.Request.Context(), assignmentID)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if results == nil {
		results = []*domain.SimilarityResult{}
	}
	c.JSON(http.StatusOK, gin.H{
		"assignmentId": assignmentID,
		"count":        len(results),
		"results":      results,
	})
}

// HandleResultLines handles GET /v1/similarity/results/:resultId/lines
func (h *Handlers) HandleResultLines(c *gin.Context) {
	logger := handlerLogger(c, "HandleResultLines")

	resultID, err := pathID(c, "resultId")
	if err != nil {
		invalidRequest(c, logger, err)
		return
	}
	ctx := c.Request.Context()
	result, err := h.results.GetResult(ctx, resultID)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	lines, err := h.results.ListCodeLines(ctx, resultID)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if lines == nil {
		lines = []domain.CodeLine{}
	}
	c.JSON(http.StatusOK, ResultLinesResponse{Result: result, CodeLines: lines})
}

// HandleBatch handles POST /v1/similarity/batch.
//
// Accepts a PARSING_COMPLETED message and runs it asynchronously. Progress
// is streamed on /v1/similarity/events/:groupId.
func (h *Handlers) HandleBatch(c *gin.Context) {
	logger := handlerLogger(c, "HandleBatch")

	var req BatchRequest
	if err := bindJSON(c, &req); err != nil {
		invalidRequest(c, logger, err)
		return
	}
	if req.GroupID == "" {
		req.GroupID = uuid.NewString()
	}
	msg := domain.BatchMessage{
		MessageType:   domain.MessageParsingCompleted,
		GroupID:       req.GroupID,
		AssignmentID:  req.AssignmentID,
		SubmissionIDs: req.SubmissionIDs,
		TotalFiles:    req.TotalFiles,
		Timestamp:     time.Now().UTC(),
	}
	if err := h.runner.RunBatch(c.Request.Context(), msg); err != nil {
		writeError(c, logger, err)
		return
	}

	logger.Info("Batch accepted",
		"group_id", msg.GroupID,
		"assignment_id", msg.AssignmentID,
		"submissions", len(msg.SubmissionIDs))
	c.JSON(http.StatusAccepted, gin.H{
		"accepted":  true,
		"groupId":   msg.GroupID,
		"eventsUrl": "/v1/similarity/events/" + msg.GroupID,
	})
}

// HandleCompare handles POST /v1/similarity/compare
func (h *Handlers) HandleCompare(c *gin.Context) {
	logger := handlerLogger(c, "HandleCompare")

	var req domain.ComparePairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, logger, err)
		return
	}
	report, err := h.similarity.ComparePair(c.Request.Context(), &req)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleEvents handles GET /v1/similarity/events/:groupId.
//
// Streams the events of a batch group as server-sent events: "connected"
// first, then "progress" and finally "completed", after which the stream
// ends. Events published before the client subscribed are not replayed.
func (h *Handlers) HandleEvents(c *gin.Context) {
	logger := handlerLogger(c, "HandleEvents")

	groupID := c.Param("groupId")
	events, cancel := h.hub.Subscribe(groupID)
	defer cancel()

	setSSEHeaders(c.Writer)
	c.SSEvent(service.EventConnected, service.Event{
		Type:    service.EventConnected,
		GroupID: groupID,
		At:      time.Now().UTC(),
	})
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Event stream closed by client", "group_id", groupID)
			return
		case <-heartbeat.C:
			if _, err := c.Writer.WriteString(": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.SSEvent(ev.Type, ev)
			c.Writer.Flush()
			if ev.Type == service.EventCompleted {
				return
			}
		}
	}
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
