package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/internal/storage"
)

// sumDoc is a five-line summing method starting at line start. Two copies
// differ only in identifiers and position.
func sumDoc(start int, fn string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"type":"CompilationUnit","children":[
{"type":"MethodDeclaration","line":%[1]d,"children":[
 {"type":"FunctionName","value":%[6]q,"line":%[1]d},
 {"type":"ParameterList","line":%[1]d,"children":[{"type":"Parameter","line":%[1]d,"children":[
  {"type":"PrimitiveType","value":"int","line":%[1]d},{"type":"VariableName","value":"n","line":%[1]d}]}]},
 {"type":"ReturnType","value":"int","line":%[1]d},
 {"type":"BlockStmt","line":%[2]d,"children":[
  {"type":"VariableDeclaration","line":%[2]d,"children":[
   {"type":"PrimitiveType","value":"int","line":%[2]d},{"type":"VariableName","value":"total","line":%[2]d},
   {"type":"IntegerLiteral","value":"0","line":%[2]d}]},
  {"type":"ForStmt","line":%[3]d,"children":[
   {"type":"BinaryExpr","value":"<","line":%[3]d,"children":[
    {"type":"VariableName","value":"i","line":%[3]d},{"type":"VariableName","value":"n","line":%[3]d}]},
   {"type":"ExpressionStmt","line":%[4]d,"children":[{"type":"AssignExpr","value":"+=","line":%[4]d,"children":[
    {"type":"VariableName","value":"total","line":%[4]d},{"type":"VariableName","value":"i","line":%[4]d}]}]}]},
  {"type":"ReturnStmt","line":%[5]d,"children":[{"type":"VariableName","value":"total","line":%[5]d}]}]}]}]}`,
		start, start+1, start+2, start+3, start+4, fn))
}

// literalDoc shares almost no labels with sumDoc
func literalDoc() json.RawMessage {
	return json.RawMessage(`{"type":"CompilationUnit","children":[
{"type":"StringLiteral","value":"a","line":1},
{"type":"StringLiteral","value":"b","line":2},
{"type":"StringLiteral","value":"c","line":3}]}`)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	store, err := storage.NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, db.Close())
	})
	return store
}

func putSubmission(t *testing.T, store *storage.Store, assignmentID, studentID, submissionID int64, ast json.RawMessage) {
	t.Helper()
	require.NoError(t, store.PutSubmission(context.Background(), &domain.Submission{
		SubmissionID: submissionID,
		StudentID:    studentID,
		AssignmentID: assignmentID,
		AST:          ast,
		UpdatedAt:    time.Now(),
	}))
}

// recordingPublisher keeps every event it receives
type recordingPublisher struct {
	mu        sync.Mutex
	progress  []int
	completed []domain.BatchMessage
	err       error
}

func (p *recordingPublisher) PublishProgress(_ context.Context, _ string, processed, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = append(p.progress, processed)
	return p.err
}

func (p *recordingPublisher) PublishCompleted(_ context.Context, msg domain.BatchMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, msg)
	return p.err
}

func newTestService(t *testing.T, store *storage.Store, publisher domain.EventPublisher, mutate func(*SimilarityOptions)) *SimilarityServiceImpl {
	t.Helper()
	opts := DefaultSimilarityOptions()
	if mutate != nil {
		mutate(&opts)
	}
	svc, err := NewSimilarityService(store, store, publisher, nil, opts, discardLogger())
	require.NoError(t, err)
	return svc
}
