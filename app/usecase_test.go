package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/internal/storage"
	"github.com/ludo-technologies/astsim/service"
)

const methodDoc = `{"type":"CompilationUnit","children":[
{"type":"MethodDeclaration","line":%[1]d,"children":[
 {"type":"FunctionName","value":"f","line":%[1]d},
 {"type":"ParameterList","line":%[1]d},
 {"type":"ReturnType","value":"int","line":%[1]d},
 {"type":"BlockStmt","line":%[2]d,"children":[
  {"type":"ForStmt","line":%[2]d,"children":[
   {"type":"BinaryExpr","value":"<","line":%[2]d,"children":[{"type":"VariableName","value":"i","line":%[2]d}]}]},
  {"type":"ReturnStmt","line":%[3]d,"children":[{"type":"VariableName","value":"x","line":%[3]d}]}]}]}]}`

func doc(start int) string {
	return fmt.Sprintf(methodDoc, start, start+1, start+2)
}

type testEnv struct {
	store   *storage.Store
	service *service.SimilarityServiceImpl
	compare *CompareUseCase
	batch   *BatchUseCase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	store, err := storage.NewStore(db)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
		db.Close()
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.NewSimilarityService(store, store, nil, nil, service.DefaultSimilarityOptions(), logger)
	require.NoError(t, err)

	formatter := service.NewOutputFormatter(service.FormatterOptions{})
	writer := service.NewFileOutputWriter(io.Discard)
	return &testEnv{
		store:   store,
		service: svc,
		compare: NewCompareUseCase(svc, formatter, writer),
		batch:   NewBatchUseCase(svc, store, service.NewFileReader(), formatter, writer, logger),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func submissionFile(sub, student, assignment int64, ast string) string {
	return fmt.Sprintf(`{"submissionId":%d,"studentId":%d,"assignmentId":%d,"ast":%s}`, sub, student, assignment, ast)
}

func TestCompareUseCase_Execute(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	fromPath := filepath.Join(dir, "from.json")
	toPath := filepath.Join(dir, "to.json")
	writeFile(t, fromPath, doc(1))
	writeFile(t, toPath, submissionFile(2, 20, 1, doc(10)))

	var out bytes.Buffer
	report, err := env.compare.Execute(context.Background(), CompareRequest{
		FromPath:     fromPath,
		ToPath:       toPath,
		OutputFormat: domain.OutputFormatJSON,
		OutputWriter: &out,
	})
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Equal(t, 1.0, report.Score)
	assert.Equal(t, []domain.LineRange{{Start: 10, End: 12}}, report.ToRanges)

	var decoded domain.PairReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, report.Score, decoded.Score)
}

func TestCompareUseCase_Errors(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	writeFile(t, good, doc(1))

	_, err := env.compare.Execute(context.Background(), CompareRequest{FromPath: good, OutputWriter: io.Discard})
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = env.compare.Execute(context.Background(), CompareRequest{FromPath: good, ToPath: filepath.Join(dir, "missing.json"), OutputWriter: io.Discard})
	assert.Equal(t, domain.ErrCodeFileNotFound, domain.ErrorCode(err))
}

func TestExtractDocument(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"plain document", `{"type":"CompilationUnit"}`, `{"type":"CompilationUnit"}`},
		{"envelope", `{"submissionId":1,"ast":{"type":"X"}}`, `{"type":"X"}`},
		{"string document", `"{\"type\":\"X\"}"`, `"{\"type\":\"X\"}"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractDocument([]byte(tt.data), tt.name)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}

	_, err := ExtractDocument([]byte("  "), "blank")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = ExtractDocument([]byte("{oops"), "broken")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestBatchUseCase_Execute(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a", "1.json"), submissionFile(1, 10, 5, doc(1)))
	writeFile(t, filepath.Join(dir, "b", "2.json"), submissionFile(2, 20, 5, doc(4)))
	writeFile(t, filepath.Join(dir, "b", "3.json"), submissionFile(3, 30, 5, `{"type":"CompilationUnit","children":[{"type":"StringLiteral","line":1}]}`))
	writeFile(t, filepath.Join(dir, "broken.json"), `{"submissionId":`)

	var out bytes.Buffer
	summary, err := env.batch.Execute(context.Background(), BatchRequest{
		Paths:           []string{dir},
		Recursive:       true,
		IncludePatterns: []string{"**/*.json"},
		GroupID:         "run-1",
		OutputFormat:    domain.OutputFormatCSV,
		OutputWriter:    &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", summary.GroupID)
	assert.Equal(t, int64(5), summary.AssignmentID)
	assert.Equal(t, 3, summary.Submissions)
	assert.Equal(t, 3, summary.Pairs)
	assert.Equal(t, 1, summary.Compared)

	stored, err := env.store.ListByAssignment(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
	assert.Contains(t, out.String(), "result_id")
}

func TestBatchUseCase_AssignmentSelection(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "1.json"), submissionFile(1, 10, 5, doc(1)))
	writeFile(t, filepath.Join(dir, "2.json"), submissionFile(2, 20, 6, doc(1)))

	req := BatchRequest{Paths: []string{dir}, Recursive: true, OutputWriter: io.Discard, OutputFormat: domain.OutputFormatText}
	_, err := env.batch.Execute(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[5 6]")

	req.AssignmentID = 6
	summary, err := env.batch.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Submissions)
	assert.NotEmpty(t, summary.GroupID)

	req.AssignmentID = 7
	_, err = env.batch.Execute(context.Background(), req)
	assert.True(t, errors.Is(err, domain.ErrAssignmentNotFound))
}
