package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ludo-technologies/astsim/domain"
	"github.com/ludo-technologies/astsim/internal/config"
	"github.com/ludo-technologies/astsim/internal/version"
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

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs a fresh command tree so flag values never leak between tests
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := &cobra.Command{Use: "astsim", SilenceUsage: true, SilenceErrors: true}
	root.PersistentFlags().BoolP("verbose", "v", false, "")
	root.PersistentFlags().StringP("config", "c", "", "")
	root.AddCommand(NewCompareCmd(), NewBatchCmd(), NewServeCmd(), NewInitCmd(), NewVersionCmd())

	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Short(), strings.TrimSpace(out))

	out, err = execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Short())

	out, err = execute(t, "version", "--json")
	require.NoError(t, err)
	var build version.Build
	require.NoError(t, json.Unmarshal([]byte(out), &build))
	assert.Equal(t, version.Get(), build)
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", config.ConfigFileName)

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created")

	cfg, err := config.Resolve("", filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Analysis, cfg.Analysis)

	_, err = execute(t, "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "init", "--config", path, "--force")
	assert.NoError(t, err)
}

func TestCompareCommand(t *testing.T) {
	dir := t.TempDir()
	from := writeFile(t, filepath.Join(dir, "a.json"), doc(1))
	to := writeFile(t, filepath.Join(dir, "b.json"), doc(11))

	out, err := execute(t, "compare", "-f", "json", from, to)
	require.NoError(t, err)

	var report domain.PairReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Passed)
	assert.Equal(t, 1.0, report.Score)
	assert.Equal(t, []domain.LineRange{{Start: 1, End: 3}}, report.FromRanges)
	assert.Equal(t, []domain.LineRange{{Start: 11, End: 13}}, report.ToRanges)
}

func TestCompareCommandErrors(t *testing.T) {
	dir := t.TempDir()
	from := writeFile(t, filepath.Join(dir, "a.json"), doc(1))

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing argument", args: []string{"compare", from}},
		{name: "missing file", args: []string{"compare", from, filepath.Join(dir, "none.json")}},
		{name: "unknown format", args: []string{"compare", "-f", "xml", from, from}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "1.json"),
		fmt.Sprintf(`{"submissionId":1,"studentId":10,"assignmentId":7,"ast":%s}`, doc(1)))
	writeFile(t, filepath.Join(dir, "2.json"),
		fmt.Sprintf(`{"submissionId":2,"studentId":20,"assignmentId":7,"ast":%s}`, doc(5)))

	out, err := execute(t, "batch", "--in-memory", "-f", "json", "--show-segments", dir)
	require.NoError(t, err)

	var summary domain.BatchSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, int64(7), summary.AssignmentID)
	assert.Equal(t, 2, summary.Submissions)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, 1.0, summary.Results[0].Result.Score)
	assert.NotEmpty(t, summary.Results[0].Segments)
}

func TestBatchCommandWritesReportFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "in", "1.json"),
		fmt.Sprintf(`{"submissionId":1,"studentId":10,"assignmentId":7,"ast":%s}`, doc(1)))
	writeFile(t, filepath.Join(dir, "in", "2.json"),
		fmt.Sprintf(`{"submissionId":2,"studentId":20,"assignmentId":7,"ast":%s}`, doc(1)))
	report := filepath.Join(dir, "report.csv")

	out, err := execute(t, "batch", "--in-memory", "-o", report, filepath.Join(dir, "in"))
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestCompareCommandExplainsErrors(t *testing.T) {
	dir := t.TempDir()
	from := writeFile(t, filepath.Join(dir, "a.json"), doc(1))

	root := &cobra.Command{Use: "astsim"}
	root.PersistentFlags().StringP("config", "c", "", "")
	root.AddCommand(NewCompareCmd())
	var errOut bytes.Buffer
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&errOut)
	root.SetArgs([]string{"compare", from, filepath.Join(dir, "none.json")})

	require.Error(t, root.Execute())
	assert.Contains(t, errOut.String(), string(domain.ErrorCategoryInput))
}
