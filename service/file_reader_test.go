package service

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ludo-technologies/astsim/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileReader_CollectSubmissionFiles(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.json"), "{}")
	writeTestFile(t, filepath.Join(root, "notes.txt"), "x")
	writeTestFile(t, filepath.Join(root, "week1", "b.json"), "{}")
	writeTestFile(t, filepath.Join(root, "processed", "c.json"), "{}")
	writeTestFile(t, filepath.Join(root, ".hidden", "d.json"), "{}")

	fr := NewFileReader()
	include := []string{"**/*.json"}
	exclude := []string{"**/processed/**"}

	t.Run("recursive", func(t *testing.T) {
		files, err := fr.CollectSubmissionFiles([]string{root}, true, include, exclude)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "a.json"),
			filepath.Join(root, "week1", "b.json"),
		}, files)
	})

	t.Run("non recursive", func(t *testing.T) {
		files, err := fr.CollectSubmissionFiles([]string{root}, false, include, exclude)
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "a.json")}, files)
	})

	t.Run("explicit file and duplicates", func(t *testing.T) {
		file := filepath.Join(root, "a.json")
		files, err := fr.CollectSubmissionFiles([]string{file, root}, false, include, exclude)
		require.NoError(t, err)
		assert.Equal(t, []string{file}, files)
	})

	t.Run("missing path", func(t *testing.T) {
		_, err := fr.CollectSubmissionFiles([]string{filepath.Join(root, "nope")}, true, include, exclude)
		assert.Equal(t, domain.ErrCodeFileNotFound, domain.ErrorCode(err))
	})
}

func TestFileReader_ValidatePaths(t *testing.T) {
	fr := NewFileReader()
	root := t.TempDir()

	assert.NoError(t, fr.ValidatePaths([]string{root}))
	assert.Equal(t, domain.ErrCodeInvalidInput, domain.ErrorCode(fr.ValidatePaths(nil)))
	assert.Equal(t, domain.ErrCodeFileNotFound, domain.ErrorCode(fr.ValidatePaths([]string{filepath.Join(root, "x")})))
}
