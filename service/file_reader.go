package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ludo-technologies/astsim/domain"
)

// FileReaderImpl finds and decodes submission files
type FileReaderImpl struct{}

// NewFileReader creates a new file reader service
func NewFileReader() *FileReaderImpl {
	return &FileReaderImpl{}
}

// CollectSubmissionFiles returns the JSON files under paths matching the
// include patterns and none of the exclude patterns, sorted by path.
// Patterns use doublestar syntax and are matched against the path relative
// to the walked directory and against the base name.
func (f *FileReaderImpl) CollectSubmissionFiles(paths []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, domain.NewFileNotFoundError(path, err)
		}

		if info.IsDir() {
			dirFiles, err := f.collectFromDirectory(path, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			for _, file := range dirFiles {
				if !seen[file] {
					seen[file] = true
					files = append(files, file)
				}
			}
			continue
		}

		// Explicitly named files only need the right extension
		if f.IsSubmissionFile(path) && !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	sort.Strings(files)
	return files, nil
}

// IsSubmissionFile checks the extension of a candidate file
func (f *FileReaderImpl) IsSubmissionFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

func (f *FileReaderImpl) collectFromDirectory(dirPath string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFunc := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == dirPath {
			return nil
		}

		rel, relErr := filepath.Rel(dirPath, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if !recursive || matchesAny(excludePatterns, rel+"/", d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if f.IsSubmissionFile(path) && f.shouldIncludeFile(rel, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dirPath, walkFunc); err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}
	return files, nil
}

// shouldIncludeFile applies the patterns to a slash-separated relative path
func (f *FileReaderImpl) shouldIncludeFile(rel string, includePatterns, excludePatterns []string) bool {
	base := filepath.Base(rel)
	if matchesAny(excludePatterns, rel, base) {
		return false
	}
	if len(includePatterns) == 0 {
		return true
	}
	return matchesAny(includePatterns, rel, base)
}

func matchesAny(patterns []string, rel, base string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// ReadSubmissionFile decodes one submission file
func (f *FileReaderImpl) ReadSubmissionFile(path string) (*domain.SubmissionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewFileNotFoundError(path, err)
	}

	var file domain.SubmissionFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, domain.NewInvalidInputError(fmt.Sprintf("malformed submission file %s", path), err)
	}
	if file.SubmissionID <= 0 || file.StudentID <= 0 || file.AssignmentID <= 0 {
		return nil, domain.NewInvalidInputError(
			fmt.Sprintf("%s: submissionId, studentId and assignmentId must be positive", path), nil)
	}
	return &file, nil
}

// ValidatePaths validates that all provided paths exist and are accessible
func (f *FileReaderImpl) ValidatePaths(paths []string) error {
	if len(paths) == 0 {
		return domain.NewInvalidInputError("no paths given", nil)
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return domain.NewFileNotFoundError(path, err)
			}
			return domain.NewInvalidInputError(fmt.Sprintf("cannot access path: %s", path), err)
		}
	}
	return nil
}
