package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ludo-technologies/astsim/domain"
)

// ErrorCategorizerImpl implements the ErrorCategorizer interface
type ErrorCategorizerImpl struct {
	codes    map[string]domain.ErrorCategory
	patterns []categoryPatterns
}

type categoryPatterns struct {
	category domain.ErrorCategory
	patterns []string
}

// NewErrorCategorizer creates a new error categorizer
func NewErrorCategorizer() domain.ErrorCategorizer {
	return &ErrorCategorizerImpl{
		codes: map[string]domain.ErrorCategory{
			domain.ErrCodeInvalidInput:              domain.ErrorCategoryInput,
			domain.ErrCodeSubmissionNotFound:        domain.ErrorCategoryInput,
			domain.ErrCodeAssignmentNotFound:        domain.ErrorCategoryInput,
			domain.ErrCodeResultNotFound:            domain.ErrorCategoryInput,
			domain.ErrCodeSameSubmissionComparison:  domain.ErrorCategoryInput,
			domain.ErrCodeSameStudentComparison:     domain.ErrorCategoryInput,
			domain.ErrCodeStudentSubmissionMismatch: domain.ErrorCategoryInput,
			domain.ErrCodeFileNotFound:              domain.ErrorCategoryInput,
			domain.ErrCodeStorageError:              domain.ErrorCategoryStorage,
			domain.ErrCodeAnalysisError:             domain.ErrorCategoryProcessing,
			domain.ErrCodeConfigError:               domain.ErrorCategoryConfig,
			domain.ErrCodeOutputError:               domain.ErrorCategoryOutput,
			domain.ErrCodeUnsupportedFormat:         domain.ErrorCategoryOutput,
		},
		patterns: initializeErrorPatterns(),
	}
}

// initializeErrorPatterns lists message fragments for errors that carry no domain code.
// Order matters: the first matching category wins.
func initializeErrorPatterns() []categoryPatterns {
	return []categoryPatterns{
		{domain.ErrorCategoryTimeout, []string{"timeout", "deadline", "context canceled", "timed out"}},
		{domain.ErrorCategoryConfig, []string{"config", "toml", "yaml"}},
		{domain.ErrorCategoryStorage, []string{"badger", "storage", "database"}},
		{domain.ErrorCategoryInput, []string{"no such file", "not found", "permission denied", "no submission files"}},
		{domain.ErrorCategoryOutput, []string{"write", "output", "cannot create"}},
		{domain.ErrorCategoryProcessing, []string{"json", "ast", "compare", "analysis"}},
	}
}

// Categorize determines the category of an error
func (ec *ErrorCategorizerImpl) Categorize(err error) *domain.CategorizedError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ec.categorized(domain.ErrorCategoryTimeout, err)
	}
	if category, ok := ec.codes[domain.ErrorCode(err)]; ok {
		return ec.categorized(category, err)
	}

	errMsg := strings.ToLower(err.Error())
	for _, cp := range ec.patterns {
		if containsAnyPattern(errMsg, cp.patterns) {
			return ec.categorized(cp.category, err)
		}
	}

	return &domain.CategorizedError{
		Category: domain.ErrorCategoryUnknown,
		Message:  err.Error(),
		Original: err,
	}
}

func (ec *ErrorCategorizerImpl) categorized(category domain.ErrorCategory, err error) *domain.CategorizedError {
	return &domain.CategorizedError{
		Category: category,
		Message:  ec.getCategoryMessage(category),
		Original: err,
	}
}

// GetRecoverySuggestions returns recovery suggestions for an error category
func (ec *ErrorCategorizerImpl) GetRecoverySuggestions(category domain.ErrorCategory) []string {
	suggestions := map[domain.ErrorCategory][]string{
		domain.ErrorCategoryInput: {
			"Check that the AST files exist and contain a JSON document",
			"Submission files need submissionId, studentId, assignmentId and ast",
			"Make sure compared submissions belong to different students",
		},
		domain.ErrorCategoryConfig: {
			"Verify configuration file format and values",
			"Try: astsim init to generate a valid config file",
			"Check for syntax errors in .astsim.toml",
		},
		domain.ErrorCategoryStorage: {
			"Check that the storage path is writable and not used by another process",
			"Use --in-memory for a throwaway run",
		},
		domain.ErrorCategoryTimeout: {
			"Analyze fewer submissions at once or raise batch.workers",
		},
		domain.ErrorCategoryOutput: {
			"Check write permissions and output format validity",
			"Use --format text, json, yaml or csv",
		},
		domain.ErrorCategoryProcessing: {
			"One of the AST documents may be malformed",
			"Compare the submissions individually with astsim compare to isolate it",
		},
		domain.ErrorCategoryUnknown: {
			"Run with --verbose for detailed error information",
		},
	}

	if sug, ok := suggestions[category]; ok {
		return sug
	}
	return []string{"Check the error message for more details"}
}

// getCategoryMessage returns a user-friendly message for an error category
func (ec *ErrorCategorizerImpl) getCategoryMessage(category domain.ErrorCategory) string {
	messages := map[domain.ErrorCategory]string{
		domain.ErrorCategoryInput:      "Invalid submissions or request",
		domain.ErrorCategoryConfig:     "Configuration file or settings error",
		domain.ErrorCategoryStorage:    "Failed to read or write stored results",
		domain.ErrorCategoryTimeout:    "Analysis timed out",
		domain.ErrorCategoryOutput:     "Failed to generate or write output",
		domain.ErrorCategoryProcessing: "Error while comparing submissions",
		domain.ErrorCategoryUnknown:    "An unexpected error occurred",
	}

	if msg, ok := messages[category]; ok {
		return msg
	}
	return "An error occurred"
}

// containsAnyPattern checks if a string contains any of the given patterns
func containsAnyPattern(str string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(str, pattern) {
			return true
		}
	}
	return false
}
