package domain

import (
	"errors"
	"fmt"
)

// DomainError represents errors in the domain layer
type DomainError struct {
	Code    string
	Message string
	Cause   error
}

func (e DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError with the same code, so the sentinel values
// below work with errors.Is regardless of message or cause
func (e DomainError) Is(target error) bool {
	t, ok := target.(DomainError)
	return ok && t.Code == e.Code
}

// Domain error codes
const (
	ErrCodeInvalidInput              = "INVALID_INPUT"
	ErrCodeSubmissionNotFound        = "SUBMISSION_NOT_FOUND"
	ErrCodeAssignmentNotFound        = "ASSIGNMENT_NOT_FOUND"
	ErrCodeResultNotFound            = "RESULT_NOT_FOUND"
	ErrCodeSameSubmissionComparison  = "SAME_SUBMISSION_COMPARISON"
	ErrCodeSameStudentComparison     = "SAME_STUDENT_COMPARISON"
	ErrCodeStudentSubmissionMismatch = "STUDENT_SUBMISSION_MISMATCH"
	ErrCodeFileNotFound              = "FILE_NOT_FOUND"
	ErrCodeStorageError              = "STORAGE_ERROR"
	ErrCodeAnalysisError             = "ANALYSIS_ERROR"
	ErrCodeConfigError               = "CONFIG_ERROR"
	ErrCodeOutputError               = "OUTPUT_ERROR"
	ErrCodeUnsupportedFormat         = "UNSUPPORTED_FORMAT"
)

// Sentinels for errors.Is
var (
	ErrInvalidInput              = DomainError{Code: ErrCodeInvalidInput, Message: "invalid input"}
	ErrSubmissionNotFound        = DomainError{Code: ErrCodeSubmissionNotFound, Message: "submission not found"}
	ErrAssignmentNotFound        = DomainError{Code: ErrCodeAssignmentNotFound, Message: "assignment not found"}
	ErrResultNotFound            = DomainError{Code: ErrCodeResultNotFound, Message: "result not found"}
	ErrSameSubmissionComparison  = DomainError{Code: ErrCodeSameSubmissionComparison, Message: "cannot compare a submission with itself"}
	ErrSameStudentComparison     = DomainError{Code: ErrCodeSameStudentComparison, Message: "cannot compare submissions of the same student"}
	ErrStudentSubmissionMismatch = DomainError{Code: ErrCodeStudentSubmissionMismatch, Message: "submission does not belong to student"}
	ErrStorage                   = DomainError{Code: ErrCodeStorageError, Message: "storage failure"}
)

// NewDomainError creates a new domain error
func NewDomainError(code, message string, cause error) error {
	return DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInvalidInputError creates an invalid input error
func NewInvalidInputError(message string, cause error) error {
	return NewDomainError(ErrCodeInvalidInput, message, cause)
}

// NewSubmissionNotFoundError creates a submission not found error
func NewSubmissionNotFoundError(submissionID int64) error {
	return NewDomainError(ErrCodeSubmissionNotFound, fmt.Sprintf("submission not found: %d", submissionID), nil)
}

// NewAssignmentNotFoundError creates an assignment not found error
func NewAssignmentNotFoundError(assignmentID int64) error {
	return NewDomainError(ErrCodeAssignmentNotFound, fmt.Sprintf("assignment has no submissions: %d", assignmentID), nil)
}

// NewResultNotFoundError creates a result not found error
func NewResultNotFoundError(resultID int64) error {
	return NewDomainError(ErrCodeResultNotFound, fmt.Sprintf("result not found: %d", resultID), nil)
}

// NewSameSubmissionError reports an attempt to compare a submission with itself
func NewSameSubmissionError(submissionID int64) error {
	return NewDomainError(ErrCodeSameSubmissionComparison,
		fmt.Sprintf("cannot compare submission %d with itself", submissionID), nil)
}

// NewSameStudentError reports an attempt to compare two submissions of one student
func NewSameStudentError(studentID, fromSubmission, toSubmission int64) error {
	return NewDomainError(ErrCodeSameStudentComparison,
		fmt.Sprintf("submissions %d and %d both belong to student %d", fromSubmission, toSubmission, studentID), nil)
}

// NewStudentSubmissionMismatchError reports a submission owned by another student
func NewStudentSubmissionMismatchError(studentID, submissionID int64) error {
	return NewDomainError(ErrCodeStudentSubmissionMismatch,
		fmt.Sprintf("submission %d does not belong to student %d", submissionID, studentID), nil)
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string, cause error) error {
	return NewDomainError(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path), cause)
}

// NewStorageError creates a storage error
func NewStorageError(message string, cause error) error {
	return NewDomainError(ErrCodeStorageError, message, cause)
}

// NewAnalysisError creates an analysis error
func NewAnalysisError(message string, cause error) error {
	return NewDomainError(ErrCodeAnalysisError, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) error {
	return NewDomainError(ErrCodeConfigError, message, cause)
}

// NewOutputError creates an output error
func NewOutputError(message string, cause error) error {
	return NewDomainError(ErrCodeOutputError, message, cause)
}

// NewUnsupportedFormatError creates an unsupported format error
func NewUnsupportedFormatError(format string) error {
	return NewDomainError(ErrCodeUnsupportedFormat, fmt.Sprintf("unsupported format: %s", format), nil)
}

// NewValidationError creates a validation error
func NewValidationError(message string) error {
	return NewDomainError(ErrCodeInvalidInput, message, nil)
}

// ErrorCode extracts the domain error code from err, or "" when err is not a DomainError
func ErrorCode(err error) string {
	var de DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ErrorCategory groups errors for user-facing reporting
type ErrorCategory string

const (
	ErrorCategoryInput      ErrorCategory = "Input Error"
	ErrorCategoryConfig     ErrorCategory = "Configuration Error"
	ErrorCategoryStorage    ErrorCategory = "Storage Error"
	ErrorCategoryOutput     ErrorCategory = "Output Error"
	ErrorCategoryProcessing ErrorCategory = "Processing Error"
	ErrorCategoryTimeout    ErrorCategory = "Timeout Error"
	ErrorCategoryUnknown    ErrorCategory = "Unknown Error"
)

// CategorizedError pairs an error with its category
type CategorizedError struct {
	Category ErrorCategory
	Message  string
	Original error
}

func (e *CategorizedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *CategorizedError) Unwrap() error {
	return e.Original
}

// ErrorCategorizer classifies errors and suggests how to recover
type ErrorCategorizer interface {
	Categorize(err error) *CategorizedError
	GetRecoverySuggestions(category ErrorCategory) []string
}
