package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile           ErrorCategory = "file"
	CategoryParse          ErrorCategory = "parse"
	CategoryValidation     ErrorCategory = "validation"
	CategoryConfiguration  ErrorCategory = "configuration"
	CategoryReconciliation ErrorCategory = "reconciliation"
	CategoryProvider       ErrorCategory = "provider"
	CategoryInternal       ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound    ErrorCode = "file_not_found"
	CodeFilePermission  ErrorCode = "file_permission"
	CodeUnsupportedFile ErrorCode = "unsupported_file"
	CodeFileTooLarge    ErrorCode = "file_too_large"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeNoItems       ErrorCode = "no_items"

	// Validation errors
	CodeInvalidRole     ErrorCode = "invalid_role"
	CodeMissingField    ErrorCode = "missing_field"
	CodeOutOfRange      ErrorCode = "out_of_range"
	CodeDuplicate       ErrorCode = "duplicate"
	CodeSessionNotFound ErrorCode = "session_not_found"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Reconciliation errors
	CodeMissingPurchases ErrorCode = "missing_purchases"
	CodeMissingSales     ErrorCode = "missing_sales"
	CodeProcessingError  ErrorCode = "processing_error"

	// Provider errors
	CodeProviderFailed ErrorCode = "provider_failed"
	CodeEmptyResponse  ErrorCode = "empty_response"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// BillError is the base error type for all application errors
type BillError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *BillError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *BillError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *BillError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryReconciliation, CategoryInternal:
		return 5
	case CategoryProvider:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *BillError) WithContext(key string, value interface{}) *BillError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *BillError) WithSuggestion(suggestion string) *BillError {
	e.Suggestion = suggestion
	return e
}

// New creates a new BillError
func New(category ErrorCategory, code ErrorCode, message string) *BillError {
	return &BillError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with BillError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *BillError {
	if err == nil {
		return nil
	}

	return &BillError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message, suggestion string, err error) *BillError {
	var result *BillError
	if err != nil {
		result = Wrap(err, category, code, message)
	} else {
		result = New(category, code, message)
	}
	return result.WithSuggestion(suggestion)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *BillError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeUnsupportedFile:
		message = fmt.Sprintf("unsupported bill file: %s", path)
		suggestion = "use a text bill, a provider JSON payload, a PDF or a PNG/JPEG/WebP image"
	case CodeFileTooLarge:
		message = fmt.Sprintf("bill file is too large: %s", path)
		suggestion = "split the bill or raise extraction.max_file_size"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(CategoryFile, code, message, suggestion, err).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error. Source names the bill or
// page the content came from.
func ParseError(code ErrorCode, source string, err error) *BillError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("could not decode item payload from %s", source)
		suggestion = "the provider response must contain a JSON array of item objects"
	case CodeNoItems:
		message = fmt.Sprintf("no items could be extracted from %s", source)
		suggestion = "check that the bill lists item names, codes and prices"
	default:
		message = fmt.Sprintf("parse error in %s", source)
		suggestion = "check the bill content"
	}

	return build(CategoryParse, code, message, suggestion, err).
		WithContext("source", source)
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *BillError {
	var message, suggestion string

	switch code {
	case CodeInvalidRole:
		message = fmt.Sprintf("invalid role in field '%s': %v", field, value)
		suggestion = "use 'purchase' or 'sale'"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	case CodeDuplicate:
		message = fmt.Sprintf("duplicate value in field '%s': %v", field, value)
		suggestion = "each value must appear only once"
	case CodeSessionNotFound:
		message = fmt.Sprintf("session not found: %v", value)
		suggestion = "create a session before adding bills to it"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(CategoryValidation, code, message, suggestion, err).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *BillError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting by flag, config file or BILLRECON_ environment variable"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, suggestion, err).
		WithContext("setting", setting).
		WithContext("value", value)
}

// ReconciliationError creates a reconciliation-related error
func ReconciliationError(code ErrorCode, operation string, err error) *BillError {
	var message, suggestion string

	switch code {
	case CodeMissingPurchases:
		message = fmt.Sprintf("no purchase items available for %s", operation)
		suggestion = "upload at least one purchase bill first"
	case CodeMissingSales:
		message = fmt.Sprintf("no sale items available for %s", operation)
		suggestion = "upload at least one sale bill first"
	case CodeProcessingError:
		message = fmt.Sprintf("processing error during %s", operation)
		suggestion = "check the bills and try again"
	default:
		message = fmt.Sprintf("reconciliation error during %s", operation)
		suggestion = "review the data and configuration"
	}

	return build(CategoryReconciliation, code, message, suggestion, err).
		WithContext("operation", operation)
}

// ProviderError creates an error for a failed vision provider call
func ProviderError(code ErrorCode, provider string, err error) *BillError {
	var message, suggestion string

	switch code {
	case CodeProviderFailed:
		message = fmt.Sprintf("vision provider %s failed", provider)
		suggestion = "check the API key and model name"
	case CodeEmptyResponse:
		message = fmt.Sprintf("vision provider %s returned an empty response", provider)
		suggestion = "check the page image quality"
	default:
		message = fmt.Sprintf("vision provider error: %s", provider)
		suggestion = "try again later"
	}

	return build(CategoryProvider, code, message, suggestion, err).
		WithContext("provider", provider)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *BillError {
	message := fmt.Sprintf("internal error during %s", operation)
	suggestion := "try again or report the problem with the error details"
	if code == CodeUnexpectedError {
		message = fmt.Sprintf("unexpected error during %s", operation)
	}

	return build(CategoryInternal, code, message, suggestion, err).
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total      int                   `json:"total"`
	ByCategory map[ErrorCategory]int `json:"by_category"`
	ByCode     map[ErrorCode]int     `json:"by_code"`
	Errors     []*BillError          `json:"errors"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*BillError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if summary.Errors == nil {
		summary.Errors = []*BillError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// AsBillError extracts a BillError from an error chain
func AsBillError(err error) (*BillError, bool) {
	var billErr *BillError
	if errors.As(err, &billErr) {
		return billErr, true
	}
	return nil, false
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	billErr, ok := AsBillError(err)
	return ok && billErr.Code == code
}

// WrapIfNeeded wraps an error if it's not already a BillError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *BillError {
	if err == nil {
		return nil
	}

	if billErr, ok := AsBillError(err); ok {
		return billErr
	}

	return Wrap(err, category, code, message)
}
