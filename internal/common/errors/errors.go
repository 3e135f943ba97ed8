// Package errors provides the structured error type shared by the advisor
// pipeline and its conversion into BPMN errors for Camunda job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents a stable, machine-readable error code.
type ErrorCode string

const (
	ErrCodeCatalogUnavailable       ErrorCode = "CATALOG_UNAVAILABLE"
	ErrCodeCatalogDecodeFailed      ErrorCode = "CATALOG_DECODE_FAILED"
	ErrCodeCacheUnavailable         ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeSearchQueryFailed        ErrorCode = "SEARCH_QUERY_FAILED"

	ErrCodeRankingCollaboratorFailed ErrorCode = "RANKING_COLLABORATOR_FAILED"
	ErrCodeRankingResponseMalformed  ErrorCode = "RANKING_RESPONSE_MALFORMED"
	ErrCodeRankingTimeout            ErrorCode = "RANKING_TIMEOUT"
	ErrCodeInvalidRankingRequest     ErrorCode = "INVALID_RANKING_REQUEST"

	ErrCodeExplanationFailed ErrorCode = "EXPLANATION_FAILED"
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"

	ErrCodeRecommendationFailed ErrorCode = "RECOMMENDATION_FAILED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"

	ErrCodeWorkflowUnavailable ErrorCode = "WORKFLOW_ENGINE_UNAVAILABLE"
	ErrCodeWorkflowTimeout     ErrorCode = "WORKFLOW_ENGINE_TIMEOUT"
	ErrCodeWorkflowRejected    ErrorCode = "WORKFLOW_COMMAND_REJECTED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata sets a metadata key and returns the receiver.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError extracts a *StandardError from an error chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func detailsOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewCatalogUnavailableError is returned when no catalog source answered.
func NewCatalogUnavailableError(source string, err error) *StandardError {
	return newError(ErrCodeCatalogUnavailable, "Product catalog unavailable",
		fmt.Sprintf("source: %s, error: %s", source, detailsOf(err)), true, err)
}

// NewCatalogDecodeFailedError is returned when a catalog payload cannot be parsed.
func NewCatalogDecodeFailedError(source string, err error) *StandardError {
	return newError(ErrCodeCatalogDecodeFailed, "Product catalog payload could not be decoded",
		fmt.Sprintf("source: %s, error: %s", source, detailsOf(err)), false, err)
}

func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Catalog cache unavailable", detailsOf(err), true, err)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", detailsOf(err), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(query string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("query: %s, error: %s", query, detailsOf(err)), true, err)
}

// NewSearchQueryFailedError creates a retryable search error.
func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, detailsOf(err)), true, err)
}

// NewRankingCollaboratorFailedError wraps a transport-level failure talking to
// the ranking collaborator.
func NewRankingCollaboratorFailedError(endpoint string, err error) *StandardError {
	return newError(ErrCodeRankingCollaboratorFailed, "Ranking collaborator call failed",
		fmt.Sprintf("endpoint: %s, error: %s", endpoint, detailsOf(err)), true, err)
}

// NewRankingResponseMalformedError is used when the collaborator answered with
// a body that is neither a list nor an object carrying ranked products.
func NewRankingResponseMalformedError(endpoint, details string) *StandardError {
	return newError(ErrCodeRankingResponseMalformed, "Ranking collaborator returned a malformed response",
		fmt.Sprintf("endpoint: %s, %s", endpoint, details), true, nil)
}

func NewRankingTimeoutError(endpoint string, timeout time.Duration) *StandardError {
	return newError(ErrCodeRankingTimeout, "Ranking collaborator timeout",
		fmt.Sprintf("endpoint: %s, timeout: %s", endpoint, timeout), true, nil)
}

func NewInvalidRankingRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRankingRequest, "Invalid ranking request", details, false, nil)
}

// NewExplanationFailedError marks a failed text-explanation call.
func NewExplanationFailedError(err error) *StandardError {
	return newError(ErrCodeExplanationFailed, "Explanation generation failed", detailsOf(err), true, err)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false, nil)
}

// NewRecommendationFailedError is the only error the orchestration surfaces to
// its callers. Metadata carries the product count, the preferences and the
// last underlying error.
func NewRecommendationFailedError(productCount int, preferences interface{}, err error) *StandardError {
	e := newError(ErrCodeRecommendationFailed, "Recommendation pipeline failed", detailsOf(err), false, err)
	e.Metadata = map[string]interface{}{
		"productCount": productCount,
		"preferences":  preferences,
		"lastError":    detailsOf(err),
	}
	return e
}

// NewWorkflowUnavailableError wraps a Zeebe gateway connection failure.
func NewWorkflowUnavailableError(operation string, err error) *StandardError {
	return newError(ErrCodeWorkflowUnavailable, "Workflow engine unavailable",
		fmt.Sprintf("operation: %s, error: %s", operation, detailsOf(err)), true, err)
}

// NewWorkflowTimeoutError wraps a Zeebe command deadline.
func NewWorkflowTimeoutError(operation string, err error) *StandardError {
	return newError(ErrCodeWorkflowTimeout, "Workflow engine timeout",
		fmt.Sprintf("operation: %s, error: %s", operation, detailsOf(err)), true, err)
}

// NewWorkflowRejectedError wraps a command the broker refused.
func NewWorkflowRejectedError(operation string, err error) *StandardError {
	return newError(ErrCodeWorkflowRejected, "Workflow command rejected",
		fmt.Sprintf("operation: %s, error: %s", operation, detailsOf(err)), false, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCatalogUnavailable,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeCacheUnavailable,
		ErrCodeWorkflowUnavailable,
		ErrCodeWorkflowTimeout:
		return 3

	case ErrCodeRankingCollaboratorFailed,
		ErrCodeRankingResponseMalformed,
		ErrCodeRankingTimeout,
		ErrCodeExplanationFailed:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "CATALOG"), strings.HasPrefix(codeStr, "CACHE"):
		return "CATALOG"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE"), strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "RANKING"):
		return "RANKING"
	case strings.Contains(codeStr, "EXPLANATION"):
		return "AI"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "RECOMMENDATION"):
		return "PIPELINE"
	case strings.HasPrefix(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
