// Package errors provides standardized error handling for the itinerary
// pipeline and its BPMN workflow integration.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeParse              ErrorCode = "PARSE_ERROR"
	ErrCodeCompletionParse    ErrorCode = "COMPLETION_PARSE_ERROR"
	ErrCodeCompletionFailed   ErrorCode = "COMPLETION_FAILED"
	ErrCodeDiscoveryFailed    ErrorCode = "DISCOVERY_FAILED"
	ErrCodeExtractionFailed   ErrorCode = "EXTRACTION_FAILED"
	ErrCodePlanningFailed     ErrorCode = "PLANNING_FAILED"
	ErrCodeRefinementFailed   ErrorCode = "REFINEMENT_FAILED"
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidState       ErrorCode = "INVALID_STATE"
	ErrCodeExportFailed       ErrorCode = "EXPORT_FAILED"
	ErrCodeItineraryNotFound  ErrorCode = "ITINERARY_NOT_FOUND"
	ErrCodeStoreFailed        ErrorCode = "STORE_FAILED"
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT_ERROR"
	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Severity classifies how a failure propagates through a pipeline run.
type Severity string

const (
	// SeverityFatal aborts the run and surfaces to the caller.
	SeverityFatal Severity = "fatal"
	// SeverityRecoverable is replaced by deterministic fallback content.
	SeverityRecoverable Severity = "recoverable"
	// SeverityDegraded is recorded inline on the affected item only.
	SeverityDegraded Severity = "degraded"
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

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Severity reports the taxonomy bucket for this error's code.
func (e *StandardError) Severity() Severity {
	return SeverityOf(e.Code)
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

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewParseError is raised when the request cannot be turned into a ParsedRequest.
func NewParseError(err error) *StandardError {
	return newError(ErrCodeParse, "Could not understand the request", err, false)
}

// NewCompletionParseError is raised when a completion holds no usable JSON object.
func NewCompletionParseError(stage string, err error) *StandardError {
	e := newError(ErrCodeCompletionParse, fmt.Sprintf("Unparseable completion in %s", stage), err, true)
	e.Metadata = map[string]interface{}{"stage": stage}
	return e
}

func NewCompletionFailedError(stage string, err error) *StandardError {
	e := newError(ErrCodeCompletionFailed, fmt.Sprintf("Completion service failed in %s", stage), err, true)
	e.Metadata = map[string]interface{}{"stage": stage}
	return e
}

func NewDiscoveryFailedError(operation string, err error) *StandardError {
	e := newError(ErrCodeDiscoveryFailed, fmt.Sprintf("Discovery %s failed", operation), err, true)
	e.Metadata = map[string]interface{}{"operation": operation}
	return e
}

func NewPlanningFailedError(err error) *StandardError {
	return newError(ErrCodePlanningFailed, "Itinerary planning failed and no fallback was possible", err, false)
}

func NewRefinementFailedError(err error) *StandardError {
	return newError(ErrCodeRefinementFailed, "Itinerary refinement failed", err, true)
}

func NewInvalidInputError(details string) *StandardError {
	e := newError(ErrCodeInvalidInput, "Invalid input", nil, false)
	e.Details = details
	return e
}

func NewInvalidStateError(state, event string) *StandardError {
	e := newError(ErrCodeInvalidState, fmt.Sprintf("Event %s not accepted in state %s", event, state), nil, false)
	e.Metadata = map[string]interface{}{"state": state, "event": event}
	return e
}

func NewExportFailedError(format string) *StandardError {
	e := newError(ErrCodeExportFailed, fmt.Sprintf("Unsupported export format: %s", format), nil, false)
	e.Metadata = map[string]interface{}{"format": format}
	return e
}

func NewItineraryNotFoundError(id string) *StandardError {
	e := newError(ErrCodeItineraryNotFound, "Itinerary not found", nil, false)
	e.Details = fmt.Sprintf("itineraryId: %s", id)
	return e
}

func NewStoreFailedError(operation string, err error) *StandardError {
	e := newError(ErrCodeStoreFailed, fmt.Sprintf("Itinerary store %s failed", operation), err, true)
	e.Metadata = map[string]interface{}{"operation": operation}
	return e
}

func NewNotificationFailedError(channel string, err error) *StandardError {
	e := newError(ErrCodeNotificationFailed, "Notification delivery failed", err, true)
	e.Details = fmt.Sprintf("channel: %s, error: %v", channel, err)
	return e
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err, true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err, true)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCompletionFailed,
		ErrCodeDiscoveryFailed,
		ErrCodeStoreFailed,
		ErrCodeNotificationFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeCompletionParse,
		ErrCodeRefinementFailed,
		ErrCodeTimeout:
		return 1

	default:
		return 0
	}
}

// SeverityOf maps a code to the pipeline failure taxonomy.
func SeverityOf(code ErrorCode) Severity {
	switch code {
	case ErrCodeParse, ErrCodePlanningFailed, ErrCodeInvalidInput,
		ErrCodeInvalidState, ErrCodeRefinementFailed, ErrCodeInternal:
		return SeverityFatal
	case ErrCodeDiscoveryFailed, ErrCodeExtractionFailed:
		return SeverityDegraded
	default:
		return SeverityRecoverable
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"severity":          string(SeverityOf(stdErr.Code)),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard finds a StandardError in err's chain, wrapping unknown errors as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// CodeOf returns the code of the first StandardError in err's chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandard(err).Code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "COMPLETION") || strings.Contains(codeStr, "PARSE"):
		return "AI"
	case strings.Contains(codeStr, "DISCOVERY") || strings.Contains(codeStr, "EXTRACTION"):
		return "SEARCH"
	case strings.Contains(codeStr, "PLANNING") || strings.Contains(codeStr, "REFINEMENT"):
		return "PLANNING"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "NOT_FOUND"):
		return "DATABASE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
