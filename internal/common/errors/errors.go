package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeExtractionFailed        ErrorCode = "EXTRACTION_FAILED"
	ErrCodeInvalidModule           ErrorCode = "INVALID_MODULE"
	ErrCodeCommandProcessingFailed ErrorCode = "COMMAND_PROCESSING_FAILED"
	ErrCodeInvalidTemporalEntity   ErrorCode = "INVALID_TEMPORAL_ENTITY"
	ErrCodeInvalidFlow             ErrorCode = "INVALID_FLOW"
	ErrCodeInvalidInput            ErrorCode = "INVALID_INPUT"

	ErrCodeAnalyticsQueryFailed          ErrorCode = "ANALYTICS_QUERY_FAILED"
	ErrCodeVisualizationGenerationFailed ErrorCode = "VISUALIZATION_GENERATION_FAILED"
	ErrCodeBeneficiarySearchFailed       ErrorCode = "BENEFICIARY_SEARCH_FAILED"
	ErrCodeGenAITimeout                  ErrorCode = "GENAI_TIMEOUT"
	ErrCodeConversationStoreUnavailable  ErrorCode = "CONVERSATION_STORE_UNAVAILABLE"
	ErrCodeInternal                      ErrorCode = "INTERNAL_ERROR"
)

// GenericCommandFailure is the only text a client sees when derivation of a
// command fails.
const GenericCommandFailure = "Error processing the text command"

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

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

func NewExtractionFailedError(err error) *StandardError {
	return newError(ErrCodeExtractionFailed, "Language understanding request failed", err, true)
}

func NewInvalidModuleError(moduleCode string) *StandardError {
	e := newError(ErrCodeInvalidModule, "Invalid module code: "+moduleCode, nil, false)
	e.Metadata = map[string]interface{}{"moduleCode": moduleCode}
	return e
}

// NewCommandProcessingFailedError hides the cause behind the generic message;
// the cause stays reachable through Details and errors.Unwrap.
func NewCommandProcessingFailedError(err error) *StandardError {
	return newError(ErrCodeCommandProcessingFailed, GenericCommandFailure, err, false)
}

func NewInvalidTemporalEntityError(err error) *StandardError {
	return newError(ErrCodeInvalidTemporalEntity, "Temporal entity could not be parsed", err, false)
}

func NewInvalidFlowError(expected, got string) *StandardError {
	e := newError(ErrCodeInvalidFlow, fmt.Sprintf("expected flow %s, got %q", expected, got), nil, false)
	e.Metadata = map[string]interface{}{"expectedFlow": expected, "flow": got}
	return e
}

func NewInvalidInputError(details string) *StandardError {
	e := newError(ErrCodeInvalidInput, "Job variables are invalid", nil, false)
	e.Details = details
	return e
}

func NewAnalyticsQueryFailedError(err error) *StandardError {
	return newError(ErrCodeAnalyticsQueryFailed, "Analytics aggregate query failed", err, true)
}

func NewVisualizationGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeVisualizationGenerationFailed, "Visualization generation failed", err, false)
}

func NewBeneficiarySearchFailedError(err error) *StandardError {
	return newError(ErrCodeBeneficiarySearchFailed, "Beneficiary search failed", err, true)
}

func NewGenAITimeoutError(err error) *StandardError {
	return newError(ErrCodeGenAITimeout, "Language model call timed out", err, true)
}

func NewConversationStoreUnavailableError(err error) *StandardError {
	return newError(ErrCodeConversationStoreUnavailable, "Conversation store unavailable", err, true)
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeExtractionFailed:              "EXTRACTION_FAILED",
	ErrCodeInvalidModule:                 "INVALID_MODULE",
	ErrCodeCommandProcessingFailed:       "COMMAND_PROCESSING_FAILED",
	ErrCodeInvalidTemporalEntity:         "COMMAND_PROCESSING_FAILED",
	ErrCodeInvalidFlow:                   "INVALID_FLOW",
	ErrCodeInvalidInput:                  "INVALID_INPUT",
	ErrCodeAnalyticsQueryFailed:          "ANALYTICS_QUERY_FAILED",
	ErrCodeVisualizationGenerationFailed: "VISUALIZATION_GENERATION_FAILED",
	ErrCodeBeneficiarySearchFailed:       "BENEFICIARY_SEARCH_FAILED",
	ErrCodeGenAITimeout:                  "GENAI_TIMEOUT",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeAnalyticsQueryFailed,
		ErrCodeBeneficiarySearchFailed,
		ErrCodeConversationStoreUnavailable:
		return 3

	case ErrCodeExtractionFailed:
		return 2

	case ErrCodeGenAITimeout:
		return 1

	default:
		return 0
	}
}

// AsStandardError finds a StandardError anywhere in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

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
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "GENAI") || strings.Contains(codeStr, "VISUALIZATION"):
		return "AI"
	case strings.Contains(codeStr, "ANALYTICS"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "CONVERSATION"):
		return "CACHE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "PROCESSING"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
