package pipeline

import "fmt"

// ErrorCode identifies a stable, client-facing failure category.
type ErrorCode string

const (
	// Precondition errors - detected before any stage runs.
	CodeNotFound             ErrorCode = "NotFound"
	CodeInsufficientCredits  ErrorCode = "InsufficientCredits"
	CodeMissingConfiguration ErrorCode = "MissingConfiguration"
	CodeTargetUnreachable    ErrorCode = "TargetUnreachable"
	CodeInvalidTarget        ErrorCode = "InvalidTarget"

	// Required-stage errors - abort the job mid-pipeline, no credits debited.
	CodeEmptyGeneration   ErrorCode = "EmptyGeneration"
	CodeSeoParseError     ErrorCode = "SeoParseError"
	CodePublishFailed     ErrorCode = "PublishFailed"
	CodeRemoteFetchFailed ErrorCode = "RemoteFetchFailed"

	// CodeCanceled is reported when the caller disconnects mid-run.
	CodeCanceled ErrorCode = "Canceled"

	// CodeInternal covers unexpected failures in required stages.
	CodeInternal ErrorCode = "Internal"
)

// PipelineError is the single error type that crosses the orchestrator
// boundary. Detail carries remote/underlying error text when available.
type PipelineError struct {
	Code    ErrorCode
	Message string
	Detail  string
}

func (e *PipelineError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a PipelineError with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *PipelineError {
	return &PipelineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithDetail returns a copy of the error carrying underlying detail text.
func (e *PipelineError) WithDetail(detail string) *PipelineError {
	return &PipelineError{Code: e.Code, Message: e.Message, Detail: detail}
}

// asPipelineError normalizes any stage error into a PipelineError,
// falling back to the given code for plain errors.
func asPipelineError(err error, fallback ErrorCode) *PipelineError {
	if pe, ok := err.(*PipelineError); ok {
		return pe
	}
	return &PipelineError{Code: fallback, Message: err.Error()}
}
