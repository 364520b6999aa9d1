package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Graph errors (GRAPH-001 to GRAPH-099)
	ErrCodeGraphInvalid           ErrorCode = "GRAPH-001"
	ErrCodeGraphDuplicateTask     ErrorCode = "GRAPH-002"
	ErrCodeGraphDanglingDep       ErrorCode = "GRAPH-003"
	ErrCodeGraphTaskNotFound      ErrorCode = "GRAPH-004"
	ErrCodeGraphInvalidTransition ErrorCode = "GRAPH-005"
	ErrCodeGraphInUse             ErrorCode = "GRAPH-006"
	ErrCodeGraphCyclicDep         ErrorCode = "GRAPH-007"

	// Route errors (ROUTE-001 to ROUTE-099)
	ErrCodeRouteUnknownType  ErrorCode = "ROUTE-001"
	ErrCodeRouteTableInvalid ErrorCode = "ROUTE-002"

	// Enrichment errors (ENRICH-001 to ENRICH-099)
	ErrCodeEnrichMissingResult ErrorCode = "ENRICH-001"
	ErrCodeEnrichMissingField  ErrorCode = "ENRICH-002"
	ErrCodeEnrichBadBinding    ErrorCode = "ENRICH-003"

	// Invocation errors (INVOKE-001 to INVOKE-099)
	ErrCodeInvokeStatus    ErrorCode = "INVOKE-001"
	ErrCodeInvokeTransport ErrorCode = "INVOKE-002"
	ErrCodeInvokeTimeout   ErrorCode = "INVOKE-003"
	ErrCodeInvokeDecode    ErrorCode = "INVOKE-004"

	// Engine errors (ENGINE-001 to ENGINE-099)
	ErrCodeEngineCancelled ErrorCode = "ENGINE-001"
	ErrCodeEngineBlocked   ErrorCode = "ENGINE-002"

	// Store errors (STORE-001 to STORE-099)
	ErrCodeStoreNotFound ErrorCode = "STORE-001"
	ErrCodeStoreBackend  ErrorCode = "STORE-002"
	ErrCodeStoreConflict ErrorCode = "STORE-003"

	// Config errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigInvalid ErrorCode = "CONFIG-001"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

// OrchestratorError represents an error with code, suggestions, and documentation
type OrchestratorError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *OrchestratorError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Brief returns the single-line form of the error without suggestions or docs.
// This is what gets recorded on a failed task.
func (e *OrchestratorError) Brief() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *OrchestratorError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an OrchestratorError with the same code.
// This lets callers compare against the sentinel values below.
func (e *OrchestratorError) Is(target error) bool {
	t, ok := target.(*OrchestratorError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Code == e.Code
}

// New creates a new OrchestratorError
func New(code ErrorCode, message string) *OrchestratorError {
	return &OrchestratorError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new OrchestratorError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *OrchestratorError {
	return &OrchestratorError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *OrchestratorError) WithSuggestion(suggestion string) *OrchestratorError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *OrchestratorError) WithSuggestions(suggestions ...string) *OrchestratorError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *OrchestratorError) WithDocs(url string) *OrchestratorError {
	e.DocsURL = url
	return e
}

// Sentinels for errors.Is checks. Only the code is compared.
var (
	ErrUnknownTaskType   = &OrchestratorError{Code: ErrCodeRouteUnknownType}
	ErrGraphInUse        = &OrchestratorError{Code: ErrCodeGraphInUse}
	ErrTaskNotFound      = &OrchestratorError{Code: ErrCodeGraphTaskNotFound}
	ErrInvalidTransition = &OrchestratorError{Code: ErrCodeGraphInvalidTransition}
	ErrNotFound          = &OrchestratorError{Code: ErrCodeStoreNotFound}
	ErrConflict          = &OrchestratorError{Code: ErrCodeStoreConflict}
	ErrInvokeTimeout     = &OrchestratorError{Code: ErrCodeInvokeTimeout}
)

// CodeOf returns the code of the first OrchestratorError in err's chain,
// or an empty code when there is none.
func CodeOf(err error) ErrorCode {
	var oe *OrchestratorError
	if stderrors.As(err, &oe) {
		return oe.Code
	}
	return ""
}

// Brief returns the single-line description of err. A wrapped
// OrchestratorError keeps the outer context but loses its suggestions and
// docs link.
func Brief(err error) string {
	if err == nil {
		return ""
	}
	var oe *OrchestratorError
	if !stderrors.As(err, &oe) {
		return err.Error()
	}
	if oe == err {
		return oe.Brief()
	}
	msg := strings.Replace(err.Error(), oe.Error(), oe.Brief(), 1)
	if i := strings.Index(msg, "\n\n"); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// Common error constructors for frequently used errors

// NewUnknownTaskTypeError creates an unknown task type error
func NewUnknownTaskTypeError(taskType string) *OrchestratorError {
	return New(ErrCodeRouteUnknownType, fmt.Sprintf("unknown task type: %s", taskType))
}

// NewInvalidGraphIDError creates an error for a graph id that cannot be stored
func NewInvalidGraphIDError(id string, cause error) *OrchestratorError {
	return Wrap(ErrCodeGraphInvalid, fmt.Sprintf("invalid graph id %q", id), cause).
		WithSuggestion("Omit the id to have one generated")
}

// NewDuplicateTaskError creates a duplicate task id error
func NewDuplicateTaskError(id string) *OrchestratorError {
	return New(ErrCodeGraphDuplicateTask, fmt.Sprintf("duplicate task id %q", id))
}

// NewDanglingDependencyError creates an error for a dependency that names no task
func NewDanglingDependencyError(taskID, depID string) *OrchestratorError {
	return New(ErrCodeGraphDanglingDep, fmt.Sprintf("task %q depends on %q which does not exist in graph", taskID, depID)).
		WithSuggestion("Check the dependsOn list for typos")
}

// NewTaskNotFoundError creates a missing task error
func NewTaskNotFoundError(id string) *OrchestratorError {
	return New(ErrCodeGraphTaskNotFound, fmt.Sprintf("task not found: %s", id))
}

// NewInvalidTransitionError creates an illegal status transition error
func NewInvalidTransitionError(id, from, to string) *OrchestratorError {
	return New(ErrCodeGraphInvalidTransition, fmt.Sprintf("task %s cannot move from %s to %s", id, from, to))
}

// NewGraphInUseError creates an error for a graph that is already executing
func NewGraphInUseError(graphID string) *OrchestratorError {
	return New(ErrCodeGraphInUse, fmt.Sprintf("graph %s is already being executed", graphID)).
		WithSuggestion("Wait for the running execution to finish before executing again")
}

// NewCyclicDependencyError creates a cycle detection error
func NewCyclicDependencyError(path []string) *OrchestratorError {
	return New(ErrCodeGraphCyclicDep, fmt.Sprintf("circular dependency detected: %s", strings.Join(path, " -> "))).
		WithSuggestion("Remove one of the dependsOn edges along the cycle")
}

// NewGraphNotFoundError creates a repository miss error
func NewGraphNotFoundError(id string) *OrchestratorError {
	return New(ErrCodeStoreNotFound, fmt.Sprintf("graph not found: %s", id))
}

// NewGraphExistsError creates an error for a graph id that is already stored
func NewGraphExistsError(id string) *OrchestratorError {
	return New(ErrCodeStoreConflict, fmt.Sprintf("graph already exists: %s", id)).
		WithSuggestion("Omit the id to have one generated")
}

// NewDependencyBlockedError creates the error recorded on a task that can no
// longer run because depID failed
func NewDependencyBlockedError(depID string) *OrchestratorError {
	return New(ErrCodeEngineBlocked, fmt.Sprintf("blocked by failed dependency %s", depID))
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *OrchestratorError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *OrchestratorError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}

// NewConfigInvalidError creates a configuration validation error
func NewConfigInvalidError(details string) *OrchestratorError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Review orchestrator.yaml or the ORCHESTRATOR_* environment variables")
}

// NewMissingResultError creates an error for a binding whose source task has no result
func NewMissingResultError(taskID, sourceID string) *OrchestratorError {
	return New(ErrCodeEnrichMissingResult, fmt.Sprintf("task %s needs the result of %s, which is not a completed dependency", taskID, sourceID)).
		WithSuggestion("List the source task in dependsOn")
}

// NewMissingFieldError creates an error for a binding whose field is absent from the source result
func NewMissingFieldError(taskID, sourceID, field string) *OrchestratorError {
	return New(ErrCodeEnrichMissingField, fmt.Sprintf("task %s: result of %s has no field %q", taskID, sourceID, field))
}

// NewBadBindingError creates an error for a malformed payload binding
func NewBadBindingError(taskID, detail string) *OrchestratorError {
	return New(ErrCodeEnrichBadBinding, fmt.Sprintf("task %s: invalid binding: %s", taskID, detail))
}
