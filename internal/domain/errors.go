package domain

import "errors"

// Common domain errors
var (
	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionArchived = errors.New("session is archived")
	ErrSessionDone     = errors.New("session workflow is done")

	// Workflow errors
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrProposalPending   = errors.New("a mutation proposal is already pending")
	ErrNoProposalPending = errors.New("no mutation proposal is pending")
	ErrBatchInFlight     = errors.New("a batch run is still in flight")

	// Input errors
	ErrInputNotFound = errors.New("input not found")
	ErrNoInputs      = errors.New("session has no inputs")

	// Version lineage errors
	ErrVersionNotFound     = errors.New("prompt version not found")
	ErrVersionNotAccepted  = errors.New("prompt version is not accepted")
	ErrCrossSessionLineage = errors.New("parent version belongs to a different session")
	ErrParentNotOlder      = errors.New("parent version number must be smaller than the child's")

	// Run result errors
	ErrResultNotFound     = errors.New("run result not found")
	ErrFeedbackAlreadySet = errors.New("feedback has already been recorded for this result")
	ErrInvalidFeedback    = errors.New("invalid feedback verdict")
	ErrInvalidComparison  = errors.New("invalid comparison outcome")

	// Aggregation errors
	ErrEmptyFeedback = errors.New("no judged results to aggregate")

	// Validation errors
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidID    = errors.New("invalid ID")
	ErrNotFound     = errors.New("resource not found")
)

// DomainError wraps a domain error with additional context
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

// CompletionErrorKind classifies completion provider failures so callers can
// apply provider-specific recovery.
type CompletionErrorKind string

const (
	CompletionErrorRateLimit CompletionErrorKind = "rate_limit"
	CompletionErrorAuth      CompletionErrorKind = "auth"
	CompletionErrorNetwork   CompletionErrorKind = "network"
)

// CompletionError is returned by the completion capability. Rate-limit and
// network errors may be retried with bounded backoff at the batch-execution
// layer; auth errors are fatal to the batch and surfaced immediately.
type CompletionError struct {
	Kind CompletionErrorKind
	Err  error
}

func (e *CompletionError) Error() string {
	return "completion provider error (" + string(e.Kind) + "): " + e.Err.Error()
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the batch-execution layer may retry the call.
func (e *CompletionError) Retryable() bool {
	return e.Kind == CompletionErrorRateLimit || e.Kind == CompletionErrorNetwork
}

func NewCompletionError(kind CompletionErrorKind, err error) *CompletionError {
	return &CompletionError{Kind: kind, Err: err}
}
