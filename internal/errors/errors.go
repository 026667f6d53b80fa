package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies an error for callers that branch on the failure category
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindInvalidState Kind = "invalid_state"
	KindStorage      Kind = "storage"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error codes grouped by kind
const (
	// Validation errors (VAL-001 to VAL-099)
	ErrCodeEmptyName         ErrorCode = "VAL-001"
	ErrCodeUnknownDependency ErrorCode = "VAL-002"
	ErrCodeCyclicDependency  ErrorCode = "VAL-003"
	ErrCodeOrderCollision    ErrorCode = "VAL-004"
	ErrCodeInvalidContext    ErrorCode = "VAL-005"
	ErrCodeResultMismatch    ErrorCode = "VAL-006"
	ErrCodeInvalidDefinition ErrorCode = "VAL-007"

	// Not found errors (NF-001 to NF-099)
	ErrCodePlanNotFound       ErrorCode = "NF-001"
	ErrCodePhaseNotFound      ErrorCode = "NF-002"
	ErrCodeTaskNotFound       ErrorCode = "NF-003"
	ErrCodeSubtaskNotFound    ErrorCode = "NF-004"
	ErrCodeCheckpointNotFound ErrorCode = "NF-005"

	// Invalid state errors (STATE-001 to STATE-099)
	ErrCodeIllegalTransition ErrorCode = "STATE-001"
	ErrCodeDependencyPending ErrorCode = "STATE-002"
	ErrCodePhaseBlocked      ErrorCode = "STATE-003"
	ErrCodePhaseClosed       ErrorCode = "STATE-004"
	ErrCodeParentNotStarted  ErrorCode = "STATE-005"
	ErrCodeParentClosed      ErrorCode = "STATE-006"

	// Storage errors (STORE-001 to STORE-099)
	ErrCodeStoreWrite        ErrorCode = "STORE-001"
	ErrCodeStoreRead         ErrorCode = "STORE-002"
	ErrCodeStoreTimeout      ErrorCode = "STORE-003"
	ErrCodeStoreUnavailable  ErrorCode = "STORE-004"
	ErrCodeCheckpointCorrupt ErrorCode = "STORE-005"
	ErrCodeEncode            ErrorCode = "STORE-006"
)

// Sentinels for errors.Is matching on kind
var (
	ErrValidation   = stderrors.New("validation error")
	ErrNotFound     = stderrors.New("not found")
	ErrInvalidState = stderrors.New("invalid state")
	ErrStorage      = stderrors.New("storage error")
)

// PlanError is the error type returned by every engine operation
type PlanError struct {
	Code        ErrorCode
	Kind        Kind
	Message     string
	Suggestions []string
	Cause       error
}

func (e *PlanError) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, s := range e.Suggestions {
			fmt.Fprintf(&b, "\n  • %s", s)
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *PlanError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's kind
func (e *PlanError) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(k Kind) error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindInvalidState:
		return ErrInvalidState
	case KindStorage:
		return ErrStorage
	default:
		return nil
	}
}

// New creates a new PlanError
func New(kind Kind, code ErrorCode, message string) *PlanError {
	return &PlanError{
		Code:    code,
		Kind:    kind,
		Message: message,
	}
}

// Wrap creates a new PlanError wrapping an existing error
func Wrap(kind Kind, code ErrorCode, message string, cause error) *PlanError {
	return &PlanError{
		Code:    code,
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *PlanError) WithSuggestion(suggestion string) *PlanError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *PlanError) WithSuggestions(suggestions ...string) *PlanError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// KindOf returns the kind of the first PlanError in err's chain, or "" if none.
func KindOf(err error) Kind {
	var pe *PlanError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// CodeOf returns the code of the first PlanError in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var pe *PlanError
	if stderrors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

func IsValidation(err error) bool   { return stderrors.Is(err, ErrValidation) }
func IsNotFound(err error) bool     { return stderrors.Is(err, ErrNotFound) }
func IsInvalidState(err error) bool { return stderrors.Is(err, ErrInvalidState) }
func IsStorage(err error) bool      { return stderrors.Is(err, ErrStorage) }

// Validation builds a validation error with the given code
func Validation(code ErrorCode, format string, args ...any) *PlanError {
	return New(KindValidation, code, fmt.Sprintf(format, args...))
}

// NotFound builds a not-found error for an entity kind and id
func NotFound(code ErrorCode, entity, id string) *PlanError {
	return New(KindNotFound, code, fmt.Sprintf("%s not found: %s", entity, id))
}

// InvalidState builds an invalid-state error with the given code
func InvalidState(code ErrorCode, format string, args ...any) *PlanError {
	return New(KindInvalidState, code, fmt.Sprintf(format, args...))
}

// Storage wraps an I/O failure as a storage error
func Storage(code ErrorCode, message string, cause error) *PlanError {
	return Wrap(KindStorage, code, message, cause)
}

// NewIllegalTransitionError reports a status change the lifecycle table does not allow
func NewIllegalTransitionError(entity, id, from, to string) *PlanError {
	return InvalidState(ErrCodeIllegalTransition, "%s %s cannot move from %s to %s", entity, id, from, to).
		WithSuggestion(fmt.Sprintf("Run 'plancraft report' to inspect the current status of %s", id))
}

// NewDependencyPendingError reports a phase whose dependency has not completed
func NewDependencyPendingError(phaseID, dependency string) *PlanError {
	return InvalidState(ErrCodeDependencyPending, "phase %s depends on %s which is not completed", phaseID, dependency).
		WithSuggestion(fmt.Sprintf("Complete the tasks of phase %s first", dependency)).
		WithSuggestion("Run 'plancraft next' to see which task is eligible")
}

// NewCheckpointNotFoundError reports an unknown checkpoint id
func NewCheckpointNotFoundError(id string) *PlanError {
	return NotFound(ErrCodeCheckpointNotFound, "checkpoint", id).
		WithSuggestion("Run 'plancraft checkpoint list' to see available checkpoints")
}

// NewStoreTimeoutError reports a storage operation that exceeded its deadline
func NewStoreTimeoutError(op string, cause error) *PlanError {
	return Storage(ErrCodeStoreTimeout, fmt.Sprintf("%s timed out", op), cause).
		WithSuggestion("Increase checkpoint.timeout in the configuration").
		WithSuggestion("Check that the workspace backend is reachable")
}
