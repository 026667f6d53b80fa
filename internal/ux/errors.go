package ux

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// hints are attached to plan errors that carry no suggestions of their own.
var hints = map[errors.ErrorCode]string{
	errors.ErrCodePlanNotFound:       "List known plans with 'plancraft plan list'",
	errors.ErrCodeCheckpointNotFound: "List checkpoints with 'plancraft checkpoint list <plan>'",
	errors.ErrCodeDependencyPending:  "Check 'plancraft next <plan> --explain' for what is still open",
	errors.ErrCodePhaseBlocked:       "Unblock the phase with 'plancraft phase unblock <plan> <phase>'",
	errors.ErrCodeParentNotStarted:   "Start the parent task first with 'plancraft task start <plan> <task>'",
	errors.ErrCodeCyclicDependency:   "Remove one of the depends_on edges that form the cycle",
	errors.ErrCodeCheckpointCorrupt:  "Restore an earlier checkpoint with 'plancraft checkpoint restore'",
	errors.ErrCodeStoreUnavailable:   "Check workspace.backend and nats.url in 'plancraft config view'",
	errors.ErrCodeStoreTimeout:       "Raise checkpoint.timeout or check the workspace backend is reachable",
}

// ErrorWithSuggestion wraps an error with a recovery hint.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{Err: err, Suggestion: suggestion}
}

// EnhanceError adds a hint to plan errors whose code has one and which
// carry no suggestions yet. Other errors are returned unchanged.
func EnhanceError(err error) error {
	var pe *errors.PlanError
	if err == nil || !stderrors.As(err, &pe) || len(pe.Suggestions) > 0 {
		return err
	}
	if hint, ok := hints[pe.Code]; ok {
		return NewErrorWithSuggestion(err, hint)
	}
	return err
}

// FormatError renders err for the terminal, prefixing the error kind.
func FormatError(err error, s Styles) string {
	if err == nil {
		return ""
	}
	enhanced := EnhanceError(err)

	var b strings.Builder
	label := "error"
	if k := errors.KindOf(err); k != "" {
		label = strings.ReplaceAll(string(k), "_", " ") + " error"
	}
	b.WriteString(s.Error.Render(label + ":"))
	b.WriteString(" ")
	b.WriteString(enhanced.Error())
	return b.String()
}
