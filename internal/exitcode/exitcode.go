// Package exitcode maps command errors to process exit codes.
package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/plancraft/internal/errors"
)

// Exit codes returned by the plancraft binary.
const (
	Success      = 0
	GeneralError = 1
	// UsageError covers bad flags, missing arguments and unknown commands.
	UsageError   = 2
	Validation   = 3
	NotFound     = 4
	InvalidState = 5
	StorageError = 6
	// Interrupted follows the shell convention of 128+SIGINT.
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with the code DetermineExitCode picks for err.
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode returns the exit code for err. Plan errors map by kind;
// cobra usage failures are recognized by message.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}
	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	switch errors.KindOf(err) {
	case errors.KindValidation:
		return Validation
	case errors.KindNotFound:
		return NotFound
	case errors.KindInvalidState:
		return InvalidState
	case errors.KindStorage:
		return StorageError
	}

	msg := strings.ToLower(err.Error())
	for _, usage := range []string{"unknown command", "unknown flag", "unknown shorthand flag",
		"invalid argument", "required flag", "accepts ", "requires at least", "requires exactly"} {
		if strings.Contains(msg, usage) {
			return UsageError
		}
	}
	return GeneralError
}

// Description returns a human-readable description of an exit code
func Description(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case Validation:
		return "Validation error"
	case NotFound:
		return "Entity not found"
	case InvalidState:
		return "Operation not allowed in the current state"
	case StorageError:
		return "Storage error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
