// Package exitcode maps command results to process exit codes.
package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/Kingmaker16/codex-os/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success: the command finished and every task it ran is done.
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// InvalidInput covers malformed graphs, route tables and configuration.
	InvalidInput = 3

	// Incomplete means execution ended stuck or capped with tasks pending.
	Incomplete = 4

	// TaskFailures means execution completed but some tasks failed.
	TaskFailures = 5

	// Unavailable covers store and downstream service failures.
	Unavailable = 6

	// Interrupted follows the shell convention for SIGINT.
	Interrupted = 130
)

// Error carries an explicit exit code through cobra's error return.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return GetExitCodeDescription(e.Code)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// WithCode wraps err so DetermineExitCode returns code.
func WithCode(code int, err error) error {
	return &Error{Code: code, Err: err}
}

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode picks the exit code for err: an explicit *Error wins,
// then the orchestrator error code family, then cobra's usage messages.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	code := string(errors.CodeOf(err))
	switch {
	case code == string(errors.ErrCodeEngineCancelled):
		return Interrupted
	case strings.HasPrefix(code, "GRAPH-"),
		strings.HasPrefix(code, "IO-"),
		strings.HasPrefix(code, "CONFIG-"),
		strings.HasPrefix(code, "ROUTE-"):
		return InvalidInput
	case strings.HasPrefix(code, "STORE-"),
		strings.HasPrefix(code, "INVOKE-"):
		return Unavailable
	}

	// cobra reports flag and argument problems as plain errors
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unknown flag", "unknown command", "invalid argument", "required flag", "accepts "} {
		if strings.Contains(msg, marker) {
			return UsageError
		}
	}

	return GeneralError
}

// ForOutcome returns the exit code of a finished execution.
func ForOutcome(outcome string, failed int) int {
	switch outcome {
	case "completed":
		if failed > 0 {
			return TaskFailures
		}
		return Success
	case "cancelled":
		return Interrupted
	default:
		return Incomplete
	}
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case InvalidInput:
		return "Invalid graph, route table or configuration"
	case Incomplete:
		return "Execution ended with tasks still pending"
	case TaskFailures:
		return "Execution completed with failed tasks"
	case Unavailable:
		return "Store or downstream service unavailable"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
