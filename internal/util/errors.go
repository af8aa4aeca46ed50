// Package util provides exit code handling shared by the autolock commands.
package util

import (
	"errors"
	"fmt"
	"os"

	"github.com/autolock-cli/autolock/internal/lock"
)

// Exit codes
const (
	ExitOK           = 0
	ExitError        = 1
	ExitInvalidInput = 2
	ExitLocked       = 3
)

// ErrInvalidInput is returned for malformed command line input
var ErrInvalidInput = errors.New("invalid input")

// ExitStatus carries the exit status of a wrapped program so it can be
// returned unchanged.
type ExitStatus struct {
	Code int
}

func (e *ExitStatus) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps an error to a process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var status *ExitStatus
	switch {
	case errors.As(err, &status):
		return status.Code
	case errors.Is(err, lock.ErrAlreadyLocked):
		return ExitLocked
	case errors.Is(err, lock.ErrInvalidMode), errors.Is(err, ErrInvalidInput):
		return ExitInvalidInput
	default:
		return ExitError
	}
}

// ExitWithCode exits the program with the specified code and message
func ExitWithCode(code int, format string, args ...interface{}) {
	if format != "" {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
	os.Exit(code)
}

// HandleError exits with the code mapped from err. Exit statuses of wrapped
// programs are passed through silently; the program already reported.
func HandleError(err error, context string) {
	if err == nil {
		return
	}

	code := ExitCode(err)

	if _, ok := err.(*ExitStatus); ok {
		ExitWithCode(code, "")
	}

	if context != "" {
		ExitWithCode(code, "Error: %s - %v", context, err)
	}
	ExitWithCode(code, "Error: %v", err)
}

// WrapError wraps an error with additional context
func WrapError(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
