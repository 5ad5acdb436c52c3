package cli

import (
	"errors"
	"fmt"
	"io"
)

const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
	ExitCodeUsage   = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit code %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// Fail marks err as a setup or runtime failure.
func Fail(err error) error {
	if err == nil {
		return nil
	}
	return &ExitError{Code: ExitCodeFailure, Err: err}
}

func usageError(err error) error {
	return &ExitError{Code: ExitCodeUsage, Err: err}
}

// ExitCode reports err on errOut and maps it to a process exit code.
// Errors without an explicit code are usage errors from flag parsing.
func ExitCode(err error, errOut io.Writer) int {
	if err == nil {
		return ExitCodeSuccess
	}
	if errOut != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCodeUsage
}
