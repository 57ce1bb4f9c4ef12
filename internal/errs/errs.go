package errs

import (
	"errors"
	"fmt"
)

// Process exit codes. This is a fixed contract: CI gates key off these values.
const (
	ExitSuccess     = 0
	ExitBlocked     = 1
	ExitExecFailure = 2
)

// BlockedError reports that a prerequisite is unmet (for example, the
// viewpoint binary is not installed). The run cannot proceed, but nothing
// malfunctioned.
type BlockedError struct {
	Message string
	Err     error
}

func (e *BlockedError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *BlockedError) Unwrap() error { return e.Err }

// ExecFailureError reports invalid input, malformed output, or a runtime
// failure. Schema violations and bad configuration land here.
type ExecFailureError struct {
	Message string
	Err     error
}

func (e *ExecFailureError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ExecFailureError) Unwrap() error { return e.Err }

// Blocked creates a BlockedError with a formatted message.
func Blocked(format string, args ...any) error {
	return &BlockedError{Message: fmt.Sprintf(format, args...)}
}

// BlockedWrap wraps err as a BlockedError.
func BlockedWrap(err error, format string, args ...any) error {
	return &BlockedError{Message: fmt.Sprintf(format, args...), Err: err}
}

// ExecFailure creates an ExecFailureError with a formatted message.
func ExecFailure(format string, args ...any) error {
	return &ExecFailureError{Message: fmt.Sprintf(format, args...)}
}

// ExecFailureWrap wraps err as an ExecFailureError.
func ExecFailureWrap(err error, format string, args ...any) error {
	return &ExecFailureError{Message: fmt.Sprintf(format, args...), Err: err}
}

// IsBlocked reports whether err is (or wraps) a BlockedError.
func IsBlocked(err error) bool {
	var be *BlockedError
	return errors.As(err, &be)
}

// IsExecFailure reports whether err is (or wraps) an ExecFailureError.
func IsExecFailure(err error) bool {
	var ee *ExecFailureError
	return errors.As(err, &ee)
}

// Kind labels an error for artifacts and logs: "blocked", "exec_failure",
// or "unexpected" for anything not classified. Anything unexpected is
// treated as an execution failure for exit-status purposes.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsBlocked(err):
		return "blocked"
	case IsExecFailure(err):
		return "exec_failure"
	default:
		return "unexpected"
	}
}

// ExitCode maps an error to the process exit code contract.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case IsBlocked(err):
		return ExitBlocked
	default:
		return ExitExecFailure
	}
}
