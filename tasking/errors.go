package tasking

import (
	"errors"
	"fmt"
)

// RunError is the error a finished run reports through Tree.Result.
//
// The taxonomy is deliberately small. A leaf failure and a setup rejection
// both surface at the root as TASK_FAILED once every enclosing group chose
// to escalate rather than absorb them; there is no implicit global error
// channel beside the root outcome. CANCELED covers force-stops requested
// through Stop, Destroy or a Run context expiring: no real failure
// occurred, but the run never reached a normal terminus.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// RunToken identifies the affected run for trace correlation.
	RunToken string

	// Cause is the underlying error, if any (e.g. the Run context's
	// deadline error).
	Cause error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeTaskFailed indicates the root group's final outcome was
	// failure: some child failure was escalated all the way up.
	ErrCodeTaskFailed RunErrorCode = "TASK_FAILED"

	// ErrCodeCanceled indicates the run was force-stopped before reaching
	// a normal terminus.
	ErrCodeCanceled RunErrorCode = "CANCELED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.RunToken != "" {
		return fmt.Sprintf("%s: %s (run=%s)", e.Code, e.Message, e.RunToken)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *RunError) Unwrap() error { return e.Cause }

// IsCanceled reports whether err is a cancellation RunError. Handles
// wrapped errors via errors.As.
func IsCanceled(err error) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCanceled
	}
	return false
}
