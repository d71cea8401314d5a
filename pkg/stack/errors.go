package stack

import (
	"fmt"
	"strings"
)

// ErrorClass classifies a pipeline failure. The class decides the
// process exit code and whether anything may already be on disk.
type ErrorClass string

const (
	// ClassValidation indicates malformed input (directory path or
	// address syntax). Always raised before anything is written.
	ClassValidation ErrorClass = "validation"

	// ClassProbe indicates an address-echo probe failure. Recovered
	// internally by the fallback chain; never fatal on its own.
	ClassProbe ErrorClass = "probe"

	// ClassEntropy indicates the cryptographic random source is
	// unavailable. No credentials can be produced.
	ClassEntropy ErrorClass = "entropy"

	// ClassFilesystem indicates a write failure. Artifacts completed
	// earlier in the same run may remain on disk.
	ClassFilesystem ErrorClass = "filesystem"

	// ClassCancelled indicates the operator declined the confirmation
	// gate. Guaranteed to leave no filesystem trace.
	ClassCancelled ErrorClass = "cancelled"
)

// Error is a classified pipeline error.
type Error struct {
	// Class is the failure classification.
	Class ErrorClass

	// Message is the human-readable error message.
	Message string

	// Artifact names the artifact being written when a filesystem
	// failure occurred, if any.
	Artifact string

	// Completed lists artifact paths written successfully before a
	// filesystem failure.
	Completed []string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Class, e.Message)
	if e.Artifact != "" {
		fmt.Fprintf(&b, " (artifact=%s)", e.Artifact)
	}
	if len(e.Completed) > 0 {
		fmt.Fprintf(&b, " (completed: %s)", strings.Join(e.Completed, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on class so callers can test against sentinel classes.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Class == t.Class
}

// ExitCode maps the class to the process exit code.
func (e *Error) ExitCode() int {
	switch e.Class {
	case ClassValidation:
		return 2
	case ClassCancelled:
		return 3
	case ClassFilesystem:
		return 4
	case ClassEntropy:
		return 5
	default:
		return 1
	}
}

// NewValidationError creates a validation-class error.
func NewValidationError(message string, err error) *Error {
	return &Error{Class: ClassValidation, Message: message, Err: err}
}

// NewProbeError creates a probe-class error.
func NewProbeError(message string, err error) *Error {
	return &Error{Class: ClassProbe, Message: message, Err: err}
}

// NewEntropyError creates an entropy-class error.
func NewEntropyError(message string, err error) *Error {
	return &Error{Class: ClassEntropy, Message: message, Err: err}
}

// NewFilesystemError creates a filesystem-class error naming the failed
// artifact and the artifacts completed before it.
func NewFilesystemError(message, artifact string, completed []string, err error) *Error {
	return &Error{
		Class:     ClassFilesystem,
		Message:   message,
		Artifact:  artifact,
		Completed: completed,
		Err:       err,
	}
}

// NewCancelledError creates a cancelled-class error.
func NewCancelledError(message string) *Error {
	return &Error{Class: ClassCancelled, Message: message}
}
