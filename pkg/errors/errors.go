package errors

import (
	"fmt"

	crdberrors "github.com/cockroachdb/errors"
)

// PreconditionError is returned when a caller hands the generator input it
// can never accept, such as an oversized seed.
type PreconditionError struct {
	Message string
	Cause   error
}

func (e *PreconditionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *PreconditionError) Unwrap() error {
	return e.Cause
}

// IsPreconditionError checks if an error is (or wraps) a precondition error
func IsPreconditionError(err error) bool {
	var pe *PreconditionError
	return crdberrors.As(err, &pe)
}

// WrapPreconditionError wraps an existing error as a precondition error
func WrapPreconditionError(err error, message string) *PreconditionError {
	return &PreconditionError{
		Message: message,
		Cause:   err,
	}
}

// PreconditionErrorf creates a new precondition error with formatted message
func PreconditionErrorf(format string, args ...interface{}) *PreconditionError {
	return &PreconditionError{
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Assert panics with an assertion failure when cond is false. It guards
// internal invariants of the generator that no input can violate.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(crdberrors.AssertionFailedf(format, args...))
	}
}

// IsAssertionFailure reports whether v (typically a recovered panic value)
// is an assertion failure raised by Assert.
func IsAssertionFailure(v interface{}) bool {
	err, ok := v.(error)
	if !ok {
		return false
	}
	return crdberrors.IsAssertionFailure(err)
}
