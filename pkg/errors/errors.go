package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure by how the caller should react to it, not by
// where it happened.
type Kind int

const (
	// KindCaller marks invalid input or identity; surfaced as a 4xx.
	KindCaller Kind = iota + 1
	// KindDegraded marks an unavailable optional dependency; the affected
	// field degrades to its documented default and the request succeeds.
	KindDegraded
	// KindFatal marks a dependency without a meaningful degraded substitute;
	// surfaced as a 5xx.
	KindFatal
	// KindInternal marks an unexpected internal failure.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindCaller:
		return "caller"
	case KindDegraded:
		return "degraded"
	case KindFatal:
		return "fatal"
	case KindInternal:
		return "internal"
	}
	return "unknown"
}

// Error is the error type operations return. Op names the failing operation
// ("store.Persist"), Kind says how to react.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error with no underlying cause.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches kind and op to an underlying error. Returns nil for nil err,
// as a plain error so callers' nil checks behave.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrapf is Wrap with an additional formatted message.
func Wrapf(kind Kind, op string, err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from an error chain; unclassified errors report
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's chain matching target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }
