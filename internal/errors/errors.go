// Package errors wraps github.com/pkg/errors and adds the two error classes
// the restore engine distinguishes: fatal operator errors and internal
// consistency faults.
package errors

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

// The constructors of github.com/pkg/errors record a stack trace at the
// caller. They are re-exported as variables so this package does not show up
// in the trace.
var (
	New       = errors.New
	Errorf    = errors.Errorf
	Wrap      = errors.Wrap
	Wrapf     = errors.Wrapf
	WithStack = errors.WithStack
)

// As finds the first error in err's tree that matches target.
func As(err error, target interface{}) bool { return stderrors.As(err, target) }

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// Join returns an error wrapping all non-nil errs.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// Unwrap returns the error err wraps, if any.
func Unwrap(err error) error { return stderrors.Unwrap(err) }
