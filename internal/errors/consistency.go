package errors

import (
	"errors"
	"fmt"
)

// consistencyError reports that the recipe or container store contradicts
// itself, e.g. a fingerprint is missing from the container the recipe points
// to. The restore cannot produce correct output and must stop.
type consistencyError struct {
	msg string
}

func (e *consistencyError) Error() string {
	return "consistency fault: " + e.msg
}

// Consistency returns a new consistency fault with a stack trace attached.
func Consistency(format string, args ...interface{}) error {
	return WithStack(&consistencyError{msg: fmt.Sprintf(format, args...)})
}

// IsConsistency returns true if err is or wraps a consistency fault.
func IsConsistency(err error) bool {
	var c *consistencyError
	return errors.As(err, &c)
}
