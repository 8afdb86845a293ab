package errors

import "fmt"

// fatalError is shown to the operator without a stack trace, the process
// then exits with status 1.
type fatalError struct {
	msg   string
	cause error
}

func (e *fatalError) Error() string { return "Fatal: " + e.msg }

func (e *fatalError) Unwrap() error { return e.cause }

// IsFatal reports whether err is a fatal error. Consistency faults are always
// fatal.
func IsFatal(err error) bool {
	var fatal *fatalError
	return As(err, &fatal) || IsConsistency(err)
}

// Fatal returns a fatal error with message s.
func Fatal(s string) error {
	return WithStack(&fatalError{msg: s})
}

// Fatalf returns a fatal error with a formatted message. The last error among
// args becomes the cause, so errors.Is still finds it.
func Fatalf(format string, args ...interface{}) error {
	e := &fatalError{msg: fmt.Sprintf(format, args...)}
	for i := len(args) - 1; i >= 0 && e.cause == nil; i-- {
		e.cause, _ = args[i].(error)
	}
	return WithStack(e)
}
