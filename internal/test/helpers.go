// Package test provides the assertion helpers used by all tests.
package test

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	red   = "\033[31m"
	reset = "\033[39m"
)

func fail(tb testing.TB, msg string) {
	tb.Helper()
	tb.Fatalf("%s%s%s", red, msg, reset)
}

// Assert fails the test if the condition is false.
func Assert(tb testing.TB, condition bool, msg string, v ...interface{}) {
	tb.Helper()
	if !condition {
		fail(tb, fmt.Sprintf(msg, v...))
	}
}

// OK fails the test if err is not nil.
func OK(tb testing.TB, err error) {
	tb.Helper()
	if err != nil {
		fail(tb, fmt.Sprintf("unexpected error: %+v", err))
	}
}

// allFields lets cmp look into unexported fields, only used to describe a
// mismatch.
var allFields = cmp.Exporter(func(reflect.Type) bool { return true })

// Equals fails the test if exp and act are not deeply equal.
func Equals(tb testing.TB, exp, act interface{}) {
	tb.Helper()
	if reflect.DeepEqual(exp, act) {
		return
	}
	fail(tb, fmt.Sprintf("\n\texp: %#v\n\tgot: %#v\n\tdiff (-exp +got):\n%s", exp, act, cmp.Diff(exp, act, allFields)))
}

// Random returns count bytes of pseudo-random data derived from seed.
func Random(seed, count int) []byte {
	p := make([]byte, count)
	rnd := rand.New(rand.NewSource(int64(seed)))
	// Read from a math/rand source never fails.
	_, _ = rnd.Read(p)
	return p
}
