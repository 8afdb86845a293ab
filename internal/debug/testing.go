package debug

import (
	"io"
	"log"
	"testing"
)

// TestLogTo sends the debug log of the running test to w, unless a debug log
// is already configured. It returns a function restoring the previous state.
func TestLogTo(_ testing.TB, w io.Writer) func() {
	prev := state
	if !state.enabled {
		state.logger = log.New(w, "", 0)
		state.enabled = true
	}
	return func() {
		state = prev
	}
}
