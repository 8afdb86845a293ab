package errors_test

import (
	"context"
	"testing"

	"github.com/fdl66/chongshan/internal/errors"
)

func TestIsFatal(t *testing.T) {
	tests := map[string]struct {
		err   error
		fatal bool
	}{
		"fatal":             {errors.Fatal("no restore target given"), true},
		"fatalf":            {errors.Fatalf("invalid cache size %d", -1), true},
		"consistency":       {errors.Consistency("fingerprint %v missing", "abcd"), true},
		"wrapped fault":     {errors.Wrap(errors.Consistency("x"), "fetch"), true},
		"wrapped fatal":     {errors.Wrapf(errors.Fatal("x"), "option %v", "cache.lru"), true},
		"plain":             {errors.New("read failed"), false},
		"context cancelled": {errors.Wrap(context.Canceled, "restore"), false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if got := errors.IsFatal(test.err); got != test.fatal {
				t.Errorf("IsFatal(%v) = %v, want %v", test.err, got, test.fatal)
			}
		})
	}
}

func TestFatalfCause(t *testing.T) {
	cause := errors.New("permission denied")
	err := errors.Fatalf("unable to open %v: %v", "recipes.db", cause)

	if msg := err.Error(); msg != "Fatal: unable to open recipes.db: permission denied" {
		t.Errorf("unexpected message %q", msg)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not found in fatal error")
	}
	if errors.Unwrap(errors.Unwrap(errors.Fatal("plain"))) != nil {
		t.Error("fatal error without cause unwraps to non-nil")
	}
}

func TestConsistency(t *testing.T) {
	err := errors.Wrap(errors.Consistency("chunk %d missing", 7), "pattern read")
	if !errors.IsConsistency(err) {
		t.Fatal("wrapped consistency fault not detected")
	}
	if err.Error() != "pattern read: consistency fault: chunk 7 missing" {
		t.Errorf("unexpected error message: %v", err.Error())
	}
	if errors.IsConsistency(errors.Fatal("config")) {
		t.Error("fatal error reported as consistency fault")
	}
}
