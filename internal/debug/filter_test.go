package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestFilterMatch(t *testing.T) {
	f := filter{
		"*/pattern.go:*": true,
		"*/lru.go:12":    false,
		"all":            true,
	}

	for _, test := range []struct {
		key  string
		want bool
	}{
		{"restorer/pattern.go:40", true},
		{"restorer/lru.go:12", false},
		{"restorer/assembly.go:3", true},
	} {
		if got := f.match(test.key); got != test.want {
			t.Errorf("match(%q) = %v, want %v", test.key, got, test.want)
		}
	}

	if (filter{}).match("restorer/lru.go:1") {
		t.Errorf("empty filter must not match")
	}
}

func TestParseFilter(t *testing.T) {
	f, err := parseFilter("pattern.go, -lru.go:12,+restorer/*", fileKey)
	if err != nil {
		t.Fatal(err)
	}

	want := filter{
		"*/pattern.go:*": true,
		"*/lru.go:12":    false,
		"restorer/*:*":   true,
	}
	if len(f) != len(want) {
		t.Fatalf("got %v, want %v", f, want)
	}
	for k, v := range want {
		if f[k] != v {
			t.Errorf("entry %q: got %v, want %v", k, f[k], v)
		}
	}

	if _, err := parseFilter("[", fileKey); err == nil {
		t.Errorf("expected error for invalid pattern")
	}
}

func TestFileKey(t *testing.T) {
	for in, want := range map[string]string{
		"pattern.go":          "*/pattern.go:*",
		"restorer/pattern.go": "restorer/pattern.go:*",
		"pattern.go:17":       "*/pattern.go:17",
		"all":                 "all",
	} {
		if got := fileKey(in); got != want {
			t.Errorf("fileKey(%q) = %q, want %q", in, got, want)
		}
	}
}

type shortID int

func (s shortID) Str() string { return "short" }

func TestLogShortens(t *testing.T) {
	if state.enabled {
		t.Skip("debug log configured by environment")
	}

	var buf bytes.Buffer
	defer TestLogTo(t, &buf)()

	Log("container %v read", shortID(7))
	out := buf.String()
	if !strings.Contains(out, "debug/filter_test.go:") || !strings.HasSuffix(out, "container short read\n") {
		t.Errorf("unexpected log line %q", out)
	}
}
