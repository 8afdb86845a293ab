// Package debug implements an environment-controlled debug log.
//
// CHONGSHAN_DEBUG_LOG names a file all messages are appended to.
// CHONGSHAN_DEBUG_FUNCS and CHONGSHAN_DEBUG_FILES hold comma separated glob
// patterns; matching messages are also printed to stderr. A leading '-'
// disables a pattern, "all" matches everything.
package debug

import (
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
)

// filter maps glob patterns to whether a match enables output.
type filter map[string]bool

func parseFilter(list string, normalize func(string) string) (filter, error) {
	f := make(filter)
	for _, item := range strings.Split(list, ",") {
		p := strings.TrimSpace(item)
		enable := !strings.HasPrefix(p, "-")
		p = normalize(strings.TrimLeft(p, "+-"))
		if p == "" {
			continue
		}
		if _, err := path.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		f[p] = enable
	}
	return f, nil
}

// match reports whether key is enabled. Exact entries win over patterns,
// "all" applies last.
func (f filter) match(key string) bool {
	if v, ok := f[key]; ok {
		return v
	}
	for p, v := range f {
		if ok, _ := path.Match(p, key); ok {
			return v
		}
	}
	return f["all"]
}

// fileKey turns a file filter into the "dir/file.go:line" form used for
// positions.
func fileKey(s string) string {
	if s == "all" || s == "" {
		return s
	}
	if !strings.Contains(s, "/") {
		s = "*/" + s
	}
	if !strings.Contains(s, ":") {
		s += ":*"
	}
	return s
}

type debugLog struct {
	enabled bool
	logger  *log.Logger
	stderr  io.Writer
	funcs   filter
	files   filter
}

var state debugLog

// initialise before any init() function runs so that package init code may log
var _ = setup()

func setup() bool {
	state.stderr = os.Stderr

	if name := os.Getenv("CHONGSHAN_DEBUG_LOG"); name != "" {
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "unable to open debug log file: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "debug log file %v\n", name)
		state.logger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
	}

	var err error
	if state.funcs, err = parseFilter(os.Getenv("CHONGSHAN_DEBUG_FUNCS"), strings.TrimSpace); err == nil {
		state.files, err = parseFilter(os.Getenv("CHONGSHAN_DEBUG_FILES"), fileKey)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(5)
	}

	state.enabled = state.logger != nil || len(state.funcs) > 0 || len(state.files) > 0
	if state.enabled {
		fmt.Fprintf(os.Stderr, "debug enabled\n")
	}
	return state.enabled
}

// goroutineID parses the id from the first line of the stack trace.
func goroutineID() int {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	var id int
	_, _ = fmt.Sscanf(string(buf[:n]), "goroutine %d ", &id)
	return id
}

func caller(skip int) (fn, pos string) {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return "?", "?:0"
	}
	pos = fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
	return path.Base(runtime.FuncForPC(pc).Name()), pos
}

// Log writes a message to the debug log. Arguments with a Str method, such
// as fingerprints, are printed in their short form.
func Log(format string, args ...interface{}) {
	if !state.enabled {
		return
	}

	fn, pos := caller(1)
	for i, arg := range args {
		if s, ok := arg.(interface{ Str() string }); ok {
			args[i] = s.Str()
		}
	}

	msg := fmt.Sprintf(format, args...)
	line := fmt.Sprintf("%s\t%s\t%d\t%s", pos, fn, goroutineID(), strings.TrimSuffix(msg, "\n")) + "\n"

	if state.logger != nil {
		state.logger.Print(line)
	}
	if state.files.match(pos) || state.funcs.match(fn) {
		_, _ = io.WriteString(state.stderr, line)
	}
}
