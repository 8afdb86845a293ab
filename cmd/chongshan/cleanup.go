package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fdl66/chongshan/internal/debug"
)

var cleanupHandlers struct {
	sync.Mutex
	list []func() error
}

// AddCleanupHandler registers fn to be run before the process exits.
func AddCleanupHandler(fn func() error) {
	cleanupHandlers.Lock()
	defer cleanupHandlers.Unlock()
	cleanupHandlers.list = append(cleanupHandlers.list, fn)
}

// runCleanupHandlers runs all handlers in reverse order of registration.
func runCleanupHandlers() {
	cleanupHandlers.Lock()
	defer cleanupHandlers.Unlock()

	for i := len(cleanupHandlers.list) - 1; i >= 0; i-- {
		if err := cleanupHandlers.list[i](); err != nil {
			debug.Log("cleanup handler failed: %v", err)
		}
	}
	cleanupHandlers.list = nil
}

func createGlobalContext(stderr io.Writer) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	ch := make(chan os.Signal, 1)
	go cleanupHandler(ch, cancel, stderr)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	return ctx
}

// cleanupHandler cancels the running restore on SIGINT and SIGTERM. The
// stages stop, the open file is closed and the command returns.
func cleanupHandler(c <-chan os.Signal, cancel context.CancelFunc, stderr io.Writer) {
	s := <-c
	debug.Log("signal %v received, cleaning up", s)
	_, _ = fmt.Fprintf(stderr, "\rsignal %v received, cleaning up\n", s)

	if val, _ := os.LookupEnv("CHONGSHAN_DEBUG_STACKTRACE_SIGINT"); val != "" {
		_, _ = os.Stderr.WriteString("\n--- STACKTRACE START ---\n\n")
		_, _ = os.Stderr.WriteString(debug.DumpStacktrace())
		_, _ = os.Stderr.WriteString("\n--- STACKTRACE END ---\n")
	}

	cancel()
}

// Exit runs the cleanup handlers and terminates the process with the given
// exit code.
func Exit(code int) {
	runCleanupHandlers()
	debug.Log("exiting with status code %d", code)
	os.Exit(code)
}
