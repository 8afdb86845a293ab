//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package progress

import (
	"os"
	"syscall"
)

var progressSignals = []os.Signal{syscall.SIGINFO, syscall.SIGUSR1}
