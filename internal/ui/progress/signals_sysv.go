//go:build linux || solaris

package progress

import (
	"os"
	"syscall"
)

var progressSignals = []os.Signal{syscall.SIGUSR1}
