//go:build !(darwin || dragonfly || freebsd || netbsd || openbsd || linux || solaris)

package progress

import "os"

var progressSignals []os.Signal
