package local

import (
	"os"

	"github.com/fdl66/chongshan/internal/debug"

	"golang.org/x/sys/unix"
)

// adviseRandom tells the kernel to skip readahead, restores jump between
// chunks of many containers.
func adviseRandom(f *os.File) {
	if err := unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_RANDOM); err != nil {
		debug.Log("fadvise %v: %v", f.Name(), err)
	}
}
