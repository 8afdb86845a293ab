//go:build windows

package fs

import (
	"path/filepath"
	"strings"
)

// fixpath returns an absolute path with the extended-length prefix, so long
// file names can be opened.
func fixpath(name string) string {
	abspath, err := filepath.Abs(name)
	if err != nil {
		return name
	}
	if strings.HasPrefix(abspath, `\\?\`) {
		return abspath
	}
	if strings.HasPrefix(abspath, `\\`) {
		return `\\?\UNC\` + abspath[2:]
	}
	return `\\?\` + abspath
}
