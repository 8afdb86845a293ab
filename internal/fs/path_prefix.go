package fs

import "path/filepath"

// HasPathPrefix returns true if p is base or lies below it. Both paths must be
// of the same type, absolute or relative, and on the same volume.
func HasPathPrefix(base, p string) bool {
	if filepath.VolumeName(base) != filepath.VolumeName(p) {
		return false
	}
	if filepath.IsAbs(base) != filepath.IsAbs(p) {
		return false
	}

	base = filepath.Clean(base)
	for p = filepath.Clean(p); ; {
		if p == base {
			return true
		}
		dir := filepath.Dir(p)
		if dir == p {
			return false
		}
		p = dir
	}
}
