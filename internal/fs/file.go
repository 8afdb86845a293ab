package fs

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/fdl66/chongshan/internal/errors"
)

// Flags for OpenFile.
const (
	O_RDONLY int = os.O_RDONLY
	O_WRONLY int = os.O_WRONLY
	O_CREATE int = os.O_CREATE
	O_TRUNC  int = os.O_TRUNC
)

// MkdirAll creates a directory named path, along with any necessary parents.
func MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(fixpath(path), perm)
}

// OpenFile opens the named file with the given flags. The file must be a
// regular file once opened.
func OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(fixpath(name), flag, perm)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !fi.Mode().IsRegular() {
		_ = f.Close()
		return nil, errors.Errorf("unexpected file type %v at %q", fi.Mode().Type(), name)
	}
	return f, nil
}

// Remove removes the named file or directory.
func Remove(name string) error {
	return os.Remove(fixpath(name))
}

// TargetPath returns the location of the recipe file name below target. Both
// absolute and relative names are placed below target; names that would
// resolve outside of it are rejected.
func TargetPath(target, name string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) {
		return "", errors.Errorf("invalid file name %q", name)
	}

	p := filepath.Join(target, filepath.FromSlash(name))
	if !HasPathPrefix(target, p) {
		return "", errors.Errorf("file name %q escapes the restore target", name)
	}
	if filepath.Clean(p) == filepath.Clean(target) {
		return "", errors.Errorf("file name %q refers to the restore target itself", name)
	}
	return p, nil
}
