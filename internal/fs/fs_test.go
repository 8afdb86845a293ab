package fs_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/fdl66/chongshan/internal/fs"
	rtest "github.com/fdl66/chongshan/internal/test"
)

func fromSlashAbs(p string) string {
	if runtime.GOOS == "windows" && len(p) > 0 && p[0] == '/' {
		p = "c:" + p
	}
	return filepath.FromSlash(p)
}

func TestHasPathPrefix(t *testing.T) {
	var tests = []struct {
		base, p string
		result  bool
	}{
		{".", ".", true},
		{".", "foo", true},
		{"foo", ".", false},
		{"/", "x", false},
		{"/", "/x", true},
		{"/x", "/y", false},
		{"/home/user/foo", "/home", false},
		{"/home/user/foo", "/home/user/foo/bar/baz", true},
		{"/home/user/foo", "/home/user/foobar", false},
		{"user/foo", "./user/foo/", true},
		{"/home/user/foo", "./user/foo/", false},
	}

	for _, test := range tests {
		base := fromSlashAbs(test.base)
		p := fromSlashAbs(test.p)
		if result := fs.HasPathPrefix(base, p); result != test.result {
			t.Errorf("wrong result for HasPathPrefix(%q, %q): want %v, got %v", base, p, test.result, result)
		}
	}
}

func TestTargetPath(t *testing.T) {
	target := fromSlashAbs("/restore")

	for _, test := range []struct {
		name string
		want string
		ok   bool
	}{
		{"a/b.txt", "/restore/a/b.txt", true},
		{"/home/user/x", "/restore/home/user/x", true},
		{"a/../b", "/restore/b", true},
		{"../etc/passwd", "", false},
		{"a/../../x", "", false},
		{"", "", false},
		{".", "", false},
		{"a\x00b", "", false},
	} {
		p, err := fs.TargetPath(target, test.name)
		if !test.ok {
			if err == nil {
				t.Errorf("%q: expected error, got path %q", test.name, p)
			}
			continue
		}
		rtest.OK(t, err)
		rtest.Equals(t, fromSlashAbs(test.want), p)
	}
}

func TestOpenFileRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	rtest.OK(t, fs.MkdirAll(filepath.Join(dir, "sub"), 0700))

	_, err := fs.OpenFile(filepath.Join(dir, "sub"), fs.O_RDONLY, 0)
	rtest.Assert(t, err != nil, "opening a directory should fail")

	f, err := fs.OpenFile(filepath.Join(dir, "file"), fs.O_CREATE|fs.O_WRONLY|fs.O_NOFOLLOW, 0600)
	rtest.OK(t, err)
	rtest.OK(t, f.Close())
	rtest.OK(t, fs.Remove(filepath.Join(dir, "file")))

	_, err = os.Stat(filepath.Join(dir, "file"))
	rtest.Assert(t, os.IsNotExist(err), "file should be removed, got %v", err)
}
