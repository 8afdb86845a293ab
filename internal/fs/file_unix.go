//go:build !windows

package fs

func fixpath(name string) string {
	return name
}
