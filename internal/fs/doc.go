// Package fs wraps the file system calls used to materialize restored files.
// Paths are resolved below a restore target and never follow symlinks
// when opening the files written.
package fs
