package container

import (
	"io"

	"github.com/fdl66/chongshan/internal/errors"
)

// ErrNotFound is returned by stores for unknown container ids.
var ErrNotFound = errors.New("container not found")

// IsNotFound reports whether err means the container does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsShortRead reports whether err means a request reached past the data
// section of a container.
func IsShortRead(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}

// CheckRange returns an error if [offset, offset+length) is not within a data
// section of the given size.
func CheckRange(offset int64, length int, size int64) error {
	if offset < 0 || length < 0 {
		return errors.Errorf("invalid range offset %d length %d", offset, length)
	}
	if offset+int64(length) > size {
		return errors.Wrapf(io.ErrUnexpectedEOF, "range %d+%d beyond data section of %d bytes", offset, length, size)
	}
	return nil
}
