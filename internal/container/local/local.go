// Package local implements a container store in a local directory. Every
// container is one file, placed in a subdirectory named after the low byte of
// its id.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/fdl66/chongshan/internal/container"
	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
)

const (
	ext      = ".ctr"
	dirMode  = 0700
	fileMode = 0400
)

// Store is a container store in a local directory.
type Store struct {
	path string
}

// ensure statically that *Store implements dedup.ContainerStore.
var _ dedup.ContainerStore = &Store{}

// Open opens the container directory at path.
func Open(ctx context.Context, path string) (*Store, error) {
	debug.Log("open local container store at %v", path)
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "open container store")
	}
	if !fi.IsDir() {
		return nil, errors.Fatalf("container store %v is not a directory", path)
	}
	return &Store{path: path}, ctx.Err()
}

// Create creates the container directory at path.
func Create(ctx context.Context, path string) (*Store, error) {
	debug.Log("create local container store at %v", path)
	if err := os.MkdirAll(path, dirMode); err != nil {
		return nil, errors.WithStack(err)
	}
	return &Store{path: path}, ctx.Err()
}

// Location returns the store directory.
func (s *Store) Location() string {
	return s.path
}

// Filename returns the path of the file holding container id.
func (s *Store) Filename(id dedup.ContainerID) string {
	return filepath.Join(s.path, fmt.Sprintf("%02x", uint64(id)&0xff), fmt.Sprintf("%016x%s", uint64(id), ext))
}

// Save atomically stores the encoded container buf under id.
func (s *Store) Save(ctx context.Context, id dedup.ContainerID, buf []byte) (err error) {
	debug.Log("Save %v, %d bytes", id.Str(), len(buf))

	finalname := s.Filename(id)
	dir := filepath.Dir(finalname)

	if err := os.MkdirAll(dir, dirMode); err != nil {
		return errors.WithStack(err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(finalname)+"-tmp-")
	if err != nil {
		return errors.WithStack(err)
	}

	defer func(f *os.File) {
		if err != nil {
			_ = f.Close() // Double Close is harmless.
			_ = os.Remove(f.Name())
		}
	}(f)

	if _, err = f.Write(buf); err != nil {
		return errors.WithStack(err)
	}

	// Ignore error if filesystem does not support fsync.
	err = f.Sync()
	if err != nil && !errors.Is(err, syscall.ENOTSUP) {
		return errors.WithStack(err)
	}

	if err = f.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err = os.Rename(f.Name(), finalname); err != nil {
		return errors.WithStack(err)
	}

	// try to mark file as read-only, some filesystems refuse the chmod call
	if err = os.Chmod(finalname, fileMode); err != nil && !os.IsPermission(err) {
		return errors.WithStack(err)
	}

	return ctx.Err()
}

func (s *Store) open(id dedup.ContainerID) (*os.File, int64, error) {
	f, err := os.Open(s.Filename(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, 0, errors.Wrapf(container.ErrNotFound, "container %d", id)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, errors.WithStack(err)
	}

	adviseRandom(f)
	return f, fi.Size(), nil
}

// FetchContainer reads and decodes the complete container id.
func (s *Store) FetchContainer(ctx context.Context, id dedup.ContainerID) (*dedup.Container, error) {
	debug.Log("FetchContainer %v", id.Str())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := os.ReadFile(s.Filename(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrapf(container.ErrNotFound, "container %d", id)
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return container.Decode(id, buf)
}

// FetchContainerMeta reads only the trailer and metadata of container id.
func (s *Store) FetchContainerMeta(ctx context.Context, id dedup.ContainerID) (*dedup.ContainerMeta, error) {
	debug.Log("FetchContainerMeta %v", id.Str())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, size, err := s.open(id)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	return container.ReadMeta(f, size, id)
}

// ReadRange reads len(buf) bytes at offset of the data section of container
// id. Ranges reaching into the container metadata are rejected.
func (s *Store) ReadRange(ctx context.Context, id dedup.ContainerID, offset int64, buf []byte) error {
	debug.Log("ReadRange %v, offset %v, length %v", id.Str(), offset, len(buf))
	if err := ctx.Err(); err != nil {
		return err
	}

	f, size, err := s.open(id)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	_, dataSize, err := container.ReadTrailer(f, size, id)
	if err != nil {
		return err
	}

	if err := container.CheckRange(offset, len(buf), dataSize); err != nil {
		return errors.Wrapf(err, "container %d", id)
	}

	if err := container.ReadAt(f, buf, offset); err != nil {
		return errors.Wrapf(err, "container %d: ReadAt", id)
	}
	return nil
}

// List calls fn for every stored container id.
func (s *Store) List(ctx context.Context, fn func(dedup.ContainerID) error) error {
	return filepath.WalkDir(s.path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}

		v, err := strconv.ParseUint(strings.TrimSuffix(d.Name(), ext), 16, 64)
		if err != nil {
			debug.Log("ignoring file %v: %v", path, err)
			return nil
		}
		return fn(dedup.ContainerID(v))
	})
}

// Close releases nothing, containers are opened per request.
func (s *Store) Close() error {
	return nil
}
