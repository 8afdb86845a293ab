// Package recipe contains the in-memory recipe store and the writer used to
// assemble backup versions.
package recipe

import (
	"context"
	"io"
	"sync"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
)

// ErrVersionNotFound is returned when opening an unknown backup version.
var ErrVersionNotFound = errors.New("backup version not found")

// File is the recipe of one file: its path relative to the restore target and
// its chunks in file order.
type File struct {
	Name   string
	Chunks []dedup.ChunkPointer
}

// Size returns the file size according to the recipe.
func (f File) Size() int64 {
	var size int64
	for _, c := range f.Chunks {
		size += int64(c.Size)
	}
	return size
}

// Version is a complete backup version.
type Version struct {
	ID    int
	Path  string
	Files []File
}

// Saver persists backup versions.
type Saver interface {
	SaveVersion(ctx context.Context, v *Version) error
}

// Writer assembles a Version file by file.
type Writer struct {
	v Version
}

// NewWriter starts a backup version with the given id and source path.
func NewWriter(id int, path string) *Writer {
	return &Writer{v: Version{ID: id, Path: path}}
}

// AddFile appends the recipe of a file.
func (w *Writer) AddFile(name string, chunks []dedup.ChunkPointer) error {
	if name == "" {
		return errors.New("empty file name")
	}
	w.v.Files = append(w.v.Files, File{Name: name, Chunks: append([]dedup.ChunkPointer(nil), chunks...)})
	return nil
}

// Version returns the version assembled so far.
func (w *Writer) Version() *Version {
	v := w.v
	return &v
}

// Save hands the version to s.
func (w *Writer) Save(ctx context.Context, s Saver) error {
	return s.SaveVersion(ctx, w.Version())
}

// MemStore keeps backup versions in memory.
type MemStore struct {
	m        sync.Mutex
	versions map[int]*Version
}

var _ dedup.RecipeStore = &MemStore{}
var _ Saver = &MemStore{}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{versions: make(map[int]*Version)}
}

// SaveVersion stores v, replacing a previous version with the same id.
func (s *MemStore) SaveVersion(_ context.Context, v *Version) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.versions[v.ID] = v
	return nil
}

// OpenVersion returns a reader for the backup version id.
func (s *MemStore) OpenVersion(_ context.Context, id int) (dedup.BackupVersion, error) {
	s.m.Lock()
	defer s.m.Unlock()

	v, ok := s.versions[id]
	if !ok {
		return nil, errors.Wrapf(ErrVersionNotFound, "version %d", id)
	}
	debug.Log("open version %d: %d files", id, len(v.Files))
	return &memVersion{v: v, file: -1}, nil
}

type memVersion struct {
	v     *Version
	file  int
	chunk int
}

func (mv *memVersion) ID() int        { return mv.v.ID }
func (mv *memVersion) Path() string   { return mv.v.Path }
func (mv *memVersion) FileCount() int { return len(mv.v.Files) }

func (mv *memVersion) NextFileMeta(ctx context.Context) (dedup.FileRecipeMeta, error) {
	if err := ctx.Err(); err != nil {
		return dedup.FileRecipeMeta{}, err
	}
	if mv.file+1 >= len(mv.v.Files) {
		return dedup.FileRecipeMeta{}, io.EOF
	}
	mv.file++
	mv.chunk = 0

	f := mv.v.Files[mv.file]
	return dedup.FileRecipeMeta{Name: f.Name, ChunkCount: len(f.Chunks)}, nil
}

func (mv *memVersion) NextChunkPointers(ctx context.Context, n int) ([]dedup.ChunkPointer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if mv.file < 0 || mv.file >= len(mv.v.Files) {
		return nil, errors.New("no current file")
	}

	chunks := mv.v.Files[mv.file].Chunks[mv.chunk:]
	if n < len(chunks) {
		chunks = chunks[:n]
	}
	mv.chunk += len(chunks)
	return append([]dedup.ChunkPointer(nil), chunks...), nil
}

func (mv *memVersion) Close() error {
	return nil
}
