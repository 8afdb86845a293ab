// Package repotest builds backup fixtures for tests: containers holding chunk
// data plus the recipe of a backup version referencing them.
package repotest

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/fdl66/chongshan/internal/container"
	"github.com/fdl66/chongshan/internal/container/local"
	"github.com/fdl66/chongshan/internal/container/mem"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/recipe"
	"github.com/fdl66/chongshan/internal/recipe/sqlite"
	rtest "github.com/fdl66/chongshan/internal/test"

	"github.com/restic/chunker"
)

// TestChunkerPol is the polynomial used to cut generated files.
const TestChunkerPol = chunker.Pol(0x3DA3358B4DC173)

// ChunkSpec places chunk data into a container.
type ChunkSpec struct {
	Container dedup.ContainerID
	Data      []byte
}

// FileSpec describes a file as a sequence of chunks.
type FileSpec struct {
	Name   string
	Chunks []ChunkSpec
}

// Backup is a backup version with its containers and the expected content of
// every file.
type Backup struct {
	Version    *recipe.Version
	Containers map[dedup.ContainerID][]byte
	Files      map[string][]byte
}

// Build assembles the backup described by files. Chunks are stored in the
// given container in the order they first appear; a chunk already stored in
// its container is referenced again.
func Build(t testing.TB, id int, files []FileSpec) *Backup {
	t.Helper()

	builders := make(map[dedup.ContainerID]*container.Builder)
	w := recipe.NewWriter(id, "/backup")
	b := &Backup{
		Containers: make(map[dedup.ContainerID][]byte),
		Files:      make(map[string][]byte),
	}

	for _, f := range files {
		var (
			ptrs    []dedup.ChunkPointer
			content bytes.Buffer
		)
		for _, c := range f.Chunks {
			cb, ok := builders[c.Container]
			if !ok {
				cb = container.NewBuilder(c.Container)
				cb.MaxChunks = 1 << 20
				cb.MaxSize = 1 << 30
				builders[c.Container] = cb
			}

			e, err := cb.Add(c.Data)
			rtest.OK(t, err)
			ptrs = append(ptrs, dedup.ChunkPointer{Fingerprint: e.Fingerprint, Size: e.Length, ContainerID: c.Container})
			content.Write(c.Data)
		}
		rtest.OK(t, w.AddFile(f.Name, ptrs))
		b.Files[f.Name] = content.Bytes()
	}

	for cid, cb := range builders {
		buf, err := cb.Bytes()
		rtest.OK(t, err)
		b.Containers[cid] = buf
	}
	b.Version = w.Version()
	return b
}

// GenerateOptions configure Generate.
type GenerateOptions struct {
	Seed     int64
	Files    int
	FileSize int
	// Duplicates is the share of files, in percent, that repeat an earlier
	// file with a modified tail.
	Duplicates int

	MinChunk, MaxChunk uint
	// ContainerChunks is the maximum number of chunks per container.
	ContainerChunks int
}

// Generate creates a backup of random files cut with content defined
// chunking. Chunks are stored in containers in the order they are first seen,
// later references to the same content point to the stored copy.
func Generate(t testing.TB, id int, opts GenerateOptions) *Backup {
	t.Helper()

	if opts.MinChunk == 0 {
		opts.MinChunk = 512
	}
	if opts.MaxChunk == 0 {
		opts.MaxChunk = 8 * 1024
	}
	if opts.ContainerChunks == 0 {
		opts.ContainerChunks = 16
	}

	rnd := rand.New(rand.NewSource(opts.Seed))
	b := &Backup{
		Containers: make(map[dedup.ContainerID][]byte),
		Files:      make(map[string][]byte),
	}
	w := recipe.NewWriter(id, "/generated")

	stored := make(map[dedup.Fingerprint]dedup.ChunkPointer)
	var (
		cid dedup.ContainerID
		cb  *container.Builder
	)
	seal := func() {
		if cb == nil || cb.Count() == 0 {
			return
		}
		buf, err := cb.Bytes()
		rtest.OK(t, err)
		b.Containers[cb.ID] = buf
		cb = nil
	}

	var contents [][]byte
	for i := 0; i < opts.Files; i++ {
		data := make([]byte, opts.FileSize/2+rnd.Intn(opts.FileSize+1))
		if len(contents) > 0 && rnd.Intn(100) < opts.Duplicates {
			prev := contents[rnd.Intn(len(contents))]
			n := copy(data, prev)
			_, _ = rnd.Read(data[n*3/4:])
		} else {
			_, _ = rnd.Read(data)
		}
		contents = append(contents, data)

		name := filepath.ToSlash(filepath.Join(string(rune('a'+i%3)), "file"+string(rune('0'+i%10))+"-"+randomName(rnd)))
		var ptrs []dedup.ChunkPointer

		chnker := chunker.NewWithBoundaries(bytes.NewReader(data), TestChunkerPol, opts.MinChunk, opts.MaxChunk)
		buf := make([]byte, opts.MaxChunk)
		for {
			chunk, err := chnker.Next(buf)
			if err == io.EOF {
				break
			}
			rtest.OK(t, err)

			fp := dedup.Hash(chunk.Data)
			p, ok := stored[fp]
			if !ok {
				if cb == nil {
					cid++
					cb = container.NewBuilder(cid)
					cb.MaxChunks = opts.ContainerChunks
				}
				if !cb.Fits(len(chunk.Data)) {
					seal()
					cid++
					cb = container.NewBuilder(cid)
					cb.MaxChunks = opts.ContainerChunks
				}
				e, err := cb.Add(chunk.Data)
				rtest.OK(t, err)
				p = dedup.ChunkPointer{Fingerprint: e.Fingerprint, Size: e.Length, ContainerID: cid}
				stored[fp] = p
			}
			ptrs = append(ptrs, p)
		}

		rtest.OK(t, w.AddFile(name, ptrs))
		b.Files[name] = data
	}
	seal()

	b.Version = w.Version()
	return b
}

func randomName(rnd *rand.Rand) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	name := make([]byte, 8)
	for i := range name {
		name[i] = letters[rnd.Intn(len(letters))]
	}
	return string(name)
}

// ContainerIDs returns the ids of all containers in ascending order.
func (b *Backup) ContainerIDs() []dedup.ContainerID {
	ids := make([]dedup.ContainerID, 0, len(b.Containers))
	for id := range b.Containers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ChunkCount returns the number of chunk references in the recipe.
func (b *Backup) ChunkCount() int {
	n := 0
	for _, f := range b.Version.Files {
		n += len(f.Chunks)
	}
	return n
}

// DataSize returns the total size of all files.
func (b *Backup) DataSize() int64 {
	var size int64
	for _, f := range b.Version.Files {
		size += f.Size()
	}
	return size
}

// MemStore returns an in-memory container store holding the containers.
func (b *Backup) MemStore(t testing.TB) *mem.Store {
	t.Helper()
	s := mem.New()
	for id, buf := range b.Containers {
		rtest.OK(t, s.Save(id, buf))
	}
	return s
}

// LocalStore saves the containers into a new directory store at dir.
func (b *Backup) LocalStore(t testing.TB, dir string) *local.Store {
	t.Helper()
	ctx := context.Background()
	s, err := local.Create(ctx, dir)
	rtest.OK(t, err)
	for id, buf := range b.Containers {
		rtest.OK(t, s.Save(ctx, id, buf))
	}
	return s
}

// Recipes returns an in-memory recipe store holding the version.
func (b *Backup) Recipes(t testing.TB) *recipe.MemStore {
	t.Helper()
	s := recipe.NewMemStore()
	rtest.OK(t, s.SaveVersion(context.Background(), b.Version))
	return s
}

// SQLiteRecipes saves the version into a new SQLite recipe store at path.
func (b *Backup) SQLiteRecipes(t testing.TB, path string) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), path)
	rtest.OK(t, err)
	t.Cleanup(func() {
		_ = s.Close()
	})
	rtest.OK(t, s.SaveVersion(context.Background(), b.Version))
	return s
}

// Verify checks that target holds every file of the backup with the
// expected content.
func (b *Backup) Verify(t testing.TB, target string) {
	t.Helper()
	for name, want := range b.Files {
		got, err := os.ReadFile(filepath.Join(target, filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("read %v: %v", name, err)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("file %v: content differs, got %d bytes, want %d", name, len(got), len(want))
		}
	}
}
