package sqlite_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/recipe"
	"github.com/fdl66/chongshan/internal/recipe/sqlite"
	rtest "github.com/fdl66/chongshan/internal/test"

	"github.com/google/go-cmp/cmp"
)

func openStore(t *testing.T) (*sqlite.Store, string) {
	path := filepath.Join(t.TempDir(), "recipes.db")
	s, err := sqlite.Open(context.TODO(), path)
	rtest.OK(t, err)
	t.Cleanup(func() {
		rtest.OK(t, s.Close())
	})
	return s, path
}

func testVersion(id int) *recipe.Version {
	w := recipe.NewWriter(id, "/srv/data")
	var chunks []dedup.ChunkPointer
	for i := 0; i < 5; i++ {
		data := rtest.Random(i, 100+i)
		chunks = append(chunks, dedup.ChunkPointer{Fingerprint: dedup.Hash(data), Size: len(data), ContainerID: dedup.ContainerID(i / 2)})
	}
	_ = w.AddFile("one", chunks[:3])
	_ = w.AddFile("empty", nil)
	_ = w.AddFile("sub/two", chunks[3:])
	return w.Version()
}

func readAll(t *testing.T, s dedup.RecipeStore, id int) *recipe.Version {
	ctx := context.TODO()
	v, err := s.OpenVersion(ctx, id)
	rtest.OK(t, err)
	defer func() {
		rtest.OK(t, v.Close())
	}()

	out := &recipe.Version{ID: v.ID(), Path: v.Path()}
	for i := 0; i < v.FileCount(); i++ {
		meta, err := v.NextFileMeta(ctx)
		rtest.OK(t, err)

		f := recipe.File{Name: meta.Name}
		for len(f.Chunks) < meta.ChunkCount {
			ptrs, err := v.NextChunkPointers(ctx, 2)
			rtest.OK(t, err)
			rtest.Assert(t, len(ptrs) > 0, "recipe of %v truncated", meta.Name)
			f.Chunks = append(f.Chunks, ptrs...)
		}
		out.Files = append(out.Files, f)
	}

	_, err = v.NextFileMeta(ctx)
	rtest.Equals(t, io.EOF, err)
	return out
}

func TestStoreRoundTrip(t *testing.T) {
	s, path := openStore(t)
	want := testVersion(7)
	rtest.OK(t, s.SaveVersion(context.TODO(), want))

	got := readAll(t, s, 7)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("version mismatch (-want +got):\n%s", diff)
	}

	// the same content through a second connection
	s2, err := sqlite.Open(context.TODO(), path)
	rtest.OK(t, err)
	defer func() {
		rtest.OK(t, s2.Close())
	}()
	ids, err := s2.Versions(context.TODO())
	rtest.OK(t, err)
	rtest.Equals(t, []int{7}, ids)
}

func TestStoreReplaceVersion(t *testing.T) {
	s, _ := openStore(t)
	rtest.OK(t, s.SaveVersion(context.TODO(), testVersion(1)))

	w := recipe.NewWriter(1, "/other")
	rtest.OK(t, w.AddFile("only", nil))
	rtest.OK(t, w.Save(context.TODO(), s))

	got := readAll(t, s, 1)
	rtest.Equals(t, "/other", got.Path)
	rtest.Equals(t, 1, len(got.Files))
}

func TestStoreMissingVersion(t *testing.T) {
	s, _ := openStore(t)
	_, err := s.OpenVersion(context.TODO(), 42)
	rtest.Assert(t, errors.Is(err, recipe.ErrVersionNotFound), "expected not found, got %v", err)
}

func TestMemStoreMatches(t *testing.T) {
	want := testVersion(2)
	m := recipe.NewMemStore()
	rtest.OK(t, m.SaveVersion(context.TODO(), want))

	if diff := cmp.Diff(want, readAll(t, m, 2)); diff != "" {
		t.Errorf("version mismatch (-want +got):\n%s", diff)
	}
}
