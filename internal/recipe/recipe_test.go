package recipe_test

import (
	"context"
	"io"
	"testing"

	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/recipe"
	rtest "github.com/fdl66/chongshan/internal/test"
)

func ptr(s string, container dedup.ContainerID) dedup.ChunkPointer {
	return dedup.ChunkPointer{Fingerprint: dedup.Hash([]byte(s)), Size: len(s), ContainerID: container}
}

func TestMemStore(t *testing.T) {
	ctx := context.TODO()

	w := recipe.NewWriter(3, "/home/user")
	rtest.OK(t, w.AddFile("a", []dedup.ChunkPointer{ptr("x", 1), ptr("yy", 1), ptr("zzz", 2)}))
	rtest.OK(t, w.AddFile("dir/b", nil))
	rtest.Assert(t, w.AddFile("", nil) != nil, "empty file name accepted")
	rtest.Equals(t, int64(6), w.Version().Files[0].Size())

	s := recipe.NewMemStore()
	rtest.OK(t, w.Save(ctx, s))

	_, err := s.OpenVersion(ctx, 4)
	rtest.Assert(t, errors.Is(err, recipe.ErrVersionNotFound), "expected not found, got %v", err)

	v, err := s.OpenVersion(ctx, 3)
	rtest.OK(t, err)
	rtest.Equals(t, 3, v.ID())
	rtest.Equals(t, "/home/user", v.Path())
	rtest.Equals(t, 2, v.FileCount())

	meta, err := v.NextFileMeta(ctx)
	rtest.OK(t, err)
	rtest.Equals(t, dedup.FileRecipeMeta{Name: "a", ChunkCount: 3}, meta)

	ptrs, err := v.NextChunkPointers(ctx, 2)
	rtest.OK(t, err)
	rtest.Equals(t, []dedup.ChunkPointer{ptr("x", 1), ptr("yy", 1)}, ptrs)

	ptrs, err = v.NextChunkPointers(ctx, 2)
	rtest.OK(t, err)
	rtest.Equals(t, []dedup.ChunkPointer{ptr("zzz", 2)}, ptrs)

	meta, err = v.NextFileMeta(ctx)
	rtest.OK(t, err)
	rtest.Equals(t, dedup.FileRecipeMeta{Name: "dir/b", ChunkCount: 0}, meta)

	_, err = v.NextFileMeta(ctx)
	rtest.Equals(t, io.EOF, err)
	rtest.OK(t, v.Close())
}
