package repotest_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/fdl66/chongshan/internal/container"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/repotest"
	rtest "github.com/fdl66/chongshan/internal/test"
)

func TestBuildPositions(t *testing.T) {
	b := repotest.Build(t, 1, []repotest.FileSpec{
		{Name: "a", Chunks: []repotest.ChunkSpec{{Container: 1, Data: []byte("x1")}, {Container: 1, Data: []byte("x2")}}},
		{Name: "b", Chunks: []repotest.ChunkSpec{{Container: 1, Data: []byte("x1")}, {Container: 2, Data: []byte("y")}}},
	})

	rtest.Equals(t, []dedup.ContainerID{1, 2}, b.ContainerIDs())
	rtest.Equals(t, 4, b.ChunkCount())
	rtest.Equals(t, int64(7), b.DataSize())

	con, err := container.Decode(1, b.Containers[1])
	rtest.OK(t, err)
	rtest.Equals(t, 2, con.Meta.ChunkCount())
	rtest.Equals(t, b.Version.Files[1].Chunks[0], b.Version.Files[0].Chunks[0])
}

func TestGenerateDeduplicates(t *testing.T) {
	b := repotest.Generate(t, 3, repotest.GenerateOptions{
		Seed:       23,
		Files:      20,
		FileSize:   64 * 1024,
		Duplicates: 50,
	})

	store := b.MemStore(t)
	unique := make(map[dedup.Fingerprint]struct{})
	for _, f := range b.Version.Files {
		var content []byte
		for _, p := range f.Chunks {
			unique[p.Fingerprint] = struct{}{}
			con, err := store.FetchContainer(context.TODO(), p.ContainerID)
			rtest.OK(t, err)
			data, ok := con.Chunk(p.Fingerprint)
			rtest.Assert(t, ok, "chunk %v missing in container %d", p.Fingerprint, p.ContainerID)
			content = append(content, data...)
		}
		rtest.Assert(t, bytes.Equal(content, b.Files[f.Name]), "content of %v differs", f.Name)
	}

	rtest.Assert(t, len(unique) < b.ChunkCount(), "expected duplicate chunks, got %d unique of %d", len(unique), b.ChunkCount())
}
