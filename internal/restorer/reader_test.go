package restorer

import (
	"context"
	"io"
	"testing"

	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
	"github.com/fdl66/chongshan/internal/recipe"
	rtest "github.com/fdl66/chongshan/internal/test"
)

// brokenVersion claims more files and chunks than it returns.
type brokenVersion struct {
	files    int
	metas    []dedup.FileRecipeMeta
	pointers [][]dedup.ChunkPointer
	cur      int
	// wrap returns the end of the recipe as a wrapped io.EOF
	wrap bool
}

func (v *brokenVersion) ID() int        { return 1 }
func (v *brokenVersion) Path() string   { return "/" }
func (v *brokenVersion) FileCount() int { return v.files }
func (v *brokenVersion) Close() error   { return nil }

func (v *brokenVersion) NextFileMeta(context.Context) (dedup.FileRecipeMeta, error) {
	if v.cur >= len(v.metas) {
		if v.wrap {
			return dedup.FileRecipeMeta{}, errors.Wrap(io.EOF, "files cursor")
		}
		return dedup.FileRecipeMeta{}, io.EOF
	}
	v.cur++
	return v.metas[v.cur-1], nil
}

func (v *brokenVersion) NextChunkPointers(_ context.Context, n int) ([]dedup.ChunkPointer, error) {
	ptrs := v.pointers[v.cur-1]
	if n < len(ptrs) {
		ptrs = ptrs[:n]
	}
	v.pointers[v.cur-1] = v.pointers[v.cur-1][len(ptrs):]
	return ptrs, nil
}

func drain(ch <-chan *dedup.Chunk) []*dedup.Chunk {
	var chunks []*dedup.Chunk
	for c := range ch {
		chunks = append(chunks, c)
	}
	return chunks
}

func TestReadRecipe(t *testing.T) {
	w := recipe.NewWriter(4, "/src")
	ptrs := []dedup.ChunkPointer{
		{Fingerprint: testFingerprint(0), Size: 10, ContainerID: 1},
		{Fingerprint: testFingerprint(1), Size: 20, ContainerID: 2},
	}
	rtest.OK(t, w.AddFile("one", ptrs))
	rtest.OK(t, w.AddFile("two", nil))
	s := recipe.NewMemStore()
	rtest.OK(t, w.Save(context.TODO(), s))

	bv, err := s.OpenVersion(context.TODO(), 4)
	rtest.OK(t, err)

	out := make(chan *dedup.Chunk, 16)
	job := newJob(4, "/src", "", StrategyLRU, SimulationNone)
	rtest.OK(t, readRecipe(context.TODO(), bv, out, job))
	close(out)

	chunks := drain(out)
	rtest.Equals(t, 6, len(chunks))
	rtest.Assert(t, chunks[0].Is(dedup.FlagFileStart) && chunks[0].Path == "one", "wrong first chunk %v", chunks[0])
	rtest.Equals(t, ptrs[0].Fingerprint, chunks[1].Fingerprint)
	rtest.Equals(t, dedup.ContainerID(2), chunks[2].ContainerID)
	rtest.Assert(t, chunks[3].Is(dedup.FlagFileEnd), "expected end of file")
	rtest.Assert(t, chunks[4].Is(dedup.FlagFileStart) && chunks[4].Path == "two", "wrong chunk %v", chunks[4])
	rtest.Assert(t, chunks[5].Is(dedup.FlagFileEnd), "expected end of file")
}

func TestReadRecipeTruncated(t *testing.T) {
	for name, bv := range map[string]*brokenVersion{
		"missing file": {files: 2, metas: []dedup.FileRecipeMeta{{Name: "a"}}, pointers: [][]dedup.ChunkPointer{nil}},
		"wrapped eof":  {files: 2, metas: []dedup.FileRecipeMeta{{Name: "a"}}, pointers: [][]dedup.ChunkPointer{nil}, wrap: true},
		"missing chunks": {
			files:    1,
			metas:    []dedup.FileRecipeMeta{{Name: "a", ChunkCount: 3}},
			pointers: [][]dedup.ChunkPointer{{{Size: 1, ContainerID: 1}}},
		},
	} {
		out := make(chan *dedup.Chunk, 16)
		err := readRecipe(context.TODO(), bv, out, newJob(1, "", "", StrategyLRU, SimulationNone))
		rtest.Assert(t, errors.IsConsistency(err), "%v: expected consistency fault, got %v", name, err)
	}
}
