package container_test

import (
	"bytes"
	"testing"

	"github.com/fdl66/chongshan/internal/container"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
	rtest "github.com/fdl66/chongshan/internal/test"

	"github.com/google/go-cmp/cmp"
)

func buildContainer(t testing.TB, id dedup.ContainerID, chunks ...[]byte) []byte {
	t.Helper()
	b := container.NewBuilder(id)
	for _, c := range chunks {
		_, err := b.Add(c)
		rtest.OK(t, err)
	}
	buf, err := b.Bytes()
	rtest.OK(t, err)
	return buf
}

func TestDecode(t *testing.T) {
	chunks := [][]byte{
		rtest.Random(1, 100),
		rtest.Random(2, 2000),
		rtest.Random(3, 1),
	}
	buf := buildContainer(t, 5, chunks...)

	con, err := container.Decode(5, buf)
	rtest.OK(t, err)
	rtest.Equals(t, dedup.ContainerID(5), con.ID())
	rtest.Equals(t, 3, con.Meta.ChunkCount())
	rtest.Equals(t, int64(2101), con.Meta.DataSize())

	var offset int64
	for i, c := range chunks {
		e := con.Meta.Entries[i]
		rtest.Equals(t, dedup.Hash(c), e.Fingerprint)
		rtest.Equals(t, offset, e.Offset)
		rtest.Equals(t, len(c), e.Length)
		offset += int64(len(c))

		data, ok := con.Chunk(e.Fingerprint)
		rtest.Assert(t, ok, "chunk %d not found", i)
		rtest.Assert(t, bytes.Equal(c, data), "chunk %d has wrong content", i)
	}
}

func TestReadMeta(t *testing.T) {
	buf := buildContainer(t, 9, []byte("foo"), []byte("barbaz"))

	meta, err := container.ReadMeta(bytes.NewReader(buf), int64(len(buf)), 9)
	rtest.OK(t, err)

	want := []dedup.MetaEntry{
		{Fingerprint: dedup.Hash([]byte("foo")), Offset: 0, Length: 3},
		{Fingerprint: dedup.Hash([]byte("barbaz")), Offset: 3, Length: 6},
	}
	if diff := cmp.Diff(want, meta.Entries); diff != "" {
		t.Errorf("wrong entries (-want +got):\n%s", diff)
	}
}

// dropData removes the data bytes [from, to) and keeps metadata and trailer,
// so the listing references more data than the container holds.
func dropData(buf []byte, from, to int) []byte {
	out := append([]byte(nil), buf[:from]...)
	return append(out, buf[to:]...)
}

func TestEntryBeyondDataSection(t *testing.T) {
	buf := dropData(buildContainer(t, 4, rtest.Random(5, 10)), 5, 10)

	_, err := container.ReadMeta(bytes.NewReader(buf), int64(len(buf)), 4)
	rtest.Assert(t, errors.IsConsistency(err), "expected consistency fault, got %v", err)

	_, err = container.Decode(4, buf)
	rtest.Assert(t, errors.IsConsistency(err), "expected consistency fault, got %v", err)
}

func TestReadTrailer(t *testing.T) {
	buf := buildContainer(t, 6, []byte("foo"), []byte("barbaz"))

	tr, dataSize, err := container.ReadTrailer(bytes.NewReader(buf), int64(len(buf)), 6)
	rtest.OK(t, err)
	rtest.Equals(t, int64(9), dataSize)
	rtest.Equals(t, uint32(2), tr.EntryCount)

	_, _, err = container.ReadTrailer(bytes.NewReader(buf[:8]), 8, 6)
	rtest.Assert(t, errors.IsConsistency(err), "expected consistency fault, got %v", err)
}

func TestReadAt(t *testing.T) {
	rd := bytes.NewReader([]byte("abcdef"))

	buf := make([]byte, 3)
	rtest.OK(t, container.ReadAt(rd, buf, 3))
	rtest.Equals(t, []byte("def"), buf)

	err := container.ReadAt(rd, make([]byte, 4), 4)
	rtest.Assert(t, container.IsShortRead(err), "expected short read, got %v", err)

	err = container.ReadAt(rd, make([]byte, 1), 10)
	rtest.Assert(t, container.IsShortRead(err), "expected short read, got %v", err)
}

func TestDecodeEmpty(t *testing.T) {
	buf := buildContainer(t, 1)
	con, err := container.Decode(1, buf)
	rtest.OK(t, err)
	rtest.Equals(t, 0, con.Meta.ChunkCount())
	rtest.Equals(t, 0, len(con.Data))
}

func TestDecodeCorrupted(t *testing.T) {
	buf := buildContainer(t, 2, rtest.Random(10, 500), rtest.Random(11, 500))

	// flip a byte in the metadata section, just before the trailer
	corrupted := append([]byte(nil), buf...)
	corrupted[len(corrupted)-container.TrailerSize-1] ^= 0xff

	_, err := container.Decode(2, corrupted)
	rtest.Assert(t, err != nil, "corrupted container accepted")
	rtest.Assert(t, errors.IsConsistency(err), "expected consistency fault, got %v", err)

	_, err = container.Decode(2, buf[:5])
	rtest.Assert(t, err != nil, "truncated container accepted")
}

func TestBuilderLimits(t *testing.T) {
	b := container.NewBuilder(1)
	b.MaxChunks = 2
	b.MaxSize = 10

	_, err := b.Add([]byte("0123456789abc"))
	rtest.OK(t, err)

	_, err = b.Add([]byte("x"))
	rtest.Assert(t, errors.Is(err, container.ErrFull), "expected ErrFull, got %v", err)

	b = container.NewBuilder(2)
	b.MaxChunks = 2
	for _, c := range []string{"a", "b"} {
		_, err = b.Add([]byte(c))
		rtest.OK(t, err)
	}
	rtest.Assert(t, !b.Fits(1), "builder accepts more than MaxChunks")

	// duplicates return the existing entry without using space
	e, err := b.Add([]byte("a"))
	rtest.OK(t, err)
	rtest.Equals(t, int64(0), e.Offset)
	rtest.Equals(t, 2, b.Count())
}

func TestCheckRange(t *testing.T) {
	var tests = []struct {
		offset int64
		length int
		ok     bool
	}{
		{0, 10, true},
		{5, 5, true},
		{5, 6, false},
		{-1, 1, false},
		{10, 0, true},
	}

	for _, test := range tests {
		err := container.CheckRange(test.offset, test.length, 10)
		rtest.Equals(t, test.ok, err == nil)
		if err != nil && test.offset >= 0 {
			rtest.Assert(t, container.IsShortRead(err), "expected short read, got %v", err)
		}
	}
}
