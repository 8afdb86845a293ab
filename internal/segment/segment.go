// Package segment groups the restore chunk stream into segments, the
// lookahead unit of the pattern strategies.
package segment

import (
	"encoding/binary"
	"math/bits"

	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
)

// Algorithm names accepted by New.
const (
	AlgorithmFixed   = "fixed"
	AlgorithmContent = "content"
	AlgorithmFile    = "file"
)

// Options configure a segmenter.
type Options struct {
	Algorithm string
	// Size is the segment length in data chunks for the fixed algorithm and
	// the average length for the content-defined one.
	Size int
	Min  int
	Max  int
}

// New returns the segmenter selected by opts.
func New(opts Options) (dedup.Segmenter, error) {
	switch opts.Algorithm {
	case AlgorithmFixed, "":
		if opts.Size <= 0 {
			return nil, errors.Fatalf("invalid segment size %d", opts.Size)
		}
		return Fixed(opts.Size), nil
	case AlgorithmContent:
		min, max := opts.Min, opts.Max
		if min == 0 {
			min = opts.Size / 2
		}
		if max == 0 {
			max = opts.Size * 2
		}
		return ContentDefined(opts.Size, min, max)
	case AlgorithmFile:
		return FileDefined(), nil
	}
	return nil, errors.Fatalf("unknown segment algorithm %q", opts.Algorithm)
}

// builder accumulates chunks and numbers the segments it emits.
type builder struct {
	cur    *dedup.Segment
	nextID int64
}

func (b *builder) add(c *dedup.Chunk) *dedup.Segment {
	if b.cur == nil {
		b.cur = dedup.NewSegment(b.nextID)
		b.nextID++
	}
	b.cur.Append(c)
	return b.cur
}

func (b *builder) cut() *dedup.Segment {
	s := b.cur
	b.cur = nil
	return s
}

func (b *builder) Flush() *dedup.Segment {
	if b.cur == nil || b.cur.Len() == 0 {
		return nil
	}
	return b.cut()
}

type fixed struct {
	builder
	n int
}

// Fixed returns a segmenter that closes a segment after n data chunks.
func Fixed(n int) dedup.Segmenter {
	return &fixed{n: n}
}

func (f *fixed) Add(c *dedup.Chunk) *dedup.Segment {
	s := f.add(c)
	if s.ChunkCount >= f.n {
		return f.cut()
	}
	return nil
}

type contentDefined struct {
	builder
	mask     uint64
	min, max int
}

// ContentDefined returns a segmenter placing boundaries after data chunks
// whose fingerprint has the low log2(avg) bits zero, once a segment holds min
// data chunks. A segment is always closed at max data chunks. avg must be a
// power of two.
func ContentDefined(avg, min, max int) (dedup.Segmenter, error) {
	if avg <= 0 || bits.OnesCount(uint(avg)) != 1 {
		return nil, errors.Fatalf("average segment size %d is not a power of two", avg)
	}
	if min < 1 || max < min {
		return nil, errors.Fatalf("invalid segment bounds min %d max %d", min, max)
	}
	return &contentDefined{mask: uint64(avg - 1), min: min, max: max}, nil
}

func (cd *contentDefined) Add(c *dedup.Chunk) *dedup.Segment {
	s := cd.add(c)
	if !c.IsData() || s.ChunkCount < cd.min {
		return nil
	}
	if s.ChunkCount >= cd.max || binary.LittleEndian.Uint64(c.Fingerprint[:8])&cd.mask == 0 {
		return cd.cut()
	}
	return nil
}

type fileDefined struct {
	builder
}

// FileDefined returns a segmenter that closes a segment at the end of every
// file which contributed data chunks.
func FileDefined() dedup.Segmenter {
	return &fileDefined{}
}

func (fd *fileDefined) Add(c *dedup.Chunk) *dedup.Segment {
	s := fd.add(c)
	if c.Is(dedup.FlagFileEnd) && s.ChunkCount > 0 {
		return fd.cut()
	}
	return nil
}
