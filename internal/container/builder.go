package container

import (
	"bytes"
	"io"

	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
)

const (
	// DefaultMaxChunks is the default limit on the number of chunks per container.
	DefaultMaxChunks = 1024
	// DefaultMaxSize is the default limit on the data section of a container.
	DefaultMaxSize = 4 << 20
)

// ErrFull is returned by Add when the chunk does not fit into the container.
var ErrFull = errors.New("container is full")

// Builder assembles a container from chunk contents.
type Builder struct {
	ID dedup.ContainerID

	MaxChunks int
	MaxSize   int

	data    bytes.Buffer
	entries []dedup.MetaEntry
	seen    map[dedup.Fingerprint]struct{}
}

// NewBuilder returns a builder for container id with the default limits.
func NewBuilder(id dedup.ContainerID) *Builder {
	return &Builder{
		ID:        id,
		MaxChunks: DefaultMaxChunks,
		MaxSize:   DefaultMaxSize,
		seen:      make(map[dedup.Fingerprint]struct{}),
	}
}

// Fits reports whether a chunk of the given size can still be added.
func (b *Builder) Fits(size int) bool {
	if len(b.entries) >= b.MaxChunks {
		return false
	}
	// a single oversized chunk is accepted into an empty container
	return len(b.entries) == 0 || b.data.Len()+size <= b.MaxSize
}

// Contains reports whether data with fingerprint fp was already added.
func (b *Builder) Contains(fp dedup.Fingerprint) bool {
	_, ok := b.seen[fp]
	return ok
}

// Add appends data to the container and returns its entry. Adding content
// already present returns the existing entry.
func (b *Builder) Add(data []byte) (dedup.MetaEntry, error) {
	fp := dedup.Hash(data)
	if _, ok := b.seen[fp]; ok {
		for _, e := range b.entries {
			if e.Fingerprint == fp {
				return e, nil
			}
		}
	}

	if !b.Fits(len(data)) {
		return dedup.MetaEntry{}, ErrFull
	}

	e := dedup.MetaEntry{
		Fingerprint: fp,
		Offset:      int64(b.data.Len()),
		Length:      len(data),
	}
	b.data.Write(data)
	b.entries = append(b.entries, e)
	b.seen[fp] = struct{}{}
	return e, nil
}

// Count returns the number of chunks added so far.
func (b *Builder) Count() int {
	return len(b.entries)
}

// Size returns the size of the data section.
func (b *Builder) Size() int {
	return b.data.Len()
}

// Meta returns the metadata of the container built so far.
func (b *Builder) Meta() *dedup.ContainerMeta {
	entries := make([]dedup.MetaEntry, len(b.entries))
	copy(entries, b.entries)
	return dedup.NewContainerMeta(b.ID, entries)
}

// Finalize writes the complete container to wr and returns the number of
// bytes written.
func (b *Builder) Finalize(wr io.Writer) (int64, error) {
	meta, err := encodeMeta(b.entries)
	if err != nil {
		return 0, err
	}

	if len(meta) > maxMetaSize {
		return 0, errors.Errorf("container %d: metadata too large (%d bytes)", b.ID, len(meta))
	}

	trailer, _ := Trailer{
		MetaLength: uint32(len(meta)),
		Checksum:   xxhashSum(meta),
		EntryCount: uint32(len(b.entries)),
	}.MarshalBinary()

	var written int64
	for _, part := range [][]byte{b.data.Bytes(), meta, trailer} {
		n, err := wr.Write(part)
		written += int64(n)
		if err != nil {
			return written, errors.Wrap(err, "Write")
		}
	}

	return written, nil
}

// Bytes returns the encoded container.
func (b *Builder) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(b.data.Len() + TrailerSize)
	if _, err := b.Finalize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
