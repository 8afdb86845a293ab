package dedup

import "fmt"

// Flag describes the role of a Chunk in the restore stream.
type Flag uint8

const (
	// FlagFileStart marks the first element of a file; the chunk carries the
	// file path and no data.
	FlagFileStart Flag = 1 << iota
	// FlagFileEnd marks the end of a file; it carries no payload.
	FlagFileEnd
)

// ChunkPointer is one entry of a file recipe.
type ChunkPointer struct {
	Fingerprint Fingerprint
	Size        int
	ContainerID ContainerID
}

// Chunk is the unit flowing through the restore pipeline. A chunk is owned by
// exactly one stage at a time; sending it on a channel hands it over.
type Chunk struct {
	Fingerprint Fingerprint
	Size        int
	ContainerID ContainerID
	Flags       Flag

	// Path is set for FlagFileStart chunks only.
	Path string

	// Data holds the chunk content once it has been resolved.
	Data []byte
}

// NewFileStart returns the marker chunk opening the file at path.
func NewFileStart(path string) *Chunk {
	return &Chunk{Flags: FlagFileStart, Path: path, ContainerID: TemporaryContainerID}
}

// NewFileEnd returns the marker chunk closing the current file.
func NewFileEnd() *Chunk {
	return &Chunk{Flags: FlagFileEnd, ContainerID: TemporaryContainerID}
}

// NewChunkRef returns an unresolved data chunk for the recipe entry p.
func NewChunkRef(p ChunkPointer) *Chunk {
	return &Chunk{Fingerprint: p.Fingerprint, Size: p.Size, ContainerID: p.ContainerID}
}

// Is reports whether all flags in f are set on c.
func (c *Chunk) Is(f Flag) bool {
	return c.Flags&f == f
}

// IsData reports whether c references chunk content, i.e. it is not a file
// marker.
func (c *Chunk) IsData() bool {
	return c.Flags&(FlagFileStart|FlagFileEnd) == 0
}

func (c *Chunk) String() string {
	switch {
	case c.Is(FlagFileStart):
		return fmt.Sprintf("<FileStart %q>", c.Path)
	case c.Is(FlagFileEnd):
		return "<FileEnd>"
	}
	return fmt.Sprintf("<Chunk %v, size %d, container %d>", c.Fingerprint.Str(), c.Size, c.ContainerID)
}
