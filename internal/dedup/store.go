package dedup

import "context"

// FileRecipeMeta is the per-file header of a recipe.
type FileRecipeMeta struct {
	Name       string
	ChunkCount int
}

// BackupVersion is an open handle on one backup's recipe. Files and chunk
// pointers are returned in recipe order.
type BackupVersion interface {
	ID() int
	Path() string
	FileCount() int

	NextFileMeta(ctx context.Context) (FileRecipeMeta, error)
	NextChunkPointers(ctx context.Context, n int) ([]ChunkPointer, error)

	Close() error
}

// RecipeStore opens backup versions for reading.
type RecipeStore interface {
	OpenVersion(ctx context.Context, version int) (BackupVersion, error)
}

// ContainerStore provides random access to containers.
type ContainerStore interface {
	// FetchContainer loads a complete container.
	FetchContainer(ctx context.Context, id ContainerID) (*Container, error)

	// FetchContainerMeta loads only the metadata of a container.
	FetchContainerMeta(ctx context.Context, id ContainerID) (*ContainerMeta, error)

	// ReadRange fills buf with the data section bytes starting at offset.
	ReadRange(ctx context.Context, id ContainerID, offset int64, buf []byte) error

	Close() error
}

// Segmenter groups a chunk stream into segments. Add returns a segment once
// the boundary policy fires; Flush returns the trailing partial segment, or
// nil if it is empty.
type Segmenter interface {
	Add(c *Chunk) *Segment
	Flush() *Segment
}
