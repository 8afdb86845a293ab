package restorer

import (
	"context"
	"io"
	"time"

	"github.com/fdl66/chongshan/internal/debug"
	"github.com/fdl66/chongshan/internal/dedup"
	"github.com/fdl66/chongshan/internal/errors"
)

// pointerBatch is the number of chunk pointers requested from the recipe
// store at once.
const pointerBatch = 4096

// readRecipe streams the recipe of bv to out: for each file a FILE_START
// marker carrying the file name, one chunk per pointer and a FILE_END marker.
func readRecipe(ctx context.Context, bv dedup.BackupVersion, out chan<- *dedup.Chunk, job *Job) error {
	files := bv.FileCount()
	debug.Log("reading recipe of version %d, %d files", bv.ID(), files)

	for i := 0; i < files; i++ {
		start := time.Now()
		meta, err := bv.NextFileMeta(ctx)
		job.ReadRecipeTime.Since(start)
		if errors.Is(err, io.EOF) {
			return errors.Consistency("recipe of version %d ends after %d of %d files", bv.ID(), i, files)
		}
		if err != nil {
			return errors.Wrapf(err, "read file %d of version %d", i, bv.ID())
		}

		if err := send(ctx, out, dedup.NewFileStart(meta.Name)); err != nil {
			return err
		}

		for left := meta.ChunkCount; left > 0; {
			start := time.Now()
			ptrs, err := bv.NextChunkPointers(ctx, min(left, pointerBatch))
			job.ReadRecipeTime.Since(start)
			if err != nil && !errors.Is(err, io.EOF) {
				return errors.Wrapf(err, "read chunk pointers of %v", meta.Name)
			}
			if len(ptrs) == 0 {
				return errors.Consistency("recipe of %v ends after %d of %d chunks", meta.Name, meta.ChunkCount-left, meta.ChunkCount)
			}
			if len(ptrs) > left {
				return errors.Consistency("recipe store returned %d chunk pointers for %v, %d requested", len(ptrs), meta.Name, left)
			}

			for _, p := range ptrs {
				if err := send(ctx, out, dedup.NewChunkRef(p)); err != nil {
					return err
				}
			}
			left -= len(ptrs)
		}

		if err := send(ctx, out, dedup.NewFileEnd()); err != nil {
			return err
		}
	}

	debug.Log("recipe of version %d done", bv.ID())
	return nil
}
