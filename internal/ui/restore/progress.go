// Package restore prints the progress of a restore job to the terminal.
package restore

import (
	"time"
)

// State is a snapshot of the counters of a running restore.
type State struct {
	BytesWritten   uint64
	ChunksWritten  uint64
	FilesFinished  uint64
	ContainerReads uint64
	RangeReads     uint64
	CacheHits      uint64
}

type term interface {
	Print(line string)
	SetStatus(lines []string)
}

// ProgressPrinter shows the progress of a restore.
type ProgressPrinter interface {
	Update(progress State, duration time.Duration)
	Finish(progress State, duration time.Duration)
}
