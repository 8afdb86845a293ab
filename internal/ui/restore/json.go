package restore

import (
	"time"

	"github.com/fdl66/chongshan/internal/ui"
)

type jsonPrinter struct {
	terminal ui.Terminal
}

// NewJSONProgress returns a printer that emits one JSON object per update.
func NewJSONProgress(terminal ui.Terminal) ProgressPrinter {
	return &jsonPrinter{
		terminal: terminal,
	}
}

func (t *jsonPrinter) print(status interface{}) {
	t.terminal.Print(ui.ToJSONString(status))
}

func (t *jsonPrinter) update(messageType string, p State, duration time.Duration) {
	t.print(statusUpdate{
		MessageType:    messageType,
		SecondsElapsed: uint64(duration / time.Second),
		BytesRestored:  p.BytesWritten,
		ChunksRestored: p.ChunksWritten,
		FilesRestored:  p.FilesFinished,
		ContainerReads: p.ContainerReads,
		RangeReads:     p.RangeReads,
		CacheHits:      p.CacheHits,
	})
}

func (t *jsonPrinter) Update(p State, duration time.Duration) {
	t.update("status", p, duration)
}

func (t *jsonPrinter) Finish(p State, duration time.Duration) {
	t.update("summary", p, duration)
}

type statusUpdate struct {
	MessageType    string `json:"message_type"` // "status" or "summary"
	SecondsElapsed uint64 `json:"seconds_elapsed,omitempty"`
	BytesRestored  uint64 `json:"bytes_restored"`
	ChunksRestored uint64 `json:"chunks_restored"`
	FilesRestored  uint64 `json:"files_restored"`
	ContainerReads uint64 `json:"container_reads"`
	RangeReads     uint64 `json:"range_reads,omitempty"`
	CacheHits      uint64 `json:"cache_hits,omitempty"`
}
