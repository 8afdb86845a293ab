package restore

import (
	"fmt"
	"time"

	"github.com/fdl66/chongshan/internal/ui"
)

type textPrinter struct {
	terminal term
}

// NewTextProgress returns a printer that keeps a status line up to date.
func NewTextProgress(terminal term) ProgressPrinter {
	return &textPrinter{
		terminal: terminal,
	}
}

func statusLine(p State) string {
	return fmt.Sprintf("%d bytes, %d chunks, %d files processed", p.BytesWritten, p.ChunksWritten, p.FilesFinished)
}

func (t *textPrinter) Update(p State, duration time.Duration) {
	t.terminal.SetStatus([]string{
		fmt.Sprintf("[%s] %s, %s, %d container reads",
			ui.FormatDuration(duration), statusLine(p), ui.FormatBytes(p.BytesWritten), p.ContainerReads),
	})
}

func (t *textPrinter) Finish(p State, _ time.Duration) {
	t.terminal.SetStatus([]string{})
	t.terminal.Print(statusLine(p))
}
