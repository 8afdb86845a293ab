package termstatus

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/fdl66/chongshan/internal/ui"
)

var _ ui.Terminal = &Terminal{}

const (
	moveCursorHome = "\r"
	moveCursorUp   = "\x1b[1A"
	clearLine      = "\x1b[2K"
)

// Terminal writes messages and keeps status lines at the bottom of the
// output. When the output is not a terminal the status lines are printed as
// plain lines.
type Terminal struct {
	wr              io.Writer
	errWriter       io.Writer
	fd              int
	canUpdateStatus bool

	msg    chan message
	status chan []string
	closed chan struct{}

	lastStatusLen int
}

type message struct {
	line    string
	err     bool
	barrier chan struct{}
}

type fder interface {
	Fd() uintptr
}

// Setup starts a Terminal on stdout and stderr. The returned function flushes
// pending output and stops the terminal.
func Setup(stdout, stderr io.Writer, quiet bool) (*Terminal, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	t := New(stdout, stderr, quiet)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.Run(ctx)
	}()

	return t, func() {
		t.Flush()
		cancel()
		wg.Wait()
	}
}

// New returns a Terminal for wr. Status lines are only updated in place when
// wr is an interactive terminal and disableStatus is false.
func New(wr, errWriter io.Writer, disableStatus bool) *Terminal {
	t := &Terminal{
		wr:        wr,
		errWriter: errWriter,
		msg:       make(chan message),
		status:    make(chan []string),
		closed:    make(chan struct{}),
	}

	if disableStatus {
		return t
	}

	if d, ok := wr.(fder); ok && canUpdateStatus(int(d.Fd())) {
		t.fd = int(d.Fd())
		t.canUpdateStatus = true
	}
	return t
}

func canUpdateStatus(fd int) bool {
	if !term.IsTerminal(fd) {
		return false
	}
	v := os.Getenv("TERM")
	return v != "" && v != "dumb"
}

// CanUpdateStatus reports whether status lines are updated in place.
func (t *Terminal) CanUpdateStatus() bool {
	return t.canUpdateStatus
}

func (t *Terminal) width() int {
	if !t.canUpdateStatus {
		return 0
	}
	w, _, err := term.GetSize(t.fd)
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// Run updates the terminal until ctx is cancelled, then removes the status
// lines.
func (t *Terminal) Run(ctx context.Context) {
	defer close(t.closed)

	var status []string
	for {
		select {
		case <-ctx.Done():
			if t.canUpdateStatus {
				t.writeStatus(nil)
			}
			return

		case msg := <-t.msg:
			if msg.barrier != nil {
				msg.barrier <- struct{}{}
				continue
			}
			if t.canUpdateStatus {
				t.write(t.wr, moveCursorHome+clearLine)
			}
			dst := t.wr
			if msg.err {
				dst = t.errWriter
			}
			t.write(dst, msg.line)
			if t.canUpdateStatus {
				t.writeStatus(status)
			}

		case lines := <-t.status:
			if !t.canUpdateStatus {
				for _, line := range lines {
					t.write(t.wr, strings.TrimRight(line, "\n")+"\n")
				}
				continue
			}
			status = append(status[:0], lines...)
			t.writeStatus(status)
		}
	}
}

func (t *Terminal) write(w io.Writer, s string) {
	if _, err := io.WriteString(w, s); err != nil {
		_, _ = fmt.Fprintf(t.errWriter, "write failed: %v\n", err)
	}
}

// writeStatus redraws the status lines and blanks lines left over from a
// longer previous status.
func (t *Terminal) writeStatus(status []string) {
	lines := append([]string{}, status...)
	for len(lines) < t.lastStatusLen {
		lines = append(lines, "")
	}
	t.lastStatusLen = len(status)

	var sb strings.Builder
	for i, line := range lines {
		sb.WriteString(moveCursorHome + clearLine + line)
		if i < len(lines)-1 {
			sb.WriteString("\n")
		}
	}
	for i := 1; i < len(lines); i++ {
		sb.WriteString(moveCursorUp)
	}
	t.write(t.wr, sb.String())
}

// Flush waits until all pending messages are written.
func (t *Terminal) Flush() {
	ch := make(chan struct{})
	select {
	case t.msg <- message{barrier: ch}:
	case <-t.closed:
		return
	}
	select {
	case <-ch:
	case <-t.closed:
	}
}

func (t *Terminal) print(line string, isErr bool) {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	select {
	case t.msg <- message{line: line, err: isErr}:
	case <-t.closed:
	}
}

// Print writes a line to the terminal.
func (t *Terminal) Print(line string) {
	t.print(line, false)
}

// Error writes a line to the error output.
func (t *Terminal) Error(line string) {
	t.print(line, true)
}

func sanitizeLines(lines []string, width int) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		line = ui.Quote(line)
		if width > 2 {
			line = ui.Truncate(line, width-2)
		}
		out[i] = line
	}
	return out
}

// SetStatus replaces the status lines. Pass nil to remove them.
func (t *Terminal) SetStatus(lines []string) {
	lines = sanitizeLines(lines, t.width())
	select {
	case t.status <- lines:
	case <-t.closed:
	}
}
