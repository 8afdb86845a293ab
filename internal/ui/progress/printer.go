package progress

import (
	"fmt"

	"github.com/fdl66/chongshan/internal/ui"
)

// A Printer prints messages at different verbosity levels: E for errors, P
// for normal output, V and VV for verbose and debug output.
// It must be safe to call its methods from concurrent goroutines.
type Printer interface {
	E(msg string, args ...interface{})
	P(msg string, args ...interface{})
	V(msg string, args ...interface{})
	VV(msg string, args ...interface{})
}

// NoopPrinter discards all messages.
type NoopPrinter struct{}

var _ Printer = (*NoopPrinter)(nil)

func (*NoopPrinter) E(_ string, _ ...interface{}) {}

func (*NoopPrinter) P(_ string, _ ...interface{}) {}

func (*NoopPrinter) V(_ string, _ ...interface{}) {}

func (*NoopPrinter) VV(_ string, _ ...interface{}) {}

// TerminalPrinter prints to a terminal. Verbosity 0 only prints errors, 1 is
// the default, 2 and 3 enable V and VV.
type TerminalPrinter struct {
	term      ui.Terminal
	verbosity uint
}

var _ Printer = (*TerminalPrinter)(nil)

// NewTerminalPrinter returns a Printer writing to term.
func NewTerminalPrinter(term ui.Terminal, verbosity uint) *TerminalPrinter {
	return &TerminalPrinter{term: term, verbosity: verbosity}
}

func (p *TerminalPrinter) E(msg string, args ...interface{}) {
	p.term.Error(fmt.Sprintf(msg, args...))
}

func (p *TerminalPrinter) P(msg string, args ...interface{}) {
	if p.verbosity >= 1 {
		p.term.Print(fmt.Sprintf(msg, args...))
	}
}

func (p *TerminalPrinter) V(msg string, args ...interface{}) {
	if p.verbosity >= 2 {
		p.term.Print(fmt.Sprintf(msg, args...))
	}
}

func (p *TerminalPrinter) VV(msg string, args ...interface{}) {
	if p.verbosity >= 3 {
		p.term.Print(fmt.Sprintf(msg, args...))
	}
}
