package progress

import (
	"testing"

	rtest "github.com/fdl66/chongshan/internal/test"
)

type recordingTerm struct {
	out, errs []string
}

func (t *recordingTerm) Print(line string) { t.out = append(t.out, line) }
func (t *recordingTerm) Error(line string) { t.errs = append(t.errs, line) }
func (t *recordingTerm) SetStatus(_ []string) {}
func (t *recordingTerm) CanUpdateStatus() bool { return false }

func TestTerminalPrinterVerbosity(t *testing.T) {
	for _, c := range []struct {
		verbosity uint
		out       []string
	}{
		{0, nil},
		{1, []string{"p 1"}},
		{2, []string{"p 1", "v 2"}},
		{3, []string{"p 1", "v 2", "vv 3"}},
	} {
		term := &recordingTerm{}
		p := NewTerminalPrinter(term, c.verbosity)
		p.E("e %d", 0)
		p.P("p %d", 1)
		p.V("v %d", 2)
		p.VV("vv %d", 3)

		rtest.Equals(t, c.out, term.out)
		rtest.Equals(t, []string{"e 0"}, term.errs)
	}
}
