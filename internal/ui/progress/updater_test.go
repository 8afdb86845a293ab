package progress_test

import (
	"sync"
	"testing"
	"time"

	rtest "github.com/fdl66/chongshan/internal/test"
	"github.com/fdl66/chongshan/internal/ui/progress"
)

func TestUpdater(t *testing.T) {
	var (
		m      sync.Mutex
		calls  int
		finals int
	)

	u := progress.NewUpdater(time.Millisecond, func(runtime time.Duration, final bool) {
		m.Lock()
		defer m.Unlock()
		calls++
		if final {
			finals++
		}
	})

	time.Sleep(20 * time.Millisecond)
	u.Done()
	u.Done()

	m.Lock()
	defer m.Unlock()
	rtest.Assert(t, calls > 1, "expected periodic reports, got %d", calls)
	rtest.Equals(t, 1, finals)
}

func TestUpdaterFinalOnly(t *testing.T) {
	var finals []bool
	u := progress.NewUpdater(0, func(_ time.Duration, final bool) {
		finals = append(finals, final)
	})
	u.Done()
	rtest.Equals(t, []bool{true}, finals)
}

func TestNilUpdater(t *testing.T) {
	var u *progress.Updater
	u.Done()
}
