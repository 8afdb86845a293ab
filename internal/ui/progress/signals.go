package progress

import (
	"os"
	"os/signal"
	"sync"
)

type signalSet struct {
	ch   chan os.Signal
	once sync.Once
}

var signals signalSet

// GetProgressChannel returns a channel receiving the signals that request a
// progress report. Platforms without such signals get a channel that never
// fires.
func (s *signalSet) GetProgressChannel() <-chan os.Signal {
	s.once.Do(func() {
		s.ch = make(chan os.Signal, 1)
		if len(progressSignals) > 0 {
			signal.Notify(s.ch, progressSignals...)
		}
	})
	return s.ch
}
