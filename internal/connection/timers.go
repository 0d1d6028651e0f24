package connection

import (
	"time"

	"github.com/benbjohnson/clock"
)

// timerSlot holds at most one pending timer. Arming replaces and stops the
// previous one. Callers must also check a generation stamp when the timer
// fires, since Stop cannot recall a callback that is already running.
type timerSlot struct {
	timer *clock.Timer
}

func (s *timerSlot) arm(clk clock.Clock, d time.Duration, fn func()) {
	s.cancel()
	s.timer = clk.AfterFunc(d, fn)
}

func (s *timerSlot) cancel() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
}

func (s *timerSlot) armed() bool {
	return s.timer != nil
}
