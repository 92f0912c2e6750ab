package quiccore

import (
	"time"

	"github.com/qcore-go/qcore/internal/utils"
)

type timerMode uint8

const (
	timerModeAckAlarm timerMode = 1 + iota
	timerModeLossDetection
	timerModePacing
	timerModeIdle
)

// deadlineSendImmediately is a sentinel deadline meaning "wake up now",
// distinct from the zero Time (meaning "no deadline"): MaybeReset must
// never suppress a reset to this value even if it matches lastMode's
// previous deadline.
var deadlineSendImmediately = time.Time{}.Add(1)

// sessionTimer is the single scheduled wake-up a session's run loop
// awaits, combining the ACK alarm, loss-detection timeout, and pacing
// deadline into whichever fires soonest. MaybeReset mirrors the
// teacher's busy-loop guard: re-arming to the same deadline in the same
// mode after a spurious wake is a no-op.
type sessionTimer struct {
	timer    *utils.Timer
	lastMode timerMode
	wasRead  bool
}

func newSessionTimer() *sessionTimer {
	return &sessionTimer{timer: utils.NewTimer()}
}

func (t *sessionTimer) Chan() <-chan time.Time { return t.timer.Chan() }
func (t *sessionTimer) Stop()                  { t.timer.Stop() }

func (t *sessionTimer) SetRead() {
	t.wasRead = true
	t.timer.SetRead()
}

func (t *sessionTimer) MaybeReset(m timerMode, d time.Time) {
	if t.wasRead && m == t.lastMode && d != deadlineSendImmediately && t.timer.Deadline().Equal(d) {
		return
	}
	t.lastMode = m
	t.wasRead = false
	t.timer.Reset(d)
}
