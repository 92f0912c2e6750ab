package utils

import "time"

// Timer wraps time.Timer, additionally remembering the deadline it was
// last armed for, and whether it was already drained, so a caller can
// cheaply no-op a Reset to the same deadline instead of re-arming.
type Timer struct {
	t        *time.Timer
	read     bool
	deadline time.Time
}

// NewTimer creates a new, stopped Timer.
func NewTimer() *Timer {
	t := time.NewTimer(0)
	t.Stop()
	return &Timer{t: t}
}

// Chan returns the channel that fires when the timer expires.
func (t *Timer) Chan() <-chan time.Time {
	return t.t.C
}

// Reset arms the timer for deadline. The zero Time disarms it. A Reset to
// the deadline already armed and not yet read does nothing; otherwise
// Reset stops any pending timer first, since a Go timer must not be
// reset while armed and undrained.
func (t *Timer) Reset(deadline time.Time) {
	if t.deadline.Equal(deadline) && !t.read {
		return
	}
	t.Stop()
	t.deadline = deadline
	if deadline.IsZero() {
		return
	}
	d := time.Until(deadline)
	if d < 0 {
		d = 0
	}
	t.t.Reset(d)
	t.read = false
}

// SetRead must be called once the timer's channel has fired and been
// drained by the caller.
func (t *Timer) SetRead() {
	t.read = true
}

// Deadline returns the deadline the timer is currently armed for.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

// Stop stops the timer, draining it if necessary.
func (t *Timer) Stop() {
	if !t.t.Stop() && !t.read {
		select {
		case <-t.t.C:
		default:
		}
	}
}
