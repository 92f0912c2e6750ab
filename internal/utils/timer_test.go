package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerFiresAtDeadline(t *testing.T) {
	tm := NewTimer()
	deadline := time.Now().Add(10 * time.Millisecond)
	tm.Reset(deadline)
	require.Equal(t, deadline, tm.Deadline())

	select {
	case <-tm.Chan():
		tm.SetRead()
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimerResetToSameDeadlineIsNoOp(t *testing.T) {
	tm := NewTimer()
	deadline := time.Now().Add(time.Hour)
	tm.Reset(deadline)
	tm.Reset(deadline)
	require.Equal(t, deadline, tm.Deadline())
}

func TestTimerResetToZeroDisarms(t *testing.T) {
	tm := NewTimer()
	tm.Reset(time.Now().Add(time.Hour))
	tm.Reset(time.Time{})
	require.True(t, tm.Deadline().IsZero())

	select {
	case <-tm.Chan():
		t.Fatal("disarmed timer should not fire")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTimerStopIsIdempotent(t *testing.T) {
	tm := NewTimer()
	tm.Reset(time.Now().Add(time.Hour))
	tm.Stop()
	tm.Stop()
}
