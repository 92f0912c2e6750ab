package quiccore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionTimerFirstResetAlwaysApplies(t *testing.T) {
	st := newSessionTimer()
	deadline := time.Now().Add(time.Hour)
	st.MaybeReset(timerModeIdle, deadline)
	require.Equal(t, deadline, st.timer.Deadline())
	require.Equal(t, timerModeIdle, st.lastMode)
}

func TestSessionTimerSpuriousWakeSameModeSameDeadlineIsNoOp(t *testing.T) {
	st := newSessionTimer()
	deadline := time.Now().Add(time.Hour)
	st.MaybeReset(timerModeLossDetection, deadline)
	st.SetRead()
	require.True(t, st.wasRead)

	st.MaybeReset(timerModeLossDetection, deadline)
	// The no-op path returns before touching wasRead, so it stays set from
	// the earlier SetRead call.
	require.True(t, st.wasRead)
	require.Equal(t, deadline, st.timer.Deadline())
}

func TestSessionTimerDifferentModeAlwaysResets(t *testing.T) {
	st := newSessionTimer()
	deadline := time.Now().Add(time.Hour)
	st.MaybeReset(timerModeLossDetection, deadline)
	st.SetRead()

	other := time.Now().Add(2 * time.Hour)
	st.MaybeReset(timerModePacing, other)
	require.Equal(t, other, st.timer.Deadline())
	require.Equal(t, timerModePacing, st.lastMode)
}

func TestSessionTimerSendImmediatelySentinelAlwaysResets(t *testing.T) {
	st := newSessionTimer()
	st.MaybeReset(timerModeAckAlarm, deadlineSendImmediately)
	st.SetRead()

	st.MaybeReset(timerModeAckAlarm, deadlineSendImmediately)
	require.False(t, st.wasRead)
}

func TestSessionTimerWithoutSetReadAlwaysResets(t *testing.T) {
	st := newSessionTimer()
	deadline := time.Now().Add(time.Hour)
	st.MaybeReset(timerModeIdle, deadline)
	// No SetRead call: wasRead stays false, so a repeat call with identical
	// arguments still goes through the reset path rather than no-op'ing.
	st.MaybeReset(timerModeIdle, deadline)
	require.Equal(t, deadline, st.timer.Deadline())
}

func TestSessionTimerStopAndChan(t *testing.T) {
	st := newSessionTimer()
	st.MaybeReset(timerModeIdle, time.Now().Add(time.Millisecond))

	select {
	case <-st.Chan():
	case <-time.After(time.Second):
		t.Fatal("session timer did not fire")
	}
	st.SetRead()
	st.Stop()
}
