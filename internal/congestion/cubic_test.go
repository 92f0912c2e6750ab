package congestion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qcore-go/qcore/internal/protocol"
)

func TestCubicCongestionWindowAfterPacketLossShrinksByBeta(t *testing.T) {
	c := newCubic(newFakeClock(time.Now()))
	cwnd := protocol.ByteCount(100 * protocol.DefaultMaxDatagramSize)

	next := c.congestionWindowAfterPacketLoss(cwnd)
	require.Equal(t, protocol.ByteCount(float64(cwnd)*cubicBeta), next)
	require.Equal(t, cwnd, c.lastMaxCwnd)
	require.True(t, c.epochStart.IsZero())
}

func TestCubicCongestionWindowAfterPacketLossBelowLastMaxShrinksFromMidpoint(t *testing.T) {
	c := newCubic(newFakeClock(time.Now()))
	c.lastMaxCwnd = protocol.ByteCount(200 * protocol.DefaultMaxDatagramSize)

	cwnd := protocol.ByteCount(100 * protocol.DefaultMaxDatagramSize)
	c.congestionWindowAfterPacketLoss(cwnd)

	require.Equal(t, protocol.ByteCount(float64(cwnd)*(1+cubicBeta)/2), c.lastMaxCwnd)
}

func TestCubicCongestionWindowAfterAckGrowsOverTime(t *testing.T) {
	clock := newFakeClock(time.Now())
	c := newCubic(clock)
	cwnd := protocol.ByteCount(100 * protocol.DefaultMaxDatagramSize)

	w1 := c.congestionWindowAfterAck(cwnd, 50*time.Millisecond)
	require.GreaterOrEqual(t, w1, cwnd)

	clock.Advance(time.Second)
	w2 := c.congestionWindowAfterAck(w1, 50*time.Millisecond)
	require.Greater(t, w2, w1, "cwnd should keep growing as the epoch elapses")
}

func TestCubicCongestionWindowAfterAckCapsGrowthPerCall(t *testing.T) {
	clock := newFakeClock(time.Now())
	c := newCubic(clock)
	c.lastMaxCwnd = protocol.ByteCount(1000 * protocol.DefaultMaxDatagramSize)
	cwnd := protocol.ByteCount(10 * protocol.DefaultMaxDatagramSize)

	clock.Advance(100 * time.Second)
	next := c.congestionWindowAfterAck(cwnd, time.Millisecond)
	require.LessOrEqual(t, next, cwnd+protocol.ByteCount(float64(cwnd)*0.5))
}

func TestCubicReset(t *testing.T) {
	c := newCubic(newFakeClock(time.Now()))
	c.lastMaxCwnd = 1234
	c.reset()
	require.Equal(t, protocol.ByteCount(0), c.lastMaxCwnd)
	require.True(t, c.epochStart.IsZero())
}
