package congestion

import (
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/utils"
)

// cubicSender is the default SendAlgorithmWithDebugInfo: classic slow
// start followed by CUBIC's convex/concave window growth, with multiplicative
// decrease on loss. It has no bandwidth sampler of its own, so
// BandwidthEstimate derives an estimate from cwnd/RTT for the pacer's sake.
type cubicSender struct {
	clock    Clock
	rttStats *utils.RTTStats
	cubic    *cubic

	initialCongestionWindow protocol.ByteCount
	maxCongestionWindow     protocol.ByteCount

	congestionWindow    protocol.ByteCount
	slowStartThreshold  protocol.ByteCount
	largestSentPacket   protocol.PacketNumber
	largestAckedPacket  protocol.PacketNumber
	largestSentAtLastCutback protocol.PacketNumber
	inRecovery           bool
}

func NewCubicSender(clock Clock, rttStats *utils.RTTStats, initialWindow, maxWindow protocol.ByteCount) SendAlgorithmWithDebugInfo {
	return &cubicSender{
		clock:                   clock,
		rttStats:                rttStats,
		cubic:                   newCubic(clock),
		initialCongestionWindow: initialWindow * protocol.DefaultMaxDatagramSize,
		maxCongestionWindow:     maxWindow * protocol.DefaultMaxDatagramSize,
		congestionWindow:        initialWindow * protocol.DefaultMaxDatagramSize,
		slowStartThreshold:      maxWindow * protocol.DefaultMaxDatagramSize,
		largestAckedPacket:      protocol.InvalidPacketNumber,
	}
}

func (c *cubicSender) OnPacketSent(sentTime time.Time, bytesInFlight protocol.ByteCount, pn protocol.PacketNumber, size protocol.ByteCount, isRetransmittable bool) {
	if !isRetransmittable {
		return
	}
	c.largestSentPacket = pn
}

func (c *cubicSender) CanSend(bytesInFlight protocol.ByteCount) bool {
	return bytesInFlight < c.congestionWindow
}

func (c *cubicSender) inSlowStart() bool {
	return c.congestionWindow < c.slowStartThreshold
}

func (c *cubicSender) OnPacketAcked(pn protocol.PacketNumber, ackedBytes, bytesInFlight protocol.ByteCount, eventTime time.Time) {
	c.largestAckedPacket = utils.Max(c.largestAckedPacket, pn)
	if c.inRecoveryWindow(pn) {
		return
	}
	if bytesInFlight < c.congestionWindow {
		// Not congestion-window-limited; don't grow on this ACK.
		return
	}
	if c.inSlowStart() {
		c.congestionWindow += protocol.DefaultMaxDatagramSize
		return
	}
	c.congestionWindow = c.cubic.congestionWindowAfterAck(c.congestionWindow, c.rttStats.MinRTT())
	if c.congestionWindow > c.maxCongestionWindow {
		c.congestionWindow = c.maxCongestionWindow
	}
}

func (c *cubicSender) inRecoveryWindow(pn protocol.PacketNumber) bool {
	return c.inRecovery && pn <= c.largestSentAtLastCutback
}

func (c *cubicSender) OnCongestionEvent(pn protocol.PacketNumber, lostBytes, bytesInFlight protocol.ByteCount) {
	if c.inRecoveryWindow(pn) {
		return
	}
	c.inRecovery = true
	c.largestSentAtLastCutback = c.largestSentPacket
	c.congestionWindow = c.cubic.congestionWindowAfterPacketLoss(c.congestionWindow)
	if c.congestionWindow < c.initialCongestionWindow {
		c.congestionWindow = c.initialCongestionWindow
	}
	c.slowStartThreshold = c.congestionWindow
}

func (c *cubicSender) CongestionWindow() protocol.ByteCount {
	return c.congestionWindow
}

func (c *cubicSender) BandwidthEstimate() Bandwidth {
	srtt := c.rttStats.SmoothedRTT()
	if srtt <= 0 {
		return 0
	}
	return Bandwidth(float64(c.congestionWindow) * 8 * float64(time.Second) / float64(srtt))
}
