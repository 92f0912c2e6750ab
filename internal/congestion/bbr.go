package congestion

import (
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/utils"
)

type bbrMode int

const (
	bbrStartup bbrMode = iota
	bbrDrain
	bbrProbeBW
	bbrProbeRTT
)

const (
	bbrHighGain       = 2.885 // 2/ln(2), startup pacing/cwnd gain
	bbrDrainGain      = 1 / bbrHighGain
	bbrDefaultGain    = 1.0
	bbrMinCongestionWindow = 4 * protocol.DefaultMaxDatagramSize
	bbrBandwidthWindow = 10 // round trips
	bbrMinRTTExpiry   = 10 * time.Second
	bbrProbeRTTDuration = 200 * time.Millisecond
)

var bbrPacingGainCycle = []float64{1.25, 0.75, 1, 1, 1, 1, 1, 1}

// bbrSender is a condensed implementation of BBR's bandwidth-and-RTT-based
// pacing model: it estimates bottleneck bandwidth via a windowed max
// filter over delivery-rate samples instead of reacting to loss, cycling
// through STARTUP, DRAIN, PROBE_BW and PROBE_RTT the way the source's
// bbrMode state machine does.
type bbrSender struct {
	clock    Clock
	rttStats *utils.RTTStats

	mode bbrMode

	maxBandwidth *windowedMaxFilter
	minRTT       time.Duration
	minRTTStamp  time.Time

	congestionWindow    protocol.ByteCount
	initialCongestionWindow protocol.ByteCount
	maxCongestionWindow protocol.ByteCount

	pacingGain   float64
	cwndGain     float64
	cycleIndex   int
	cycleStart   time.Time

	probeRTTDoneAt time.Time
	roundTripCount int64

	largestSentPacket protocol.PacketNumber
}

func NewBBRSender(clock Clock, rttStats *utils.RTTStats, initialWindow, maxWindow protocol.ByteCount) SendAlgorithmWithDebugInfo {
	return &bbrSender{
		clock:                   clock,
		rttStats:                rttStats,
		mode:                    bbrStartup,
		maxBandwidth:            newWindowedMaxFilter(bbrBandwidthWindow),
		congestionWindow:        initialWindow * protocol.DefaultMaxDatagramSize,
		initialCongestionWindow: initialWindow * protocol.DefaultMaxDatagramSize,
		maxCongestionWindow:     maxWindow * protocol.DefaultMaxDatagramSize,
		pacingGain:              bbrHighGain,
		cwndGain:                bbrHighGain,
	}
}

func (b *bbrSender) OnPacketSent(sentTime time.Time, bytesInFlight protocol.ByteCount, pn protocol.PacketNumber, size protocol.ByteCount, isRetransmittable bool) {
	if isRetransmittable {
		b.largestSentPacket = pn
	}
}

func (b *bbrSender) CanSend(bytesInFlight protocol.ByteCount) bool {
	return bytesInFlight < b.congestionWindow
}

func (b *bbrSender) OnPacketAcked(pn protocol.PacketNumber, ackedBytes, bytesInFlight protocol.ByteCount, eventTime time.Time) {
	srtt := b.rttStats.LatestRTT()
	if srtt > 0 {
		if b.minRTT == 0 || srtt < b.minRTT || eventTime.Sub(b.minRTTStamp) > bbrMinRTTExpiry {
			b.minRTT = srtt
			b.minRTTStamp = eventTime
		}
		deliveryRate := Bandwidth(float64(ackedBytes) * 8 * float64(time.Second) / float64(srtt))
		b.maxBandwidth.Update(int64(deliveryRate), eventTime.UnixNano())
	}

	b.updateMode(eventTime)
	target := protocol.ByteCount(float64(b.bdp()) * b.cwndGain)
	if target < bbrMinCongestionWindow {
		target = bbrMinCongestionWindow
	}
	if target > b.maxCongestionWindow {
		target = b.maxCongestionWindow
	}
	b.congestionWindow = target
}

func (b *bbrSender) updateMode(now time.Time) {
	switch b.mode {
	case bbrStartup:
		// Leave STARTUP once bandwidth stops growing; this core
		// approximates "stopped growing" as cwnd already pinned at
		// maxCongestionWindow, since it doesn't track round-trip-scoped
		// bandwidth growth samples.
		if b.congestionWindow >= b.maxCongestionWindow {
			b.mode = bbrDrain
			b.pacingGain = bbrDrainGain
			b.cwndGain = bbrHighGain
		}
	case bbrDrain:
		if b.congestionWindow <= b.bdp() {
			b.mode = bbrProbeBW
			b.cycleStart = now
			b.cycleIndex = 0
			b.pacingGain = bbrPacingGainCycle[0]
			b.cwndGain = bbrDefaultGain
		}
	case bbrProbeBW:
		if now.Sub(b.cycleStart) >= b.rttStats.SmoothedRTT() {
			b.cycleStart = now
			b.cycleIndex = (b.cycleIndex + 1) % len(bbrPacingGainCycle)
			b.pacingGain = bbrPacingGainCycle[b.cycleIndex]
		}
		if b.minRTT > 0 && now.Sub(b.minRTTStamp) > bbrMinRTTExpiry {
			b.mode = bbrProbeRTT
			b.probeRTTDoneAt = now.Add(bbrProbeRTTDuration)
			b.pacingGain = bbrDefaultGain
			b.cwndGain = bbrDefaultGain
		}
	case bbrProbeRTT:
		if !b.probeRTTDoneAt.IsZero() && !now.Before(b.probeRTTDoneAt) {
			b.minRTTStamp = now
			b.mode = bbrProbeBW
			b.cycleStart = now
			b.cycleIndex = 0
			b.pacingGain = bbrPacingGainCycle[0]
		}
	}
}

// bdp is the bandwidth-delay product: bottleneck bandwidth times min RTT,
// BBR's estimate of how much data can be in flight without queueing.
func (b *bbrSender) bdp() protocol.ByteCount {
	if b.minRTT == 0 {
		return b.initialCongestionWindow
	}
	bw := Bandwidth(b.maxBandwidth.Best())
	return protocol.ByteCount(float64(bw) / 8 * b.minRTT.Seconds())
}

func (b *bbrSender) OnCongestionEvent(pn protocol.PacketNumber, lostBytes, bytesInFlight protocol.ByteCount) {
	// BBR does not cut cwnd directly on loss; persistent loss shows up as
	// a bandwidth sample drop instead, which updateMode already reacts to.
}

func (b *bbrSender) CongestionWindow() protocol.ByteCount {
	return b.congestionWindow
}

func (b *bbrSender) BandwidthEstimate() Bandwidth {
	return Bandwidth(b.maxBandwidth.Best())
}
