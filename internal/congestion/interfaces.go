package congestion

import (
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
)

// Bandwidth is expressed in bits per second.
type Bandwidth uint64

const BytesPerSecond Bandwidth = 8

// Clock abstracts the current time for the benefit of deterministic tests,
// mirroring the indirection the session layer uses for the same reason.
type Clock interface {
	Now() time.Time
}

// DefaultClock is the production Clock, backed by the real wall clock.
type DefaultClock struct{}

func (DefaultClock) Now() time.Time { return time.Now() }

// SendAlgorithmWithDebugInfo is the pluggable congestion-control strategy a
// session's SentPacketHandler drives. Both Cubic and BBR implement it, and
// the session picks one at connection-establishment time rather than at
// build time, so a process can run mixed congestion controllers across
// connections simultaneously.
type SendAlgorithmWithDebugInfo interface {
	// OnPacketSent is called for every ack-eliciting packet handed to the
	// wire, whether or not it counts toward bytesInFlight (it always does
	// in this core, since there's no separate probe-packet exemption).
	OnPacketSent(sentTime time.Time, bytesInFlight protocol.ByteCount, pn protocol.PacketNumber, size protocol.ByteCount, isRetransmittable bool)
	// CanSend reports whether bytesInFlight is still below the congestion
	// window; the size of the next packet is not taken into account.
	CanSend(bytesInFlight protocol.ByteCount) bool
	// OnPacketAcked updates the window following a newly-acknowledged
	// packet.
	OnPacketAcked(pn protocol.PacketNumber, ackedBytes, bytesInFlight protocol.ByteCount, eventTime time.Time)
	// OnCongestionEvent reacts to a single lost packet; callers invoke it
	// once per packet detectLostPackets reports, not once per ACK.
	OnCongestionEvent(pn protocol.PacketNumber, lostBytes, bytesInFlight protocol.ByteCount)
	// CongestionWindow returns the current congestion window, in bytes.
	CongestionWindow() protocol.ByteCount
	// BandwidthEstimate returns the algorithm's current bandwidth
	// estimate, used by the pacer; Cubic derives it from cwnd/RTT since it
	// has no direct bandwidth sampler.
	BandwidthEstimate() Bandwidth
}
