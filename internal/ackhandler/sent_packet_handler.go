package ackhandler

import (
	"fmt"
	"time"

	"github.com/qcore-go/qcore/internal/congestion"
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/internal/utils"
	"github.com/qcore-go/qcore/internal/wire"
)

// timeThreshold and packetThreshold are the two independent loss
// triggers from the source's loss-detection algorithm: a packet is
// lost if either an acked packet arrived packetThreshold packet numbers
// later, or timeThreshold*RTT has elapsed since it was sent.
const (
	packetThreshold = protocol.PacketNumber(3)
	timeThreshold   = 9.0 / 8.0
	granularity     = protocol.TimerGranularity
)

// maxOutstandingPackets bounds the tracked-packet history itself, not
// the congestion window: SendMode must keep allowing new packets for as
// long as the window does, up to DefaultMaxCongestionWindow. This is a
// memory safety backstop for a peer that stops acking entirely, not a
// congestion control signal, so it's sized in the millions rather than
// tied to any cwnd constant. Declared as a var rather than a const so
// tests can lower it instead of constructing millions of packets.
var maxOutstandingPackets = 1 << 20

type sentPacketHandler struct {
	history *sentPacketHistory

	rttStats *utils.RTTStats
	congestion congestion.SendAlgorithmWithDebugInfo
	pacer      *congestion.Pacer

	bytesInFlight protocol.ByteCount

	largestAcked protocol.PacketNumber
	largestSent  protocol.PacketNumber

	ptoCount          int
	numProbesToSend   int
	lossDetectionTimeout time.Time
	lossTime             time.Time

	perspective protocol.Perspective
	logger      utils.Logger
}

func NewSentPacketHandler(
	perspective protocol.Perspective,
	rttStats *utils.RTTStats,
	cc congestion.SendAlgorithmWithDebugInfo,
	logger utils.Logger,
) SentPacketHandler {
	return &sentPacketHandler{
		history:      newSentPacketHistory(),
		rttStats:     rttStats,
		congestion:   cc,
		pacer:        congestion.NewPacer(cc.BandwidthEstimate),
		largestAcked: protocol.InvalidPacketNumber,
		largestSent:  protocol.InvalidPacketNumber,
		perspective:  perspective,
		logger:       logger,
	}
}

func (h *sentPacketHandler) SentPacket(p *Packet) {
	h.largestSent = p.PacketNumber

	isAckEliciting := HasAckElicitingFrames(p.Frames)
	if isAckEliciting {
		h.history.SentAckElicitingPacket(p)
		p.includedInBytesInFlight = true
		h.bytesInFlight += p.Length
		h.congestion.OnPacketSent(p.SendTime, h.bytesInFlight, p.PacketNumber, p.Length, true)
		h.pacer.SentPacket(p.SendTime, p.Length)
		h.setLossDetectionTimer()
	} else {
		h.history.SentNonAckElicitingPacket(p.PacketNumber)
	}

	if h.numProbesToSend > 0 && isAckEliciting {
		h.numProbesToSend--
	}
}

func (h *sentPacketHandler) ReceivedAck(ack *wire.AckFrame, now time.Time) error {
	largestAcked := ack.LargestAcked()
	if largestAcked > h.largestSent {
		return qerr.NewTransportError(qerr.ProtocolViolation, "received ACK for an unsent packet")
	}
	if largestAcked <= h.largestAcked {
		// Stale or duplicate ACK; still useful for nothing further.
		return nil
	}
	priorInFlight := h.bytesInFlight

	ackedPackets, err := h.detectAndRemoveAckedPackets(ack)
	if err != nil {
		return err
	}
	if len(ackedPackets) == 0 {
		return nil
	}

	h.largestAcked = largestAcked

	// RTT sample is taken from the largest newly-acked packet, per the
	// source's handling of ReceivedAck: only that sample reflects
	// ack-delay correctly, since earlier-numbered acked packets may have
	// been acked well after they were actually received.
	if largest := ackedPackets[len(ackedPackets)-1]; largest.PacketNumber == largestAcked {
		h.rttStats.UpdateRTT(now.Sub(largest.SendTime), ack.DelayTime)
	}

	for _, p := range ackedPackets {
		h.onPacketAcked(p, now)
	}

	lostPackets, err := h.detectLostPackets(now, priorInFlight)
	if err != nil {
		return err
	}
	for _, p := range lostPackets {
		h.congestion.OnCongestionEvent(p.PacketNumber, p.Length, priorInFlight)
	}

	h.ptoCount = 0
	h.setLossDetectionTimer()
	return nil
}

func (h *sentPacketHandler) detectAndRemoveAckedPackets(ack *wire.AckFrame) ([]*Packet, error) {
	var acked []*Packet
	ranges := ack.AckRanges
	for i := len(ranges) - 1; i >= 0; i-- {
		r := ranges[i]
		for pn := r.Smallest; pn <= r.Largest; pn++ {
			p := h.history.GetPacket(pn)
			if p == nil {
				continue
			}
			acked = append(acked, p)
		}
	}
	for _, p := range acked {
		if p.includedInBytesInFlight {
			h.bytesInFlight -= p.Length
		}
		h.history.Remove(p.PacketNumber)
	}
	return acked, nil
}

func (h *sentPacketHandler) onPacketAcked(p *Packet, now time.Time) {
	h.congestion.OnPacketAcked(p.PacketNumber, p.Length, h.bytesInFlight, now)
	for _, f := range p.Frames {
		f.onAcked()
	}
}

// detectLostPackets implements the source's packet/time threshold loss
// rule against every packet older than the largest acked.
func (h *sentPacketHandler) detectLostPackets(now time.Time, priorInFlight protocol.ByteCount) ([]*Packet, error) {
	maxRTT := float64(utils.Max(h.rttStats.LatestRTT(), h.rttStats.SmoothedRTT()))
	lossDelay := time.Duration(timeThreshold * maxRTT)
	if lossDelay < granularity {
		lossDelay = granularity
	}

	var lost []*Packet
	h.history.Iterate(func(p *Packet) bool {
		if p.PacketNumber > h.largestAcked {
			return false
		}
		if p.declaredLost {
			return true
		}

		packetLost := false
		if h.largestAcked-p.PacketNumber >= packetThreshold {
			packetLost = true
		} else if !now.Before(p.SendTime.Add(lossDelay)) {
			packetLost = true
		}
		if packetLost {
			p.declaredLost = true
			lost = append(lost, p)
			if p.includedInBytesInFlight {
				h.bytesInFlight -= p.Length
			}
			for _, f := range p.Frames {
				f.onLost()
			}
			h.history.Remove(p.PacketNumber)
		}
		return true
	})
	return lost, nil
}

func (h *sentPacketHandler) setLossDetectionTimer() {
	if h.history.Len() == 0 {
		h.lossDetectionTimeout = time.Time{}
		h.lossTime = time.Time{}
		return
	}
	h.lossTime = h.earliestLossTime()
	if !h.lossTime.IsZero() {
		h.lossDetectionTimeout = h.lossTime
		return
	}
	oldest := h.history.FirstOutstanding()
	pto := h.rttStats.PTOPeriod() * time.Duration(1<<h.ptoCount)
	h.lossDetectionTimeout = oldest.SendTime.Add(pto)
}

// earliestLossTime returns the deadline at which the oldest unacked
// packet within reach of the largest ACK becomes eligible for
// time-threshold loss, or the zero Time if no outstanding packet is
// covered by an ACK yet. History is ordered by packet number, which
// tracks send order, so the first outstanding packet is also the
// earliest one that can time out this way.
func (h *sentPacketHandler) earliestLossTime() time.Time {
	if h.largestAcked == protocol.InvalidPacketNumber {
		return time.Time{}
	}
	oldest := h.history.FirstOutstanding()
	if oldest == nil || oldest.PacketNumber > h.largestAcked {
		return time.Time{}
	}

	maxRTT := float64(utils.Max(h.rttStats.LatestRTT(), h.rttStats.SmoothedRTT()))
	lossDelay := time.Duration(timeThreshold * maxRTT)
	if lossDelay < granularity {
		lossDelay = granularity
	}
	return oldest.SendTime.Add(lossDelay)
}

func (h *sentPacketHandler) GetLossDetectionTimeout() time.Time {
	return h.lossDetectionTimeout
}

func (h *sentPacketHandler) OnLossDetectionTimeout(now time.Time) error {
	if h.lossDetectionTimeout.IsZero() {
		return nil
	}
	if !h.lossTime.IsZero() {
		priorInFlight := h.bytesInFlight
		lostPackets, err := h.detectLostPackets(now, priorInFlight)
		if err != nil {
			return err
		}
		for _, p := range lostPackets {
			h.congestion.OnCongestionEvent(p.PacketNumber, p.Length, priorInFlight)
		}
		h.setLossDetectionTimer()
		if h.logger != nil && h.logger.Debug() {
			h.logger.Debugf("loss detection timeout fired in loss timer mode, declared %d packets lost", len(lostPackets))
		}
		return nil
	}

	h.ptoCount++
	h.numProbesToSend += 2
	h.setLossDetectionTimer()
	if h.logger != nil && h.logger.Debug() {
		h.logger.Debugf("loss detection timeout fired in PTO mode, pto count now %d", h.ptoCount)
	}
	return nil
}

func (h *sentPacketHandler) QueueProbePacket() bool {
	if h.history.Len() == 0 {
		return false
	}
	h.numProbesToSend++
	return true
}

func (h *sentPacketHandler) SendMode(now time.Time) SendMode {
	if h.history.Len() >= maxOutstandingPackets {
		return SendNone
	}
	if h.numProbesToSend > 0 {
		return SendPTOAppData
	}
	if !h.congestion.CanSend(h.bytesInFlight) {
		return SendAck
	}
	return SendAny
}

func (h *sentPacketHandler) TimeUntilSend() time.Time {
	return h.pacer.TimeUntilSend()
}

func (h *sentPacketHandler) HasPacingBudget(now time.Time) bool {
	return h.pacer.Budget(now) >= protocol.DefaultMaxDatagramSize
}

func (h *sentPacketHandler) BytesInFlight() protocol.ByteCount {
	return h.bytesInFlight
}

func (h *sentPacketHandler) LargestAcked() protocol.PacketNumber {
	return h.largestAcked
}

var _ fmt.Stringer = SendMode(0)

func (m SendMode) String() string {
	switch m {
	case SendAny:
		return "any"
	case SendAck:
		return "ack-only"
	case SendPTOAppData:
		return "pto-probe"
	case SendNone:
		return "none"
	default:
		return "invalid"
	}
}
