package ackhandler

import (
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/utils"
	"github.com/qcore-go/qcore/internal/wire"
)

type receivedPacketHandler struct {
	history *receivedPacketHistory

	ackElicitingPacketsReceivedSinceLastAck int
	ackQueued                                bool
	ackAlarm                                 time.Time
	lastAck                                  *wire.AckFrame

	// hasNewAck tracks whether anything has changed in the receive
	// history since the last frame GetAckFrame returned, so a caller
	// polling with onlyIfQueued=false doesn't get handed the same ACK
	// over and over.
	hasNewAck bool

	largestObserved     protocol.PacketNumber
	largestObservedTime time.Time

	packetsBeforeAck int
	maxAckDelay      time.Duration
}

func NewReceivedPacketHandler(packetsBeforeAck int, maxAckDelay time.Duration) ReceivedPacketHandler {
	if packetsBeforeAck <= 0 {
		packetsBeforeAck = protocol.PacketsBeforeAck
	}
	if maxAckDelay <= 0 {
		maxAckDelay = protocol.DefaultAckSendDelay
	}
	return &receivedPacketHandler{
		history:          newReceivedPacketHistory(),
		largestObserved:  protocol.InvalidPacketNumber,
		packetsBeforeAck: packetsBeforeAck,
		maxAckDelay:      maxAckDelay,
	}
}

func (h *receivedPacketHandler) IsPotentiallyDuplicate(pn protocol.PacketNumber) bool {
	if h.history.IsEmpty() {
		return false
	}
	for _, r := range h.history.AckRanges() {
		if pn >= r.Smallest && pn <= r.Largest {
			return true
		}
	}
	return false
}

// ReceivedPacket records pn and decides whether it instigates an ACK:
// an ack-eliciting packet queues one immediately while no ACK has been
// sent yet or when it arrives out of order, and otherwise on every
// packetsBeforeAck-th ack-eliciting packet since the last ACK; in
// between it arms the ACK alarm.
func (h *receivedPacketHandler) ReceivedPacket(pn protocol.PacketNumber, rcvTime time.Time, shouldInstigateAck bool) error {
	isNew := h.history.ReceivedPacket(pn)
	if !isNew {
		return nil
	}
	h.hasNewAck = true
	if pn > h.largestObserved {
		h.largestObserved = pn
		h.largestObservedTime = rcvTime
	}
	if !shouldInstigateAck {
		return nil
	}

	h.ackElicitingPacketsReceivedSinceLastAck++

	isMissingPackets := h.isOutOfOrder(pn)
	if h.lastAck == nil || isMissingPackets || h.ackElicitingPacketsReceivedSinceLastAck >= h.packetsBeforeAck {
		h.ackQueued = true
		h.ackAlarm = time.Time{}
		return nil
	}

	if h.ackAlarm.IsZero() {
		h.ackAlarm = rcvTime.Add(h.ackTimeout())
	}
	return nil
}

// isOutOfOrder reports whether pn arrived below the current largest
// received packet number, which always triggers an immediate ACK since
// it may indicate loss the sender needs to learn about promptly.
func (h *receivedPacketHandler) isOutOfOrder(pn protocol.PacketNumber) bool {
	ranges := h.history.AckRanges()
	if len(ranges) == 0 {
		return false
	}
	largest := ranges[0].Largest // AckRanges() returns largest-first
	return pn < largest
}

func (h *receivedPacketHandler) ackTimeout() time.Duration {
	return utils.Min(h.maxAckDelay, protocol.DefaultAckSendDelay)
}

func (h *receivedPacketHandler) GetAlarmTimeout() time.Time {
	return h.ackAlarm
}

func (h *receivedPacketHandler) GetAckFrame(now time.Time, onlyIfQueued bool) *wire.AckFrame {
	if onlyIfQueued && !h.ackQueued {
		return nil
	}
	if !h.hasNewAck {
		return nil
	}
	if h.history.IsEmpty() {
		return nil
	}
	ack := &wire.AckFrame{
		AckRanges: h.history.AckRanges(),
		DelayTime: utils.Max(0, now.Sub(h.largestObservedTime)),
	}
	h.ackQueued = false
	h.hasNewAck = false
	h.ackAlarm = time.Time{}
	h.ackElicitingPacketsReceivedSinceLastAck = 0
	h.lastAck = ack
	return ack
}
