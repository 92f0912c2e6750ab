package ackhandler

import (
	"container/list"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/wire"
)

const maxAckRanges = 64

// receivedPacketHistory tracks which packet numbers have been received,
// as a sorted, non-overlapping, non-adjacent list of inclusive ranges,
// capped at maxAckRanges entries by discarding the oldest (lowest-start)
// range on overflow.
type receivedPacketHistory struct {
	ranges      *list.List // of wire.AckRange, ascending by Smallest
	deletedBelow protocol.PacketNumber
}

func newReceivedPacketHistory() *receivedPacketHistory {
	return &receivedPacketHistory{ranges: list.New()}
}

// ReceivedPacket records pn as received. It returns whether pn was new
// (not already covered by an existing range and not below the deleted
// watermark).
func (h *receivedPacketHistory) ReceivedPacket(pn protocol.PacketNumber) bool {
	if pn < h.deletedBelow {
		return false
	}

	if h.ranges.Len() == 0 {
		h.ranges.PushBack(&wire.AckRange{Smallest: pn, Largest: pn})
		return true
	}

	for el := h.ranges.Back(); el != nil; el = el.Prev() {
		r := el.Value.(*wire.AckRange)
		if pn >= r.Smallest && pn <= r.Largest {
			return false // already known
		}
		if pn == r.Largest+1 {
			r.Largest = pn
			h.mergeForward(el)
			h.capRanges()
			return true
		}
		if pn == r.Smallest-1 {
			r.Smallest = pn
			h.mergeBackward(el)
			h.capRanges()
			return true
		}
		if pn > r.Largest {
			h.ranges.InsertAfter(&wire.AckRange{Smallest: pn, Largest: pn}, el)
			h.capRanges()
			return true
		}
	}
	// pn is below every existing range's smallest value.
	h.ranges.PushFront(&wire.AckRange{Smallest: pn, Largest: pn})
	h.capRanges()
	return true
}

func (h *receivedPacketHistory) mergeForward(el *list.Element) {
	r := el.Value.(*wire.AckRange)
	next := el.Next()
	if next == nil {
		return
	}
	nr := next.Value.(*wire.AckRange)
	if r.Largest+1 == nr.Smallest {
		r.Largest = nr.Largest
		h.ranges.Remove(next)
	}
}

func (h *receivedPacketHistory) mergeBackward(el *list.Element) {
	r := el.Value.(*wire.AckRange)
	prev := el.Prev()
	if prev == nil {
		return
	}
	pr := prev.Value.(*wire.AckRange)
	if pr.Largest+1 == r.Smallest {
		r.Smallest = pr.Smallest
		h.ranges.Remove(prev)
	}
}

func (h *receivedPacketHistory) capRanges() {
	for h.ranges.Len() > maxAckRanges {
		h.ranges.Remove(h.ranges.Front())
	}
}

// AckRanges returns the ranges largest-first, matching the order the
// wire ACK frame encodes them in.
func (h *receivedPacketHistory) AckRanges() []wire.AckRange {
	ranges := make([]wire.AckRange, 0, h.ranges.Len())
	for el := h.ranges.Back(); el != nil; el = el.Prev() {
		ranges = append(ranges, *el.Value.(*wire.AckRange))
	}
	return ranges
}

// DeleteBelow drops every range wholly below pn and truncates any range
// straddling it, advancing the deleted-below watermark.
func (h *receivedPacketHistory) DeleteBelow(pn protocol.PacketNumber) {
	if pn <= h.deletedBelow {
		return
	}
	h.deletedBelow = pn
	for el := h.ranges.Front(); el != nil; {
		next := el.Next()
		r := el.Value.(*wire.AckRange)
		switch {
		case r.Largest < pn:
			h.ranges.Remove(el)
		case r.Smallest < pn:
			r.Smallest = pn
		}
		el = next
	}
}

func (h *receivedPacketHistory) IsEmpty() bool { return h.ranges.Len() == 0 }
