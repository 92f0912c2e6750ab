package ackhandler

import (
	"container/list"

	"github.com/qcore-go/qcore/internal/protocol"
)

// sentPacketHistory keeps every in-flight ack-eliciting packet, ordered
// by packet number; a packet is removed once it is acked or declared
// lost. A map from packet
// number to its list element gives O(1) lookup for ACK processing,
// while the list preserves send order for iteration during loss
// detection and pruning.
type sentPacketHistory struct {
	packetList *list.List
	packetMap  map[protocol.PacketNumber]*list.Element

	highestSent protocol.PacketNumber
}

func newSentPacketHistory() *sentPacketHistory {
	return &sentPacketHistory{
		packetList:  list.New(),
		packetMap:   make(map[protocol.PacketNumber]*list.Element),
		highestSent: protocol.InvalidPacketNumber,
	}
}

// SentAckElicitingPacket must be called in pn order; it requires
// packet.PacketNumber > highestSent and has no notion of skipped packet
// numbers, since this core's packet-number generator never skips (the
// source's generate_new_skip probing defence is intentionally out of
// scope).
func (h *sentPacketHistory) SentAckElicitingPacket(p *Packet) {
	el := h.packetList.PushBack(p)
	h.packetMap[p.PacketNumber] = el
	h.highestSent = p.PacketNumber
}

// SentNonAckElicitingPacket updates highestSent without adding anything
// to the tracked history, since it carries no frames that need acking.
func (h *sentPacketHistory) SentNonAckElicitingPacket(pn protocol.PacketNumber) {
	h.highestSent = pn
}

func (h *sentPacketHistory) GetPacket(pn protocol.PacketNumber) *Packet {
	el, ok := h.packetMap[pn]
	if !ok {
		return nil
	}
	return el.Value.(*Packet)
}

// Remove deletes the packet with the given number from the history, once
// it has been acked or permanently forgotten after a loss.
func (h *sentPacketHistory) Remove(pn protocol.PacketNumber) {
	el, ok := h.packetMap[pn]
	if !ok {
		return
	}
	h.packetList.Remove(el)
	delete(h.packetMap, pn)
}

// Iterate walks every still-tracked packet in ascending pn order,
// invoking cb on each; cb returning false stops the iteration early.
func (h *sentPacketHistory) Iterate(cb func(*Packet) (cont bool)) {
	for el := h.packetList.Front(); el != nil; {
		next := el.Next()
		if !cb(el.Value.(*Packet)) {
			return
		}
		el = next
	}
}

// FirstOutstanding returns the lowest-numbered packet still tracked, or
// nil if the history is empty.
func (h *sentPacketHistory) FirstOutstanding() *Packet {
	el := h.packetList.Front()
	if el == nil {
		return nil
	}
	return el.Value.(*Packet)
}

func (h *sentPacketHistory) Len() int {
	return h.packetList.Len()
}
