package ackhandler

import (
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/wire"
)

// Packet is the bookkeeping record the SentPacketHandler keeps for one
// sent, ack-eliciting packet.
type Packet struct {
	PacketNumber protocol.PacketNumber
	Frames       []*Frame
	LargestAcked protocol.PacketNumber // InvalidPacketNumber if no ACK frame was included
	Length       protocol.ByteCount
	SendTime     time.Time

	IsPathMTUProbePacket bool

	declaredLost          bool
	skippedPacket         bool
	includedInBytesInFlight bool
}

// SendMode tells the session's packet-assembly loop what kind of packets,
// if any, it may currently send.
type SendMode uint8

const (
	// SendAny allows sending any kind of packet.
	SendAny SendMode = iota
	// SendAck allows only ACK-only packets: congestion control forbids
	// new data, but an ACK may still go out.
	SendAck
	// SendPTOAppData allows sending a probe packet carrying retransmitted
	// or new application data, used to satisfy an outstanding PTO probe
	// count.
	SendPTOAppData
	// SendNone forbids sending anything: the tracked-packet history has
	// grown too large to accept more in-flight packets.
	SendNone
)

// SentPacketHandler tracks packets this session has sent, processes
// incoming ACKs against them, and runs the loss-detection and PTO timer.
type SentPacketHandler interface {
	// SentPacket records that packet was just sent.
	SentPacket(packet *Packet)
	// ReceivedAck processes an incoming ACK frame.
	ReceivedAck(frame *wire.AckFrame, now time.Time) error

	// SendMode reports what the session may currently send.
	SendMode(now time.Time) SendMode
	// TimeUntilSend is the time at which pacing next permits a send.
	TimeUntilSend() time.Time
	// HasPacingBudget reports whether the pacer currently allows a full
	// packet to be sent.
	HasPacingBudget(now time.Time) bool

	// QueueProbePacket requests that the next assembled packet be a PTO
	// probe; it returns whether a packet was actually queued (false if
	// there was nothing outstanding to retransmit).
	QueueProbePacket() bool

	// GetLossDetectionTimeout returns the deadline the loss-detection
	// alarm is armed for.
	GetLossDetectionTimeout() time.Time
	// OnLossDetectionTimeout must be called once GetLossDetectionTimeout
	// has passed.
	OnLossDetectionTimeout(now time.Time) error

	// BytesInFlight returns the sum of the lengths of every sent packet
	// currently counted against the congestion window.
	BytesInFlight() protocol.ByteCount
	// LargestAcked returns the largest packet number the peer has acked
	// so far, or InvalidPacketNumber if none has been acked yet. Used to
	// minimize the packet number length of the next outgoing packet.
	LargestAcked() protocol.PacketNumber
}

// ReceivedPacketHandler tracks which packets this session has received,
// and decides when an ACK frame should be sent.
type ReceivedPacketHandler interface {
	// IsPotentiallyDuplicate reports whether pn looks like it may already
	// have been received, without the cost of a full ACK range scan.
	IsPotentiallyDuplicate(pn protocol.PacketNumber) bool
	// ReceivedPacket records that pn was received at rcvTime, instigating
	// an ACK per the rules documented on receivedPacketHandler.ReceivedPacket
	// if shouldInstigateAck.
	ReceivedPacket(pn protocol.PacketNumber, rcvTime time.Time, shouldInstigateAck bool) error

	// GetAlarmTimeout returns the deadline the ACK alarm is armed for.
	GetAlarmTimeout() time.Time
	// GetAckFrame returns an ACK frame, with DelayTime stamped relative
	// to now, if there's new information to report, and either the ACK
	// is queued or onlyIfQueued is false.
	GetAckFrame(now time.Time, onlyIfQueued bool) *wire.AckFrame
}
