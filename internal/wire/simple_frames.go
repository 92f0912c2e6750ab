package wire

import (
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/quicvarint"
)

// PingFrame is an ack-eliciting frame with no payload, used to keep a
// connection alive or to solicit an ACK for RTT measurement.
type PingFrame struct{}

func (f *PingFrame) Append(b []byte) ([]byte, error) { return append(b, byte(FrameTypePing)), nil }
func (f *PingFrame) Length() protocol.ByteCount       { return 1 }

// HandshakeDoneFrame signals the server has confirmed the handshake. Its
// production is the responsibility of the (out of scope) handshake
// integration; the frame's wire encoding is in scope.
type HandshakeDoneFrame struct{}

func (f *HandshakeDoneFrame) Append(b []byte) ([]byte, error) {
	return append(b, byte(FrameTypeHandshakeDone)), nil
}
func (f *HandshakeDoneFrame) Length() protocol.ByteCount { return 1 }

// ResetStreamFrame abruptly terminates the sending part of a stream.
type ResetStreamFrame struct {
	StreamID  protocol.StreamID
	ErrorCode uint64
	FinalSize protocol.ByteCount
}

func (f *ResetStreamFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypeResetStream))
	b = quicvarint.Append(b, uint64(f.StreamID))
	b = quicvarint.Append(b, f.ErrorCode)
	b = quicvarint.Append(b, uint64(f.FinalSize))
	return b, nil
}

func (f *ResetStreamFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamID))+quicvarint.Len(f.ErrorCode)+quicvarint.Len(uint64(f.FinalSize)))
}

// StopSendingFrame asks the peer to abandon sending on a stream.
type StopSendingFrame struct {
	StreamID  protocol.StreamID
	ErrorCode uint64
}

func (f *StopSendingFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypeStopSending))
	b = quicvarint.Append(b, uint64(f.StreamID))
	b = quicvarint.Append(b, f.ErrorCode)
	return b, nil
}

func (f *StopSendingFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamID))+quicvarint.Len(f.ErrorCode))
}

// MaxDataFrame raises the connection-level receive window.
type MaxDataFrame struct {
	MaximumData protocol.ByteCount
}

func (f *MaxDataFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypeMaxData))
	return quicvarint.Append(b, uint64(f.MaximumData)), nil
}

func (f *MaxDataFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.MaximumData)))
}

// MaxStreamDataFrame raises a single stream's receive window.
type MaxStreamDataFrame struct {
	StreamID          protocol.StreamID
	MaximumStreamData protocol.ByteCount
}

func (f *MaxStreamDataFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypeMaxStreamData))
	b = quicvarint.Append(b, uint64(f.StreamID))
	return quicvarint.Append(b, uint64(f.MaximumStreamData)), nil
}

func (f *MaxStreamDataFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamID))+quicvarint.Len(uint64(f.MaximumStreamData)))
}

// MaxStreamsFrame raises the peer's stream-opening limit. Unidirectional
// is reserved but never emitted by this core.
type MaxStreamsFrame struct {
	Type          StreamsFrameType
	MaxStreamNum protocol.StreamNum
}

type StreamsFrameType uint8

const (
	StreamsTypeBidi StreamsFrameType = iota
	StreamsTypeUni
)

func (f *MaxStreamsFrame) Append(b []byte) ([]byte, error) {
	t := FrameTypeMaxStreamsBidi
	if f.Type == StreamsTypeUni {
		t = FrameTypeMaxStreamsUni
	}
	b = append(b, byte(t))
	return quicvarint.Append(b, uint64(f.MaxStreamNum)), nil
}

func (f *MaxStreamsFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.MaxStreamNum)))
}

// DataBlockedFrame informs the peer the sender is blocked on the
// connection-level flow control window.
type DataBlockedFrame struct {
	MaximumData protocol.ByteCount
}

func (f *DataBlockedFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypeDataBlocked))
	return quicvarint.Append(b, uint64(f.MaximumData)), nil
}

func (f *DataBlockedFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.MaximumData)))
}

// StreamDataBlockedFrame informs the peer the sender is blocked on a
// stream-level flow control window.
type StreamDataBlockedFrame struct {
	StreamID          protocol.StreamID
	MaximumStreamData protocol.ByteCount
}

func (f *StreamDataBlockedFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypeStreamDataBlocked))
	b = quicvarint.Append(b, uint64(f.StreamID))
	return quicvarint.Append(b, uint64(f.MaximumStreamData)), nil
}

func (f *StreamDataBlockedFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamID))+quicvarint.Len(uint64(f.MaximumStreamData)))
}

// StreamsBlockedFrame informs the peer the sender wanted to open a
// stream but ran out of credit.
type StreamsBlockedFrame struct {
	Type          StreamsFrameType
	StreamLimit protocol.StreamNum
}

func (f *StreamsBlockedFrame) Append(b []byte) ([]byte, error) {
	t := FrameTypeStreamsBlockedBidi
	if f.Type == StreamsTypeUni {
		t = FrameTypeStreamsBlockedUni
	}
	b = append(b, byte(t))
	return quicvarint.Append(b, uint64(f.StreamLimit)), nil
}

func (f *StreamsBlockedFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamLimit)))
}

// NewTokenFrame carries an address-validation token for later handshakes.
// This core only frames the bytes; it never validates them.
type NewTokenFrame struct {
	Token []byte
}

func (f *NewTokenFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypeNewToken))
	b = quicvarint.Append(b, uint64(len(f.Token)))
	return append(b, f.Token...), nil
}

func (f *NewTokenFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(len(f.Token)))) + protocol.ByteCount(len(f.Token))
}

// NewConnectionIDFrame offers the peer a fresh connection id to route
// future packets with, plus its retirement sequence number.
type NewConnectionIDFrame struct {
	SequenceNumber      uint64
	RetirePriorTo       uint64
	ConnectionID        protocol.ConnectionID
	StatelessResetToken [16]byte
}

func (f *NewConnectionIDFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypeNewConnectionID))
	b = quicvarint.Append(b, f.SequenceNumber)
	b = quicvarint.Append(b, f.RetirePriorTo)
	b = append(b, byte(f.ConnectionID.Len()))
	b = append(b, f.ConnectionID.Bytes()...)
	return append(b, f.StatelessResetToken[:]...), nil
}

func (f *NewConnectionIDFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(f.SequenceNumber)+quicvarint.Len(f.RetirePriorTo)) +
		1 + protocol.ByteCount(f.ConnectionID.Len()) + 16
}

// RetireConnectionIDFrame tells the peer that a connection id with the
// given sequence number is no longer in use and may be reused.
type RetireConnectionIDFrame struct {
	SequenceNumber uint64
}

func (f *RetireConnectionIDFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypeRetireConnectionID))
	return quicvarint.Append(b, f.SequenceNumber), nil
}

func (f *RetireConnectionIDFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(f.SequenceNumber))
}

// PathChallengeFrame and PathResponseFrame are used for path validation;
// the response echoes the 8-byte challenge data back.
type PathChallengeFrame struct {
	Data [8]byte
}

func (f *PathChallengeFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypePathChallenge))
	return append(b, f.Data[:]...), nil
}
func (f *PathChallengeFrame) Length() protocol.ByteCount { return 9 }

type PathResponseFrame struct {
	Data [8]byte
}

func (f *PathResponseFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypePathResponse))
	return append(b, f.Data[:]...), nil
}
func (f *PathResponseFrame) Length() protocol.ByteCount { return 9 }

// ConnectionCloseFrame terminates the connection, carrying either a
// transport error code or an application error code.
type ConnectionCloseFrame struct {
	IsApplicationError bool
	ErrorCode          uint64
	FrameType          uint64 // only meaningful for transport errors; 0 if unknown
	ReasonPhrase        string
}

func (f *ConnectionCloseFrame) Append(b []byte) ([]byte, error) {
	if f.IsApplicationError {
		b = append(b, byte(FrameTypeConnectionCloseApp))
	} else {
		b = append(b, byte(FrameTypeConnectionCloseTransport))
		b = quicvarint.Append(b, f.ErrorCode)
		b = quicvarint.Append(b, f.FrameType)
		b = quicvarint.Append(b, uint64(len(f.ReasonPhrase)))
		return append(b, f.ReasonPhrase...), nil
	}
	b = quicvarint.Append(b, f.ErrorCode)
	b = quicvarint.Append(b, uint64(len(f.ReasonPhrase)))
	return append(b, f.ReasonPhrase...), nil
}

func (f *ConnectionCloseFrame) Length() protocol.ByteCount {
	length := protocol.ByteCount(1 + quicvarint.Len(f.ErrorCode) + quicvarint.Len(uint64(len(f.ReasonPhrase))))
	if !f.IsApplicationError {
		length += protocol.ByteCount(quicvarint.Len(f.FrameType))
	}
	return length + protocol.ByteCount(len(f.ReasonPhrase))
}
