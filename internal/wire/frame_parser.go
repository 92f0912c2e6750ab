package wire

import (
	"fmt"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/quicvarint"
)

// ParseNextFrame parses the next frame at the head of b, returning the
// frame, the number of bytes consumed, and an error. A PADDING tag (0x00)
// is consumed silently: it returns a nil frame, nil error, and a non-zero
// consumed count, letting the caller's loop continue until the buffer is
// exhausted.
func ParseNextFrame(b []byte) (f Frame, consumed int, err error) {
	if len(b) == 0 {
		return nil, 0, qerr.ErrShortBuffer
	}
	typeByte := b[0]
	t := FrameType(typeByte)
	if t == FrameTypePadding {
		n := 1
		for n < len(b) && b[n] == byte(FrameTypePadding) {
			n++
		}
		return nil, n, nil
	}

	if IsStreamFrameType(t) {
		return parseStreamFrame(b, t)
	}

	switch t {
	case FrameTypePing:
		return &PingFrame{}, 1, nil
	case FrameTypeHandshakeDone:
		return &HandshakeDoneFrame{}, 1, nil
	case FrameTypeAck, FrameTypeAckECN:
		return parseAckFrame(b, t)
	case FrameTypeResetStream:
		return parseResetStreamFrame(b)
	case FrameTypeStopSending:
		return parseStopSendingFrame(b)
	case FrameTypeCrypto:
		return parseCryptoFrame(b)
	case FrameTypeNewToken:
		return parseNewTokenFrame(b)
	case FrameTypeMaxData:
		return parseMaxDataFrame(b)
	case FrameTypeMaxStreamData:
		return parseMaxStreamDataFrame(b)
	case FrameTypeMaxStreamsBidi, FrameTypeMaxStreamsUni:
		return parseMaxStreamsFrame(b, t)
	case FrameTypeDataBlocked:
		return parseDataBlockedFrame(b)
	case FrameTypeStreamDataBlocked:
		return parseStreamDataBlockedFrame(b)
	case FrameTypeStreamsBlockedBidi, FrameTypeStreamsBlockedUni:
		return parseStreamsBlockedFrame(b, t)
	case FrameTypeNewConnectionID:
		return parseNewConnectionIDFrame(b)
	case FrameTypeRetireConnectionID:
		return parseRetireConnectionIDFrame(b)
	case FrameTypePathChallenge:
		return parsePathChallengeFrame(b)
	case FrameTypePathResponse:
		return parsePathResponseFrame(b)
	case FrameTypeConnectionCloseTransport, FrameTypeConnectionCloseApp:
		return parseConnectionCloseFrame(b, t)
	default:
		return nil, 0, qerr.ErrUnknownFrameType
	}
}

func need(b []byte, n int) error {
	if len(b) < n {
		return qerr.ErrShortBuffer
	}
	return nil
}

func parseStreamFrame(b []byte, t FrameType) (Frame, int, error) {
	flags := parseStreamFrameFlags(t)
	pos := 1
	sid, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	f := &StreamFrame{StreamID: protocol.StreamID(sid), Fin: flags.Fin, DataLenPresent: flags.Len}
	if flags.Off {
		off, n, err := quicvarint.Parse(b[pos:])
		if err != nil {
			return nil, 0, qerr.ErrFrameDecodeFailed
		}
		pos += n
		f.Offset = protocol.ByteCount(off)
	}
	var dataLen uint64
	if flags.Len {
		dl, n, err := quicvarint.Parse(b[pos:])
		if err != nil {
			return nil, 0, qerr.ErrFrameDecodeFailed
		}
		pos += n
		dataLen = dl
	} else {
		dataLen = uint64(len(b) - pos)
	}
	if err := need(b[pos:], int(dataLen)); err != nil {
		return nil, 0, err
	}
	f.Data = append([]byte(nil), b[pos:pos+int(dataLen)]...)
	pos += int(dataLen)
	return f, pos, nil
}

func parseCryptoFrame(b []byte) (Frame, int, error) {
	pos := 1
	off, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	dataLen, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	if err := need(b[pos:], int(dataLen)); err != nil {
		return nil, 0, err
	}
	data := append([]byte(nil), b[pos:pos+int(dataLen)]...)
	pos += int(dataLen)
	return &CryptoFrame{Offset: protocol.ByteCount(off), Data: data}, pos, nil
}

func parseAckFrame(b []byte, t FrameType) (Frame, int, error) {
	pos := 1
	largest, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	delay, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	numRanges, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n

	firstLen, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	f := &AckFrame{DelayTime: decodeAckDelay(delay)}
	largestPN := protocol.PacketNumber(largest)
	smallest := largestPN - protocol.PacketNumber(firstLen)
	f.AckRanges = append(f.AckRanges, AckRange{Smallest: smallest, Largest: largestPN})

	for i := uint64(0); i < numRanges; i++ {
		gap, n, err := quicvarint.Parse(b[pos:])
		if err != nil {
			return nil, 0, qerr.ErrFrameDecodeFailed
		}
		pos += n
		rangeLen, n, err := quicvarint.Parse(b[pos:])
		if err != nil {
			return nil, 0, qerr.ErrFrameDecodeFailed
		}
		pos += n
		largestPN = smallest - protocol.PacketNumber(gap) - 2
		smallest = largestPN - protocol.PacketNumber(rangeLen)
		f.AckRanges = append(f.AckRanges, AckRange{Smallest: smallest, Largest: largestPN})
	}
	if t == FrameTypeAckECN {
		ect0, n, err := quicvarint.Parse(b[pos:])
		if err != nil {
			return nil, 0, qerr.ErrFrameDecodeFailed
		}
		pos += n
		ect1, n, err := quicvarint.Parse(b[pos:])
		if err != nil {
			return nil, 0, qerr.ErrFrameDecodeFailed
		}
		pos += n
		ecnce, n, err := quicvarint.Parse(b[pos:])
		if err != nil {
			return nil, 0, qerr.ErrFrameDecodeFailed
		}
		pos += n
		f.ECNCounts = &ECNCounts{ECT0: ect0, ECT1: ect1, ECNCE: ecnce}
	}
	return f, pos, nil
}

func parseResetStreamFrame(b []byte) (Frame, int, error) {
	pos := 1
	sid, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	code, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	size, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	return &ResetStreamFrame{StreamID: protocol.StreamID(sid), ErrorCode: code, FinalSize: protocol.ByteCount(size)}, pos, nil
}

func parseStopSendingFrame(b []byte) (Frame, int, error) {
	pos := 1
	sid, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	code, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	return &StopSendingFrame{StreamID: protocol.StreamID(sid), ErrorCode: code}, pos, nil
}

func parseNewTokenFrame(b []byte) (Frame, int, error) {
	pos := 1
	l, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	if err := need(b[pos:], int(l)); err != nil {
		return nil, 0, err
	}
	tok := append([]byte(nil), b[pos:pos+int(l)]...)
	pos += int(l)
	return &NewTokenFrame{Token: tok}, pos, nil
}

func parseMaxDataFrame(b []byte) (Frame, int, error) {
	pos := 1
	v, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	return &MaxDataFrame{MaximumData: protocol.ByteCount(v)}, pos + n, nil
}

func parseMaxStreamDataFrame(b []byte) (Frame, int, error) {
	pos := 1
	sid, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	v, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	return &MaxStreamDataFrame{StreamID: protocol.StreamID(sid), MaximumStreamData: protocol.ByteCount(v)}, pos, nil
}

func parseMaxStreamsFrame(b []byte, t FrameType) (Frame, int, error) {
	pos := 1
	v, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	typ := StreamsTypeBidi
	if t == FrameTypeMaxStreamsUni {
		typ = StreamsTypeUni
	}
	return &MaxStreamsFrame{Type: typ, MaxStreamNum: protocol.StreamNum(v)}, pos + n, nil
}

func parseDataBlockedFrame(b []byte) (Frame, int, error) {
	pos := 1
	v, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	return &DataBlockedFrame{MaximumData: protocol.ByteCount(v)}, pos + n, nil
}

func parseStreamDataBlockedFrame(b []byte) (Frame, int, error) {
	pos := 1
	sid, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	v, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	return &StreamDataBlockedFrame{StreamID: protocol.StreamID(sid), MaximumStreamData: protocol.ByteCount(v)}, pos, nil
}

func parseStreamsBlockedFrame(b []byte, t FrameType) (Frame, int, error) {
	pos := 1
	v, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	typ := StreamsTypeBidi
	if t == FrameTypeStreamsBlockedUni {
		typ = StreamsTypeUni
	}
	return &StreamsBlockedFrame{Type: typ, StreamLimit: protocol.StreamNum(v)}, pos + n, nil
}

func parseNewConnectionIDFrame(b []byte) (Frame, int, error) {
	pos := 1
	seq, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	retire, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	if err := need(b[pos:], 1); err != nil {
		return nil, 0, err
	}
	cidLen := int(b[pos])
	pos++
	if err := need(b[pos:], cidLen+16); err != nil {
		return nil, 0, err
	}
	cid := append(protocol.ConnectionID(nil), b[pos:pos+cidLen]...)
	pos += cidLen
	f := &NewConnectionIDFrame{SequenceNumber: seq, RetirePriorTo: retire, ConnectionID: cid}
	copy(f.StatelessResetToken[:], b[pos:pos+16])
	pos += 16
	return f, pos, nil
}

func parseRetireConnectionIDFrame(b []byte) (Frame, int, error) {
	pos := 1
	seq, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	return &RetireConnectionIDFrame{SequenceNumber: seq}, pos + n, nil
}

func parsePathChallengeFrame(b []byte) (Frame, int, error) {
	if err := need(b[1:], 8); err != nil {
		return nil, 0, err
	}
	var f PathChallengeFrame
	copy(f.Data[:], b[1:9])
	return &f, 9, nil
}

func parsePathResponseFrame(b []byte) (Frame, int, error) {
	if err := need(b[1:], 8); err != nil {
		return nil, 0, err
	}
	var f PathResponseFrame
	copy(f.Data[:], b[1:9])
	return &f, 9, nil
}

func parseConnectionCloseFrame(b []byte, t FrameType) (Frame, int, error) {
	pos := 1
	f := &ConnectionCloseFrame{IsApplicationError: t == FrameTypeConnectionCloseApp}
	code, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	f.ErrorCode = code
	if !f.IsApplicationError {
		ft, n, err := quicvarint.Parse(b[pos:])
		if err != nil {
			return nil, 0, qerr.ErrFrameDecodeFailed
		}
		pos += n
		f.FrameType = ft
	}
	l, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, qerr.ErrFrameDecodeFailed
	}
	pos += n
	if err := need(b[pos:], int(l)); err != nil {
		return nil, 0, err
	}
	f.ReasonPhrase = string(b[pos : pos+int(l)])
	pos += int(l)
	return f, pos, nil
}

// ParseFrames parses every frame in a packet payload in order, stopping
// at buffer exhaustion. A parse error is wrapped with the offset of the
// failing frame, so errors.Is still matches the qerr sentinel: per the
// propagation policy, the caller drops the whole datagram on any wire
// error without acting on the frames parsed so far.
func ParseFrames(payload []byte) ([]Frame, error) {
	var frames []Frame
	total := len(payload)
	for len(payload) > 0 {
		f, n, err := ParseNextFrame(payload)
		if err != nil {
			return nil, fmt.Errorf("parsing frame at offset %d: %w", total-len(payload), err)
		}
		if f != nil {
			frames = append(frames, f)
		}
		payload = payload[n:]
	}
	return frames, nil
}
