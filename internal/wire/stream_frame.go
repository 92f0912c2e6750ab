package wire

import (
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/quicvarint"
)

// StreamFrame carries a contiguous range of one stream's byte sequence.
type StreamFrame struct {
	StreamID       protocol.StreamID
	Offset         protocol.ByteCount
	Data           []byte
	Fin            bool
	DataLenPresent bool

	fromPool bool
}

func (f *StreamFrame) flags() streamFrameFlags {
	return streamFrameFlags{Fin: f.Fin, Len: f.DataLenPresent, Off: f.Offset != 0}
}

// Append encodes f onto b.
func (f *StreamFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(streamFrameType(f.flags())))
	b = quicvarint.Append(b, uint64(f.StreamID))
	if f.Offset != 0 {
		b = quicvarint.Append(b, uint64(f.Offset))
	}
	if f.DataLenPresent {
		b = quicvarint.Append(b, uint64(len(f.Data)))
	}
	return append(b, f.Data...), nil
}

// Length returns the number of bytes Append would write.
func (f *StreamFrame) Length() protocol.ByteCount {
	length := 1 + protocol.ByteCount(quicvarint.Len(uint64(f.StreamID)))
	if f.Offset != 0 {
		length += protocol.ByteCount(quicvarint.Len(uint64(f.Offset)))
	}
	if f.DataLenPresent {
		length += protocol.ByteCount(quicvarint.Len(uint64(len(f.Data))))
	}
	return length + protocol.ByteCount(len(f.Data))
}

// HeaderLen returns the length of everything except the data payload, the
// quantity the session's budget calculation needs before it knows how
// many bytes of data will fit.
func (f *StreamFrame) HeaderLen() protocol.ByteCount {
	return f.Length() - protocol.ByteCount(len(f.Data))
}

// MaxDataLen returns the maximum data length that fits into maxSize
// bytes, accounting for the header and, if DataLenPresent, the length
// varint's own size (which may grow by one byte as the payload grows).
func (f *StreamFrame) MaxDataLen(maxSize protocol.ByteCount) protocol.ByteCount {
	headerLen := protocol.ByteCount(1) + protocol.ByteCount(quicvarint.Len(uint64(f.StreamID)))
	if f.Offset != 0 {
		headerLen += protocol.ByteCount(quicvarint.Len(uint64(f.Offset)))
	}
	if maxSize < headerLen {
		return 0
	}
	if !f.DataLenPresent {
		return maxSize - headerLen
	}
	remaining := maxSize - headerLen
	// Assume a 1-byte length field, and widen it one byte at a time until
	// the varint encoding of the data length fits in it.
	lenFieldSize := protocol.ByteCount(1)
	for {
		dataLen := remaining - lenFieldSize
		if dataLen < 0 {
			return 0
		}
		if protocol.ByteCount(quicvarint.Len(uint64(dataLen))) <= lenFieldSize {
			return dataLen
		}
		lenFieldSize++
	}
}

// MaybeSplitOffFrame splits off the head of f up to maxSize bytes if the
// whole frame doesn't fit, returning the head frame and leaving f holding
// the (offset-adjusted) tail. It returns nil if f already fits entirely.
func (f *StreamFrame) MaybeSplitOffFrame(maxSize protocol.ByteCount) *StreamFrame {
	if f.Length() <= maxSize {
		return nil
	}
	n := f.MaxDataLen(maxSize)
	if n == 0 || n >= protocol.ByteCount(len(f.Data)) {
		return nil
	}
	head := &StreamFrame{
		StreamID:       f.StreamID,
		Offset:         f.Offset,
		Data:           f.Data[:n],
		DataLenPresent: f.DataLenPresent,
	}
	f.Data = f.Data[n:]
	f.Offset += n
	return head
}
