package wire

import (
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/quicvarint"
)

// AckRange is one contiguous range of acknowledged packet numbers.
type AckRange struct {
	Smallest protocol.PacketNumber
	Largest  protocol.PacketNumber
}

func (r AckRange) Len() protocol.PacketNumber {
	return r.Largest - r.Smallest + 1
}

// AckFrame acknowledges receipt of packets. AckRanges is ordered
// largest-first, matching how it's encoded on the wire: the first range
// gives the largest acknowledged number, and every following range is
// encoded as a gap-then-length delta from the previous one.
type AckFrame struct {
	AckRanges []AckRange
	DelayTime time.Duration

	// ECT0, ECT1, and ECNCE are only present on AckFrames built from a
	// FrameTypeAckECN tag.
	ECNCounts *ECNCounts
}

// ECNCounts carries the optional ECN counters appended to an ECN-capable ACK.
type ECNCounts struct {
	ECT0, ECT1, ECNCE uint64
}

// LargestAcked returns the largest packet number covered by the frame.
func (f *AckFrame) LargestAcked() protocol.PacketNumber {
	return f.AckRanges[0].Largest
}

// HasMissingRanges reports whether the ranges cover anything other than
// one contiguous block.
func (f *AckFrame) HasMissingRanges() bool {
	return len(f.AckRanges) > 1
}

// AcksPacket reports whether pn falls within one of the ranges.
func (f *AckFrame) AcksPacket(pn protocol.PacketNumber) bool {
	if pn < f.AckRanges[len(f.AckRanges)-1].Smallest || pn > f.LargestAcked() {
		return false
	}
	for _, r := range f.AckRanges {
		if pn >= r.Smallest && pn <= r.Largest {
			return true
		}
	}
	return false
}

func (f *AckFrame) Append(b []byte) ([]byte, error) {
	t := FrameTypeAck
	if f.ECNCounts != nil {
		t = FrameTypeAckECN
	}
	b = append(b, byte(t))
	b = quicvarint.Append(b, uint64(f.LargestAcked()))
	b = quicvarint.Append(b, encodeAckDelay(f.DelayTime))
	b = quicvarint.Append(b, uint64(len(f.AckRanges)-1))

	for i, r := range f.AckRanges {
		if i == 0 {
			b = quicvarint.Append(b, uint64(r.Len()-1))
			continue
		}
		prev := f.AckRanges[i-1]
		gap := prev.Smallest - r.Largest - 2
		b = quicvarint.Append(b, uint64(gap))
		b = quicvarint.Append(b, uint64(r.Len()-1))
	}
	if f.ECNCounts != nil {
		b = quicvarint.Append(b, f.ECNCounts.ECT0)
		b = quicvarint.Append(b, f.ECNCounts.ECT1)
		b = quicvarint.Append(b, f.ECNCounts.ECNCE)
	}
	return b, nil
}

func (f *AckFrame) Length() protocol.ByteCount {
	length := protocol.ByteCount(1 + quicvarint.Len(uint64(f.LargestAcked())) +
		quicvarint.Len(encodeAckDelay(f.DelayTime)) + quicvarint.Len(uint64(len(f.AckRanges)-1)))
	for i, r := range f.AckRanges {
		if i == 0 {
			length += protocol.ByteCount(quicvarint.Len(uint64(r.Len() - 1)))
			continue
		}
		prev := f.AckRanges[i-1]
		gap := prev.Smallest - r.Largest - 2
		length += protocol.ByteCount(quicvarint.Len(uint64(gap)) + quicvarint.Len(uint64(r.Len()-1)))
	}
	if f.ECNCounts != nil {
		length += protocol.ByteCount(quicvarint.Len(f.ECNCounts.ECT0) + quicvarint.Len(f.ECNCounts.ECT1) + quicvarint.Len(f.ECNCounts.ECNCE))
	}
	return length
}

// ackDelayExponent is fixed at 3, the QUIC default, since transport
// parameter negotiation is out of scope for this core.
const ackDelayExponent = 3

func encodeAckDelay(d time.Duration) uint64 {
	if d < 0 {
		d = 0
	}
	return uint64(d.Microseconds()) >> ackDelayExponent
}

func decodeAckDelay(v uint64) time.Duration {
	return time.Duration(v<<ackDelayExponent) * time.Microsecond
}
