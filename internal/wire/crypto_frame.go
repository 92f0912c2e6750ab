package wire

import (
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/quicvarint"
)

// CryptoFrame carries a range of the CRYPTO-frame data pipe. This core
// treats the carried bytes as opaque: the handshake logic that produces
// and consumes them is out of scope, only the framing is implemented.
type CryptoFrame struct {
	Offset protocol.ByteCount
	Data   []byte
}

func (f *CryptoFrame) Append(b []byte) ([]byte, error) {
	b = append(b, byte(FrameTypeCrypto))
	b = quicvarint.Append(b, uint64(f.Offset))
	b = quicvarint.Append(b, uint64(len(f.Data)))
	return append(b, f.Data...), nil
}

func (f *CryptoFrame) Length() protocol.ByteCount {
	return 1 + protocol.ByteCount(quicvarint.Len(uint64(f.Offset))) +
		protocol.ByteCount(quicvarint.Len(uint64(len(f.Data)))) + protocol.ByteCount(len(f.Data))
}

// MaybeSplitOffFrame behaves like StreamFrame's, without DataLenPresent
// toggling since CRYPTO frames always carry an explicit length.
func (f *CryptoFrame) MaybeSplitOffFrame(maxSize protocol.ByteCount) *CryptoFrame {
	headerLen := protocol.ByteCount(1) + protocol.ByteCount(quicvarint.Len(uint64(f.Offset)))
	if f.Length() <= maxSize || maxSize <= headerLen {
		return nil
	}
	remaining := maxSize - headerLen
	lenFieldSize := protocol.ByteCount(1)
	var n protocol.ByteCount
	for {
		n = remaining - lenFieldSize
		if n <= 0 {
			return nil
		}
		if protocol.ByteCount(quicvarint.Len(uint64(n))) <= lenFieldSize {
			break
		}
		lenFieldSize++
	}
	if n >= protocol.ByteCount(len(f.Data)) {
		return nil
	}
	head := &CryptoFrame{Offset: f.Offset, Data: f.Data[:n]}
	f.Data = f.Data[n:]
	f.Offset += n
	return head
}
