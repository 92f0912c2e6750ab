package wire

import (
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/quicvarint"
)

// PacketType distinguishes the long-header packet kinds from the
// short-header (1-RTT) form. Only PacketTypeInitial and PacketType1RTT
// are ever produced locally; the others are parsed so a datagram
// carrying them is recognised rather than rejected as garbage, matching
// the CRYPTO-frame data pipe this core carries without owning the
// handshake.
type PacketType uint8

const (
	PacketTypeInitial PacketType = iota + 1
	PacketTypeHandshake
	PacketType0RTT
	PacketTypeRetry
	PacketType1RTT
)

const (
	longHeaderFormBit  = 0x80
	fixedBit            = 0x40
	longHeaderTypeBits  = 0x30
	shortHeaderKeyPhaseBit = 0x04
)

// Header is a parsed long-header packet's metadata, excluding the packet
// number (held separately, since its length depends on context available
// only after the rest of the header is parsed).
type Header struct {
	Type PacketType

	DestConnectionID protocol.ConnectionID
	SrcConnectionID  protocol.ConnectionID

	Token []byte

	Length protocol.ByteCount

	Version uint32
}

// ParseLongHeader parses a long-header packet's fixed fields (everything
// up to, but not including, the packet number). It returns the header,
// the packet-number length, and the number of bytes consumed.
func ParseLongHeader(b []byte) (hdr *Header, pnLen protocol.PacketNumberLen, consumed int, err error) {
	if len(b) < 5 {
		return nil, 0, 0, qerr.ErrShortBuffer
	}
	first := b[0]
	if first&longHeaderFormBit == 0 {
		return nil, 0, 0, qerr.ErrUnknownPacketType
	}
	if first&fixedBit == 0 {
		return nil, 0, 0, qerr.ErrBadFixedBit
	}
	typeBits := (first & longHeaderTypeBits) >> 4
	var t PacketType
	switch typeBits {
	case 0x0:
		t = PacketTypeInitial
	case 0x1:
		t = PacketType0RTT
	case 0x2:
		t = PacketTypeHandshake
	case 0x3:
		t = PacketTypeRetry
	}
	pos := 1
	ver := uint32(b[pos])<<24 | uint32(b[pos+1])<<16 | uint32(b[pos+2])<<8 | uint32(b[pos+3])
	pos += 4

	if err := need(b[pos:], 1); err != nil {
		return nil, 0, 0, err
	}
	dcidLen := int(b[pos])
	pos++
	dcid, err := readConnID(b, &pos, dcidLen)
	if err != nil {
		return nil, 0, 0, err
	}

	if err := need(b[pos:], 1); err != nil {
		return nil, 0, 0, err
	}
	scidLen := int(b[pos])
	pos++
	scid, err := readConnID(b, &pos, scidLen)
	if err != nil {
		return nil, 0, 0, err
	}

	hdr = &Header{Type: t, DestConnectionID: dcid, SrcConnectionID: scid, Version: ver}

	if t == PacketTypeInitial {
		tokenLen, n, err := quicvarint.Parse(b[pos:])
		if err != nil {
			return nil, 0, 0, qerr.ErrHeaderDecodeFailed
		}
		pos += n
		if err := need(b[pos:], int(tokenLen)); err != nil {
			return nil, 0, 0, err
		}
		hdr.Token = append([]byte(nil), b[pos:pos+int(tokenLen)]...)
		pos += int(tokenLen)
	}

	if t == PacketTypeRetry {
		// The remainder, minus the 16-byte integrity tag, is the token.
		if len(b) < pos+16 {
			return nil, 0, 0, qerr.ErrShortBuffer
		}
		hdr.Token = append([]byte(nil), b[pos:len(b)-16]...)
		return hdr, 0, len(b), nil
	}

	length, n, err := quicvarint.Parse(b[pos:])
	if err != nil {
		return nil, 0, 0, qerr.ErrHeaderDecodeFailed
	}
	pos += n
	hdr.Length = protocol.ByteCount(length)

	pnLen = protocol.PacketNumberLen(first&0x3) + 1
	return hdr, pnLen, pos, nil
}

func readConnID(b []byte, pos *int, length int) (protocol.ConnectionID, error) {
	if length > protocol.MaxConnectionIDLen {
		return nil, qerr.ErrHeaderDecodeFailed
	}
	if err := need(b[*pos:], length); err != nil {
		return nil, err
	}
	cid := append(protocol.ConnectionID(nil), b[*pos:*pos+length]...)
	*pos += length
	return cid, nil
}

// AppendLongHeader serialises hdr (with the given packet-number length
// already decided by the caller) onto b, up to but not including the
// packet number itself.
func AppendLongHeader(b []byte, hdr *Header, pnLen protocol.PacketNumberLen) []byte {
	var typeBits byte
	switch hdr.Type {
	case PacketTypeInitial:
		typeBits = 0x0
	case PacketType0RTT:
		typeBits = 0x1
	case PacketTypeHandshake:
		typeBits = 0x2
	case PacketTypeRetry:
		typeBits = 0x3
	}
	first := longHeaderFormBit | fixedBit | (typeBits << 4) | byte(pnLen-1)
	b = append(b, first)
	b = append(b, byte(hdr.Version>>24), byte(hdr.Version>>16), byte(hdr.Version>>8), byte(hdr.Version))
	b = append(b, byte(hdr.DestConnectionID.Len()))
	b = append(b, hdr.DestConnectionID.Bytes()...)
	b = append(b, byte(hdr.SrcConnectionID.Len()))
	b = append(b, hdr.SrcConnectionID.Bytes()...)
	if hdr.Type == PacketTypeInitial {
		b = quicvarint.Append(b, uint64(len(hdr.Token)))
		b = append(b, hdr.Token...)
	}
	if hdr.Type == PacketTypeRetry {
		return append(b, hdr.Token...)
	}
	b = quicvarint.Append(b, uint64(hdr.Length))
	return b
}

// ShortHeader is the 1-RTT packet form: a 1-byte flags octet, the
// destination connection id (whose length is known from routing
// context, not carried on the wire), and the truncated packet number.
type ShortHeader struct {
	DestConnectionID protocol.ConnectionID
	KeyPhase         protocol.KeyPhaseBit
}

// ParseShortHeader parses a short header's flags byte and connection id,
// given the expected connection id length for this routing context. It
// returns the key phase, packet-number length, and bytes consumed.
func ParseShortHeader(b []byte, connIDLen int) (kp protocol.KeyPhaseBit, pnLen protocol.PacketNumberLen, consumed int, err error) {
	if len(b) < 1+connIDLen {
		return 0, 0, 0, qerr.ErrShortBuffer
	}
	first := b[0]
	if first&longHeaderFormBit != 0 {
		return 0, 0, 0, qerr.ErrUnknownPacketType
	}
	if first&fixedBit == 0 {
		return 0, 0, 0, qerr.ErrBadFixedBit
	}
	if first&shortHeaderKeyPhaseBit != 0 {
		kp = protocol.KeyPhaseOne
	} else {
		kp = protocol.KeyPhaseZero
	}
	pnLen = protocol.PacketNumberLen(first&0x3) + 1
	return kp, pnLen, 1 + connIDLen, nil
}

// AppendShortHeader serialises the flags byte and destination connection
// id of a short header onto b.
func AppendShortHeader(b []byte, destConnID protocol.ConnectionID, kp protocol.KeyPhaseBit, pnLen protocol.PacketNumberLen) []byte {
	first := fixedBit | byte(pnLen-1)
	if kp == protocol.KeyPhaseOne {
		first |= shortHeaderKeyPhaseBit
	}
	b = append(b, first)
	return append(b, destConnID.Bytes()...)
}

// AppendPacketNumber appends pn to b, truncated to length bytes in
// network byte order, per RFC 9000 section 17.1.
func AppendPacketNumber(b []byte, pn protocol.PacketNumber, length protocol.PacketNumberLen) []byte {
	switch length {
	case protocol.PacketNumberLen1:
		return append(b, byte(pn))
	case protocol.PacketNumberLen2:
		return append(b, byte(pn>>8), byte(pn))
	case protocol.PacketNumberLen3:
		return append(b, byte(pn>>16), byte(pn>>8), byte(pn))
	default:
		return append(b, byte(pn>>24), byte(pn>>16), byte(pn>>8), byte(pn))
	}
}

// ReadPacketNumber reads a length-byte truncated packet number from the
// front of b, returning the raw (undecoded) value. Callers reconstruct
// the full packet number with protocol.DecodePacketNumber.
func ReadPacketNumber(b []byte, length protocol.PacketNumberLen) (protocol.PacketNumber, error) {
	if err := need(b, int(length)); err != nil {
		return 0, err
	}
	var pn protocol.PacketNumber
	for i := 0; i < int(length); i++ {
		pn = pn<<8 | protocol.PacketNumber(b[i])
	}
	return pn, nil
}
