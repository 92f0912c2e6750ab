package wire

// FrameType is the first-byte tag identifying a frame's kind.
type FrameType uint64

const (
	FrameTypePadding    FrameType = 0x00
	FrameTypePing       FrameType = 0x01
	FrameTypeAck        FrameType = 0x02
	FrameTypeAckECN     FrameType = 0x03
	FrameTypeResetStream FrameType = 0x04
	FrameTypeStopSending FrameType = 0x05
	FrameTypeCrypto      FrameType = 0x06
	FrameTypeNewToken    FrameType = 0x07
	// FrameTypeStream occupies 0x08..0x0f; the low 3 bits are flags
	// (OFF, LEN, FIN) rather than part of the type space.
	FrameTypeStream         FrameType = 0x08
	FrameTypeStreamMax      FrameType = 0x0f
	FrameTypeMaxData        FrameType = 0x10
	FrameTypeMaxStreamData  FrameType = 0x11
	FrameTypeMaxStreamsBidi FrameType = 0x12
	FrameTypeMaxStreamsUni  FrameType = 0x13
	FrameTypeDataBlocked       FrameType = 0x14
	FrameTypeStreamDataBlocked FrameType = 0x15
	FrameTypeStreamsBlockedBidi FrameType = 0x16
	FrameTypeStreamsBlockedUni  FrameType = 0x17
	FrameTypeNewConnectionID    FrameType = 0x18
	FrameTypeRetireConnectionID FrameType = 0x19
	FrameTypePathChallenge      FrameType = 0x1a
	FrameTypePathResponse       FrameType = 0x1b
	FrameTypeConnectionCloseTransport FrameType = 0x1c
	FrameTypeConnectionCloseApp       FrameType = 0x1d
	FrameTypeHandshakeDone            FrameType = 0x1e
)

// IsStreamFrameType reports whether t is one of the 8 STREAM frame tags.
func IsStreamFrameType(t FrameType) bool {
	return t >= FrameTypeStream && t <= FrameTypeStreamMax
}

// streamFrameFlags decodes the 3 low bits of a STREAM frame tag.
type streamFrameFlags struct {
	Fin bool
	Len bool
	Off bool
}

func parseStreamFrameFlags(t FrameType) streamFrameFlags {
	return streamFrameFlags{
		Fin: t&0x01 != 0,
		Len: t&0x02 != 0,
		Off: t&0x04 != 0,
	}
}

func streamFrameType(f streamFrameFlags) FrameType {
	t := FrameTypeStream
	if f.Fin {
		t |= 0x01
	}
	if f.Len {
		t |= 0x02
	}
	if f.Off {
		t |= 0x04
	}
	return t
}
