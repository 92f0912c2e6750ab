package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qcore-go/qcore/internal/protocol"
)

func TestLongHeaderRoundTripInitial(t *testing.T) {
	hdr := &Header{
		Type:             PacketTypeInitial,
		DestConnectionID: protocol.ConnectionID([]byte{1, 2, 3, 4}),
		SrcConnectionID:  protocol.ConnectionID([]byte{5, 6, 7, 8}),
		Token:            []byte("token"),
		Length:           100,
		Version:          1,
	}
	b := AppendLongHeader(nil, hdr, protocol.PacketNumberLen2)

	got, pnLen, consumed, err := ParseLongHeader(b)
	require.NoError(t, err)
	require.Equal(t, len(b), consumed)
	require.Equal(t, protocol.PacketNumberLen2, pnLen)
	require.Equal(t, hdr.Type, got.Type)
	require.Equal(t, hdr.DestConnectionID, got.DestConnectionID)
	require.Equal(t, hdr.SrcConnectionID, got.SrcConnectionID)
	require.Equal(t, hdr.Token, got.Token)
	require.Equal(t, hdr.Length, got.Length)
	require.Equal(t, hdr.Version, got.Version)
}

func TestLongHeaderRoundTripNonInitialHasNoToken(t *testing.T) {
	hdr := &Header{
		Type:             PacketTypeHandshake,
		DestConnectionID: protocol.ConnectionID([]byte{1, 2, 3, 4}),
		SrcConnectionID:  protocol.ConnectionID([]byte{5, 6, 7, 8}),
		Length:           50,
		Version:          1,
	}
	b := AppendLongHeader(nil, hdr, protocol.PacketNumberLen1)
	got, _, _, err := ParseLongHeader(b)
	require.NoError(t, err)
	require.Empty(t, got.Token)
}

func TestLongHeaderRetryKeepsTrailingBytes(t *testing.T) {
	hdr := &Header{
		Type:             PacketTypeRetry,
		DestConnectionID: protocol.ConnectionID([]byte{1, 2}),
		SrcConnectionID:  protocol.ConnectionID([]byte{3, 4}),
		Token:            append([]byte("retry-token"), make([]byte, 16)...),
		Version:          1,
	}
	b := AppendLongHeader(nil, hdr, 0)
	got, _, consumed, err := ParseLongHeader(b)
	require.NoError(t, err)
	require.Equal(t, len(b), consumed)
	require.Equal(t, PacketTypeRetry, got.Type)
}

func TestParseLongHeaderRejectsShortHeaderForm(t *testing.T) {
	// longHeaderFormBit (0x80) cleared -> not a long header.
	b := []byte{0x40, 0, 0, 0, 1, 0}
	_, _, _, err := ParseLongHeader(b)
	require.Error(t, err)
}

func TestParseLongHeaderRejectsMissingFixedBit(t *testing.T) {
	b := []byte{0x80, 0, 0, 0, 1, 0}
	_, _, _, err := ParseLongHeader(b)
	require.Error(t, err)
}

func TestParseLongHeaderShortBuffer(t *testing.T) {
	_, _, _, err := ParseLongHeader([]byte{0x80, 0, 0})
	require.Error(t, err)
}

func TestShortHeaderRoundTrip(t *testing.T) {
	connID := protocol.ConnectionID([]byte{9, 9, 9, 9})
	b := AppendShortHeader(nil, connID, protocol.KeyPhaseOne, protocol.PacketNumberLen3)

	kp, pnLen, consumed, err := ParseShortHeader(b, connID.Len())
	require.NoError(t, err)
	require.Equal(t, protocol.KeyPhaseOne, kp)
	require.Equal(t, protocol.PacketNumberLen3, pnLen)
	require.Equal(t, len(b), consumed)
}

func TestShortHeaderKeyPhaseZero(t *testing.T) {
	connID := protocol.ConnectionID([]byte{1})
	b := AppendShortHeader(nil, connID, protocol.KeyPhaseZero, protocol.PacketNumberLen1)
	kp, _, _, err := ParseShortHeader(b, connID.Len())
	require.NoError(t, err)
	require.Equal(t, protocol.KeyPhaseZero, kp)
}

func TestParseShortHeaderRejectsLongHeaderForm(t *testing.T) {
	_, _, _, err := ParseShortHeader([]byte{0xC0, 1, 2, 3, 4}, 4)
	require.Error(t, err)
}

func TestParseShortHeaderShortBuffer(t *testing.T) {
	_, _, _, err := ParseShortHeader([]byte{0x40}, 4)
	require.Error(t, err)
}

func TestPacketNumberRoundTrip(t *testing.T) {
	tests := []struct {
		pn     protocol.PacketNumber
		length protocol.PacketNumberLen
	}{
		{0, protocol.PacketNumberLen1},
		{255, protocol.PacketNumberLen1},
		{256, protocol.PacketNumberLen2},
		{1 << 20, protocol.PacketNumberLen3},
		{1 << 28, protocol.PacketNumberLen4},
	}
	for _, tt := range tests {
		b := AppendPacketNumber(nil, tt.pn, tt.length)
		require.Len(t, b, int(tt.length))
		got, err := ReadPacketNumber(b, tt.length)
		require.NoError(t, err)
		mask := protocol.PacketNumber(1)<<(8*uint(tt.length)) - 1
		require.Equal(t, tt.pn&mask, got)
	}
}

func TestReadPacketNumberShortBuffer(t *testing.T) {
	_, err := ReadPacketNumber([]byte{1, 2}, protocol.PacketNumberLen4)
	require.Error(t, err)
}
