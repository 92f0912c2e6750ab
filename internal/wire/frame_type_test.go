package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsStreamFrameType(t *testing.T) {
	require.True(t, IsStreamFrameType(FrameTypeStream))
	require.True(t, IsStreamFrameType(FrameTypeStreamMax))
	require.False(t, IsStreamFrameType(FrameTypePing))
	require.False(t, IsStreamFrameType(FrameTypeMaxData))
}

func TestStreamFrameFlagsRoundTrip(t *testing.T) {
	tests := []streamFrameFlags{
		{},
		{Fin: true},
		{Len: true},
		{Off: true},
		{Fin: true, Len: true, Off: true},
	}
	for _, flags := range tests {
		tag := streamFrameType(flags)
		require.True(t, IsStreamFrameType(tag))
		require.Equal(t, flags, parseStreamFrameFlags(tag))
	}
}
