package quiccore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qcore-go/qcore/internal/protocol"
)

func TestPopulateConfigNilInputUsesAllDefaults(t *testing.T) {
	c := populateConfig(nil)
	require.Equal(t, protocol.PacketsBeforeAck, c.PacketsBeforeAck)
	require.Equal(t, protocol.DefaultAckSendDelay, c.MaxAckDelay)
	require.Equal(t, protocol.DefaultInitialMaxStreamData, c.InitialStreamReceiveWindow)
	require.Equal(t, protocol.DefaultMaxReceiveStreamFlowControlWindow, c.MaxStreamReceiveWindow)
	require.Equal(t, protocol.DefaultInitialMaxData, c.InitialConnectionReceiveWindow)
	require.Equal(t, protocol.DefaultMaxReceiveConnectionFlowControlWindow, c.MaxConnectionReceiveWindow)
	require.Equal(t, int64(protocol.DefaultMaxIncomingStreams), c.MaxIncomingStreams)
	require.Equal(t, protocol.CongestionControlCubic, c.CongestionControl)
	require.Equal(t, protocol.MinConnectionIDLenInitial, c.ConnectionIDLength)
}

func TestPopulateConfigPreservesExplicitValues(t *testing.T) {
	c := populateConfig(&Config{
		PacketsBeforeAck:  1,
		MaxAckDelay:       5 * time.Millisecond,
		MaxIncomingStreams: 7,
		ConnectionIDLength: 20,
	})
	require.Equal(t, 1, c.PacketsBeforeAck)
	require.Equal(t, 5*time.Millisecond, c.MaxAckDelay)
	require.Equal(t, int64(7), c.MaxIncomingStreams)
	require.Equal(t, 20, c.ConnectionIDLength)
	// Untouched fields still get defaulted alongside the explicit ones.
	require.Equal(t, protocol.CongestionControlCubic, c.CongestionControl)
}

func TestPopulateConfigDoesNotMutateInput(t *testing.T) {
	orig := &Config{PacketsBeforeAck: 3}
	populated := populateConfig(orig)
	populated.PacketsBeforeAck = 99
	require.Equal(t, 3, orig.PacketsBeforeAck)
}
