package ackhandler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qcore-go/qcore/internal/wire"
)

func TestIsFrameAckEliciting(t *testing.T) {
	require.True(t, IsFrameAckEliciting(&wire.PingFrame{}))
	require.False(t, IsFrameAckEliciting(&wire.AckFrame{}))
}

func TestHasAckElicitingFrames(t *testing.T) {
	require.False(t, HasAckElicitingFrames(nil))
	require.False(t, HasAckElicitingFrames([]*Frame{{Frame: &wire.AckFrame{}}}))
	require.True(t, HasAckElicitingFrames([]*Frame{
		{Frame: &wire.AckFrame{}},
		{Frame: &wire.PingFrame{}},
	}))
	require.False(t, HasAckElicitingFrames([]*Frame{{Frame: nil}}))
}
