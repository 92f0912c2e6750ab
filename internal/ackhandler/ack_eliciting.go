package ackhandler

import "github.com/qcore-go/qcore/internal/wire"

// IsFrameAckEliciting reports whether f is ack-eliciting: every frame
// except ACK and CONNECTION_CLOSE is.
func IsFrameAckEliciting(f wire.Frame) bool {
	return wire.IsAckEliciting(f)
}

// HasAckElicitingFrames reports whether any frame in fs is ack-eliciting.
func HasAckElicitingFrames(fs []*Frame) bool {
	for _, f := range fs {
		if f.Frame != nil && IsFrameAckEliciting(f.Frame) {
			return true
		}
	}
	return false
}
