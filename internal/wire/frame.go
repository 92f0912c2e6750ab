package wire

import "github.com/qcore-go/qcore/internal/protocol"

// A Frame is one QUIC wire-level unit of control or data. All 25 frame
// kinds defined for this core share this contract: Append writes the
// frame's encoding onto b and returns the extended slice; Length reports
// the encoded size without materialising it, used for packing budget
// calculations.
type Frame interface {
	Append(b []byte) ([]byte, error)
	Length() protocol.ByteCount
}

// IsAckEliciting reports whether f obligates the peer to send an ACK:
// every frame except ACK and CONNECTION_CLOSE is ack-eliciting; a
// datagram containing only PADDING is handled by the caller, since
// PADDING itself never appears as a parsed Frame value here.
func IsAckEliciting(f Frame) bool {
	switch f.(type) {
	case *AckFrame, *ConnectionCloseFrame:
		return false
	default:
		return true
	}
}

// HasAckEliciting reports whether any frame in fs is ack-eliciting,
// short-circuiting on the first one found.
func HasAckEliciting(fs []Frame) bool {
	for _, f := range fs {
		if IsAckEliciting(f) {
			return true
		}
	}
	return false
}
