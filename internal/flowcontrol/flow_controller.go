// Package flowcontrol implements the two flow-control variants the
// session uses: one per stream and one for the connection as a whole.
// Both share the base window-accounting contract described in the
// component design: bytes sent/received, the current send/receive
// window, and window-update threshold logic.
package flowcontrol

import "github.com/qcore-go/qcore/internal/protocol"

// Controller is the send/receive window bookkeeping contract shared by
// both the stream and connection variants.
type Controller interface {
	// SendWindowSize returns how many more bytes may be sent right now.
	SendWindowSize() protocol.ByteCount
	// AddBytesSent records that n bytes were just sent.
	AddBytesSent(n protocol.ByteCount)
	// IsNewlyBlocked reports whether the sender has just become blocked
	// at the current send window, and returns that offset; it reports
	// true at most once per distinct offset, to suppress duplicate
	// *_BLOCKED emissions.
	IsNewlyBlocked() (bool, protocol.ByteCount)

	// UpdateSendWindow raises the send window if offset is higher than
	// the current one; a decrease is ignored, since QUIC windows only
	// grow or are abandoned.
	UpdateSendWindow(offset protocol.ByteCount)

	// AddBytesRead records that n bytes were delivered to the reader.
	AddBytesRead(n protocol.ByteCount)
	// GetWindowUpdate returns a new absolute receive-window offset to
	// advertise to the peer, and true, if enough of the window has been
	// consumed to warrant one; otherwise ok is false.
	GetWindowUpdate() (offset protocol.ByteCount, ok bool)
}

// StreamController additionally enforces a maximum receive offset and
// tracks the stream's final size once a FIN pins it.
type StreamController interface {
	Controller
	// UpdateHighestReceived records that the peer has sent data up to
	// offset, checking it against the receive window. If final is true,
	// this pins the stream's final size; a later call with a different
	// final offset, or exceeding a previously pinned one, returns the
	// FINAL_SIZE_ERROR built by qerr.ErrFinalSizeError.
	UpdateHighestReceived(offset protocol.ByteCount, final bool) error
	// Abandon releases the controller's credit back to the connection
	// controller, called once the stream will read no more data.
	Abandon()
}

// ConnectionController aggregates the stream-level sends and receives.
type ConnectionController interface {
	Controller
	// EnsureMinimumWindowIncrement raises the maximum receive window to
	// addend (capped at DefaultMaxReceiveConnectionFlowControlWindow) if
	// addend exceeds it, used when a single stream's window would otherwise
	// be starved relative to its parent connection.
	EnsureMinimumWindowIncrement(addend protocol.ByteCount)
}
