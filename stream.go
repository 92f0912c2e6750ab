package quiccore

import (
	"context"
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/wire"
)

// StreamID identifies a stream within a session.
type StreamID = protocol.StreamID

// SendStream is the write half of a stream, or a unidirectional outgoing
// stream on its own.
type SendStream interface {
	StreamID() StreamID
	// Write blocks until all of p has been accepted into the stream's
	// pending buffer, the deadline passes, or the stream or session is
	// torn down.
	Write(p []byte) (int, error)
	// Close marks the stream finished; the FIN goes out on the STREAM frame
	// that carries the last pending data, or on an empty frame if none is left.
	Close() error
	// CancelWrite abandons the stream immediately, discarding any
	// unacknowledged data and signalling errorCode to the peer.
	CancelWrite(errorCode uint64) error
	SetWriteDeadline(t time.Time) error
	Context() context.Context
}

// ReceiveStream is the read half of a stream, or a unidirectional
// incoming stream on its own.
type ReceiveStream interface {
	StreamID() StreamID
	// Read copies reassembled stream data into p in stream order,
	// returning ErrStreamEof once the FIN has been delivered.
	Read(p []byte) (int, error)
	// CancelRead abandons the receive side, discarding any buffered and
	// future data and emitting STOP_SENDING to the peer.
	CancelRead(errorCode uint64) error
	SetReadDeadline(t time.Time) error
}

// Stream is a full-duplex bidirectional stream.
type Stream interface {
	SendStream
	ReceiveStream
}

// streamSender is the narrow slice of the session a stream needs: a way
// to mark itself active so the send loop visits it, and a way to enqueue
// a control frame outside the stream round robin.
type streamSender interface {
	onHasStreamData(id StreamID)
	queueControlFrame(f wire.Frame)
	onStreamCompleted(id StreamID)
}
