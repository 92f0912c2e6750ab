package quiccore

import "github.com/qcore-go/qcore/internal/qerr"

// TransportError is returned from Session/Stream operations when the
// connection has been closed by a QUIC-level transport error, either
// raised locally or reported by the peer's CONNECTION_CLOSE frame.
type TransportError = qerr.TransportError

// ApplicationError is returned when the peer (or this side) closed the
// connection or a stream with an application-defined error code.
type ApplicationError = qerr.ApplicationError

// StreamError values are returned from Stream.Read/Write to report a
// stream-scoped condition that does not affect the rest of the session.
var (
	ErrStreamEof           = qerr.ErrStreamEof
	ErrCancelRead          = qerr.ErrCancelRead
	ErrCancelWrite         = qerr.ErrCancelWrite
	ErrWriteOnClosedStream = qerr.ErrWriteOnClosedStream
	ErrResetByRemote       = qerr.ErrResetByRemote
	ErrShutdown            = qerr.ErrShutdown
	ErrTimeout             = qerr.ErrTimeout
)
