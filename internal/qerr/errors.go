// Package qerr defines the error taxonomy used throughout the transport
// core: the transport error codes carried on CONNECTION_CLOSE, and the
// sentinel errors distinguishing wire, semantic, stream-local, and
// resource-limit conditions per their propagation policy.
package qerr

import "fmt"

// TransportErrorCode is a QUIC transport error code, carried on the wire
// in a CONNECTION_CLOSE frame.
type TransportErrorCode uint64

const (
	NoError                 TransportErrorCode = 0x0
	InternalError           TransportErrorCode = 0x1
	ConnectionRefused       TransportErrorCode = 0x2
	FlowControlErrorCode    TransportErrorCode = 0x3
	StreamLimitErrorCode    TransportErrorCode = 0x4
	StreamStateErrorCode    TransportErrorCode = 0x5
	FinalSizeErrorCode      TransportErrorCode = 0x6
	FrameEncodingError      TransportErrorCode = 0x7
	TransportParameterError TransportErrorCode = 0x8
	ProtocolViolation       TransportErrorCode = 0xa
	ApplicationErrorCode    TransportErrorCode = 0xc
)

func (c TransportErrorCode) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case InternalError:
		return "INTERNAL_ERROR"
	case ConnectionRefused:
		return "CONNECTION_REFUSED"
	case FlowControlErrorCode:
		return "FLOW_CONTROL_ERROR"
	case StreamLimitErrorCode:
		return "STREAM_LIMIT_ERROR"
	case StreamStateErrorCode:
		return "STREAM_STATE_ERROR"
	case FinalSizeErrorCode:
		return "FINAL_SIZE_ERROR"
	case FrameEncodingError:
		return "FRAME_ENCODING_ERROR"
	case TransportParameterError:
		return "TRANSPORT_PARAMETER_ERROR"
	case ProtocolViolation:
		return "PROTOCOL_VIOLATION"
	case ApplicationErrorCode:
		return "APPLICATION_ERROR"
	default:
		return fmt.Sprintf("unknown error code: %#x", uint64(c))
	}
}

// TransportError is a fatal, connection-closing error. The session emits
// a CONNECTION_CLOSE carrying ErrorCode and Message and enters the
// closing state.
type TransportError struct {
	ErrorCode TransportErrorCode
	Message   string
	Remote    bool // set if this error was received from the peer
}

func (e *TransportError) Error() string {
	if e.Message == "" {
		return e.ErrorCode.String()
	}
	return fmt.Sprintf("%s: %s", e.ErrorCode.String(), e.Message)
}

// NewTransportError constructs a local TransportError.
func NewTransportError(code TransportErrorCode, msg string) *TransportError {
	return &TransportError{ErrorCode: code, Message: msg}
}

// ApplicationError is sent/received in a CONNECTION_CLOSE frame that
// carries an application, rather than a transport, error code.
type ApplicationError struct {
	ErrorCode uint64
	Message   string
	Remote    bool
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("Application error %#x: %s", e.ErrorCode, e.Message)
}

// wireError is a sentinel for the family of malformed-input errors that
// are recovered at the packet boundary: the offending datagram is
// dropped silently and the session continues.
type wireError string

func (e wireError) Error() string { return string(e) }

const (
	ErrShortBuffer       = wireError("short buffer")
	ErrBadFixedBit       = wireError("fixed bit not set in short header")
	ErrUnknownFrameType  = wireError("unknown frame type")
	ErrFrameDecodeFailed = wireError("frame decode failed")
	ErrHeaderDecodeFailed = wireError("header decode failed")
	ErrUnknownPacketType = wireError("unknown packet type")
	ErrUnsupportedVersion = wireError("unsupported version")
)

// streamError is a sentinel for stream-local conditions returned directly
// to the application in the Stream's read/write result, never torn down
// to a connection-level close.
type streamError string

func (e streamError) Error() string { return string(e) }

const (
	ErrStreamEof            = streamError("stream closed for reading")
	ErrCancelRead           = streamError("read canceled")
	ErrCancelWrite          = streamError("write canceled")
	ErrWriteOnClosedStream  = streamError("write on closed stream")
	ErrWriteBufferEmpty     = streamError("nothing to write")
	ErrResetByRemote        = streamError("stream reset by remote")
	ErrShutdown             = streamError("session shut down")
	ErrTimeout              = streamError("deadline exceeded")
)

// ErrTooManyInflightPackets names a resource-limit condition: the sent
// packet history grew past its tracked bound. No function returns it;
// SendMode reports the condition by returning SendNone until the history
// drains.
var ErrTooManyInflightPackets = wireError("too many in-flight packets")

// ErrTooManyGaps is returned by the frame sorter's Push when the number of
// disjoint gaps in the reassembly buffer would exceed
// protocol.MaxStreamFrameSorterGaps.
var ErrTooManyGaps = wireError("too many gaps in received data")

// ErrFlowControlError builds the TransportError a flow controller raises
// when the peer sent more data than its advertised window allowed.
func ErrFlowControlError(msg string) *TransportError {
	return NewTransportError(FlowControlErrorCode, msg)
}

// ErrStreamStateError builds the TransportError raised on an operation
// that violates a stream's state machine (write on a closed stream, data
// received after the final size).
func ErrStreamStateError(msg string) *TransportError {
	return NewTransportError(StreamStateErrorCode, msg)
}

// ErrFinalSizeError builds the TransportError raised when a stream's
// declared final size conflicts with data already seen.
func ErrFinalSizeError(msg string) *TransportError {
	return NewTransportError(FinalSizeErrorCode, msg)
}
