package quiccore

import (
	"context"
	"sync"
	"time"

	"github.com/qcore-go/qcore/internal/ackhandler"
	"github.com/qcore-go/qcore/internal/flowcontrol"
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/internal/wire"
)

// sendStream implements the SendStream state machine from Ready through
// DataSent/DataRecvd, or ResetSent/ResetRecvd if cancelled.
type sendStream struct {
	mutex sync.Mutex

	ctx       context.Context
	ctxCancel context.CancelFunc

	streamID protocol.StreamID
	sender   streamSender

	writeOffset protocol.ByteCount

	cancelWriteErr error
	shutdownErr    error

	closedForShutdown bool
	finishedWriting   bool
	canceledWrite     bool
	finSent           bool

	dataForWriting []byte
	writeChan      chan struct{}
	writeDeadline  time.Time

	// retransmissionQueue holds STREAM frames whose packet was declared
	// lost, verbatim, to be resent ahead of any new data.
	retransmissionQueue []*wire.StreamFrame

	flowController flowcontrol.StreamController
}

var _ SendStream = &sendStream{}

func newSendStream(id protocol.StreamID, sender streamSender, fc flowcontrol.StreamController) *sendStream {
	s := &sendStream{
		streamID:       id,
		sender:         sender,
		flowController: fc,
		writeChan:      make(chan struct{}, 1),
	}
	s.ctx, s.ctxCancel = context.WithCancel(context.Background())
	return s
}

func (s *sendStream) StreamID() StreamID { return s.streamID }

func (s *sendStream) Write(p []byte) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.finishedWriting {
		return 0, qerr.ErrWriteOnClosedStream
	}
	if s.canceledWrite {
		return 0, s.cancelWriteErr
	}
	if s.shutdownErr != nil {
		return 0, s.shutdownErr
	}
	if !s.writeDeadline.IsZero() && !time.Now().Before(s.writeDeadline) {
		return 0, qerr.ErrTimeout
	}
	if len(p) == 0 {
		return 0, nil
	}

	s.dataForWriting = append([]byte(nil), p...)
	s.sender.onHasStreamData(s.streamID)

	var bytesWritten int
	var err error
	for {
		bytesWritten = len(p) - len(s.dataForWriting)
		deadline := s.writeDeadline
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			s.dataForWriting = nil
			err = qerr.ErrTimeout
			break
		}
		if s.dataForWriting == nil || s.canceledWrite || s.closedForShutdown {
			break
		}

		s.mutex.Unlock()
		if deadline.IsZero() {
			<-s.writeChan
		} else {
			select {
			case <-s.writeChan:
			case <-time.After(deadline.Sub(time.Now())):
			}
		}
		s.mutex.Lock()
	}

	if s.shutdownErr != nil {
		err = s.shutdownErr
	} else if s.cancelWriteErr != nil {
		err = s.cancelWriteErr
	}
	return bytesWritten, err
}

// popStreamFrame returns the next STREAM frame to send on this stream,
// wrapped with ackhandler callbacks, or nil if there is nothing to send
// within maxBytes.
func (s *sendStream) popStreamFrame(maxBytes protocol.ByteCount) *ackhandler.Frame {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.shutdownErr != nil || s.canceledWrite {
		return nil
	}

	if len(s.retransmissionQueue) > 0 {
		return s.popRetransmission(maxBytes)
	}

	frame := &wire.StreamFrame{
		StreamID:       s.streamID,
		Offset:         s.writeOffset,
		DataLenPresent: true,
	}
	frameLen := frame.HeaderLen()
	if frameLen >= maxBytes {
		return nil
	}
	data, fin := s.getDataForWriting(maxBytes - frameLen)
	if len(data) == 0 && !fin {
		return nil
	}
	frame.Data = data
	frame.Fin = fin
	if fin {
		s.finSent = true
	} else if isBlocked, offset := s.flowController.IsNewlyBlocked(); isBlocked {
		s.sender.queueControlFrame(&wire.StreamDataBlockedFrame{StreamID: s.streamID, MaximumStreamData: offset})
	}

	return s.wrapFrame(frame)
}

// popRetransmission returns the head of the retransmission queue,
// splitting it with MaybeSplitOffFrame if it doesn't fit within
// maxBytes and leaving the tail queued for a later packet.
func (s *sendStream) popRetransmission(maxBytes protocol.ByteCount) *ackhandler.Frame {
	frame := s.retransmissionQueue[0]
	if head := frame.MaybeSplitOffFrame(maxBytes); head != nil {
		return s.wrapFrame(head)
	}
	if frame.Length() > maxBytes {
		return nil
	}
	s.retransmissionQueue = s.retransmissionQueue[1:]
	return s.wrapFrame(frame)
}

func (s *sendStream) wrapFrame(frame *wire.StreamFrame) *ackhandler.Frame {
	wrapped := &ackhandler.Frame{Frame: frame}
	wrapped.OnLost = func(f *ackhandler.Frame) { s.queueRetransmission(f.Frame.(*wire.StreamFrame)) }
	wrapped.OnAcked = func(f *ackhandler.Frame) { s.onFrameAcked(f.Frame.(*wire.StreamFrame)) }
	return wrapped
}

// queueRetransmission re-queues f's exact bytes for resending, called
// once its packet has been declared lost.
func (s *sendStream) queueRetransmission(f *wire.StreamFrame) {
	s.mutex.Lock()
	s.retransmissionQueue = append(s.retransmissionQueue, f)
	s.mutex.Unlock()
	s.sender.onHasStreamData(s.streamID)
}

func (s *sendStream) onFrameAcked(f *wire.StreamFrame) {
	if f.Fin {
		s.sender.onStreamCompleted(s.streamID)
	}
}

func (s *sendStream) getDataForWriting(maxBytes protocol.ByteCount) ([]byte, bool) {
	if s.dataForWriting == nil {
		return nil, s.finishedWriting && !s.finSent
	}
	if sendable := s.flowController.SendWindowSize(); maxBytes > sendable {
		maxBytes = sendable
	}
	if maxBytes == 0 {
		return nil, false
	}

	var ret []byte
	if protocol.ByteCount(len(s.dataForWriting)) > maxBytes {
		ret = s.dataForWriting[:maxBytes]
		s.dataForWriting = s.dataForWriting[maxBytes:]
	} else {
		ret = s.dataForWriting
		s.dataForWriting = nil
		s.signalWrite()
	}
	s.writeOffset += protocol.ByteCount(len(ret))
	s.flowController.AddBytesSent(protocol.ByteCount(len(ret)))
	return ret, s.finishedWriting && s.dataForWriting == nil && !s.finSent
}

func (s *sendStream) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.canceledWrite {
		return qerr.ErrWriteOnClosedStream
	}
	s.finishedWriting = true
	s.sender.onHasStreamData(s.streamID)
	s.ctxCancel()
	return nil
}

func (s *sendStream) CancelWrite(errorCode uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.cancelWriteImpl(errorCode, qerr.ErrCancelWrite)
}

func (s *sendStream) cancelWriteImpl(errorCode uint64, writeErr error) error {
	if s.canceledWrite {
		return nil
	}
	if s.finishedWriting {
		return qerr.ErrWriteOnClosedStream
	}
	s.canceledWrite = true
	s.cancelWriteErr = writeErr
	s.signalWrite()
	s.sender.queueControlFrame(&wire.ResetStreamFrame{
		StreamID:  s.streamID,
		ErrorCode: errorCode,
		FinalSize: s.writeOffset,
	})
	s.ctxCancel()
	return nil
}

func (s *sendStream) handleStopSendingFrame(f *wire.StopSendingFrame) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.cancelWriteImpl(f.ErrorCode, qerr.ErrResetByRemote)
}

func (s *sendStream) handleMaxStreamDataFrame(f *wire.MaxStreamDataFrame) {
	s.mutex.Lock()
	s.flowController.UpdateSendWindow(f.MaximumStreamData)
	s.mutex.Unlock()
	s.maybeReactivate()
}

// maybeReactivate re-queues the stream for sending if it still has
// buffered data. A window update, whether on this stream's own budget
// or on the shared connection budget, may have unblocked a stream that
// popStreamFrame previously dropped from the active set.
func (s *sendStream) maybeReactivate() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.dataForWriting != nil {
		s.sender.onHasStreamData(s.streamID)
	}
}

func (s *sendStream) Context() context.Context { return s.ctx }

func (s *sendStream) SetWriteDeadline(t time.Time) error {
	s.mutex.Lock()
	old := s.writeDeadline
	s.writeDeadline = t
	s.mutex.Unlock()
	if t.Before(old) {
		s.signalWrite()
	}
	return nil
}

// closeForShutdown makes Write unblock and return err immediately. The
// peer is never informed: no FIN, no RESET_STREAM is sent.
func (s *sendStream) closeForShutdown(err error) {
	s.mutex.Lock()
	s.closedForShutdown = true
	s.shutdownErr = err
	s.mutex.Unlock()
	s.signalWrite()
	s.ctxCancel()
}

func (s *sendStream) finished() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.closedForShutdown || s.finSent || s.canceledWrite
}

func (s *sendStream) signalWrite() {
	select {
	case s.writeChan <- struct{}{}:
	default:
	}
}
