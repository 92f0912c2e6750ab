package quiccore

import (
	"sync"
	"time"

	"github.com/qcore-go/qcore/internal/flowcontrol"
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/internal/wire"
)

// receiveStream implements the ReceiveStream state machine from Recv
// through SizeKnown/DataRead, or ResetRecvd/ResetRead if the peer resets
// the stream.
type receiveStream struct {
	mutex sync.Mutex

	streamID protocol.StreamID
	sender   streamSender

	sorter *wire.FrameSorter

	currentFrame       []byte
	currentFrameDone   func()
	readOffset         protocol.ByteCount
	finalOffset        protocol.ByteCount
	finRead            bool
	resetRemotely      bool
	resetErrorCode     uint64
	closedForShutdown  bool
	shutdownErr        error

	readChan     chan struct{}
	readDeadline time.Time

	flowController flowcontrol.StreamController
}

func newReceiveStream(id protocol.StreamID, sender streamSender, fc flowcontrol.StreamController) *receiveStream {
	return &receiveStream{
		streamID:       id,
		sender:         sender,
		sorter:         wire.NewFrameSorter(),
		flowController: fc,
		readChan:       make(chan struct{}, 1),
		finalOffset:    protocol.MaxByteCount,
	}
}

func (s *receiveStream) StreamID() StreamID { return s.streamID }

// handleStreamFrame checks flow control then pushes f's payload into the
// reassembly sorter, waking any blocked Read.
func (s *receiveStream) handleStreamFrame(f *wire.StreamFrame) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	maxOffset := f.Offset + protocol.ByteCount(len(f.Data))
	if err := s.flowController.UpdateHighestReceived(maxOffset, f.Fin); err != nil {
		return err
	}
	if s.resetRemotely || s.closedForShutdown {
		return nil
	}
	if f.Fin {
		s.finalOffset = maxOffset
	}
	if err := s.sorter.Push(f.Data, f.Offset, nil); err != nil {
		return qerr.NewTransportError(qerr.InternalError, err.Error())
	}
	s.signalRead()
	return nil
}

func (s *receiveStream) handleRstStreamFrame(f *wire.ResetStreamFrame) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.flowController.UpdateHighestReceived(f.FinalSize, true); err != nil {
		return err
	}
	if s.resetRemotely {
		return nil
	}
	s.resetRemotely = true
	s.resetErrorCode = f.ErrorCode
	s.flowController.Abandon()
	s.signalRead()
	return nil
}

func (s *receiveStream) Read(p []byte) (int, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var n int
	for n == 0 {
		if s.closedForShutdown {
			return 0, s.shutdownErr
		}
		if s.resetRemotely {
			return 0, qerr.ErrResetByRemote
		}
		if s.finRead {
			return 0, qerr.ErrStreamEof
		}
		if s.currentFrame == nil {
			if err := s.dequeueNextFrame(); err != nil {
				return 0, err
			}
		}
		for s.currentFrame != nil {
			copied := copy(p[n:], s.currentFrame)
			n += copied
			s.currentFrame = s.currentFrame[copied:]
			s.readOffset += protocol.ByteCount(copied)
			if len(s.currentFrame) == 0 {
				if s.currentFrameDone != nil {
					s.currentFrameDone()
				}
				s.currentFrame = nil
			}
			s.flowController.AddBytesRead(protocol.ByteCount(copied))
			if n == len(p) {
				break
			}
			if err := s.dequeueNextFrame(); err != nil {
				return n, err
			}
		}
		if n > 0 {
			break
		}
		if s.finRead {
			continue
		}
		if n == 0 {
			if !s.waitForData() {
				return n, s.readWaitError()
			}
		}
	}
	return n, nil
}

func (s *receiveStream) dequeueNextFrame() error {
	offset, data, done, ok := s.sorter.Pop()
	if !ok {
		if s.readOffset == s.finalOffset {
			s.finRead = true
		}
		return nil
	}
	if offset != s.readOffset {
		// sorter.Pop only ever returns a chunk starting at readPos, so a
		// mismatch here would indicate an internal bug, not peer input.
		return qerr.NewTransportError(qerr.InternalError, "frame sorter returned out-of-order chunk")
	}
	s.currentFrame = data
	s.currentFrameDone = done
	if len(data) == 0 && s.readOffset == s.finalOffset {
		s.finRead = true
	}
	return nil
}

func (s *receiveStream) waitForData() bool {
	deadline := s.readDeadline
	s.mutex.Unlock()
	var ok bool
	if deadline.IsZero() {
		<-s.readChan
		ok = true
	} else {
		select {
		case <-s.readChan:
			ok = true
		case <-time.After(deadline.Sub(time.Now())):
			ok = false
		}
	}
	s.mutex.Lock()
	return ok
}

func (s *receiveStream) readWaitError() error {
	switch {
	case s.closedForShutdown:
		return s.shutdownErr
	case s.resetRemotely:
		return qerr.ErrResetByRemote
	default:
		return qerr.ErrTimeout
	}
}

func (s *receiveStream) CancelRead(errorCode uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.finRead || s.resetRemotely {
		return nil
	}
	s.resetRemotely = true
	s.resetErrorCode = errorCode
	s.flowController.Abandon()
	s.sender.queueControlFrame(&wire.StopSendingFrame{StreamID: s.streamID, ErrorCode: errorCode})
	s.signalRead()
	return nil
}

func (s *receiveStream) SetReadDeadline(t time.Time) error {
	s.mutex.Lock()
	old := s.readDeadline
	s.readDeadline = t
	s.mutex.Unlock()
	if t.Before(old) {
		s.signalRead()
	}
	return nil
}

func (s *receiveStream) closeForShutdown(err error) {
	s.mutex.Lock()
	s.closedForShutdown = true
	s.shutdownErr = err
	s.mutex.Unlock()
	s.signalRead()
}

func (s *receiveStream) signalRead() {
	select {
	case s.readChan <- struct{}{}:
	default:
	}
}
