package quiccore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qcore-go/qcore/internal/flowcontrol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/internal/utils"
	"github.com/qcore-go/qcore/internal/wire"
)

func newTestReceiveStream() (*receiveStream, *recordingStreamSender) {
	sender := &recordingStreamSender{}
	connFC := flowcontrol.NewConnectionFlowController(100000, 100000, 100000, utils.NewRTTStats(0))
	fc := flowcontrol.NewStreamFlowController(2, connFC, 100000, 100000, 100000, utils.NewRTTStats(0))
	return newReceiveStream(2, sender, fc), sender
}

func TestReceiveStreamHandleStreamFrameThenReadDeliversData(t *testing.T) {
	s, _ := newTestReceiveStream()
	require.NoError(t, s.handleStreamFrame(&wire.StreamFrame{Offset: 0, Data: []byte("hello"), DataLenPresent: true}))

	buf := make([]byte, 5)
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
}

func TestReceiveStreamReadReturnsEofAfterFin(t *testing.T) {
	s, _ := newTestReceiveStream()
	require.NoError(t, s.handleStreamFrame(&wire.StreamFrame{Offset: 0, Data: []byte("hi"), Fin: true, DataLenPresent: true}))

	buf := make([]byte, 10)
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf[:n]))

	n, err = s.Read(buf)
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, qerr.ErrStreamEof)
}

func TestReceiveStreamHandleStreamFrameReassemblesOutOfOrder(t *testing.T) {
	s, _ := newTestReceiveStream()
	require.NoError(t, s.handleStreamFrame(&wire.StreamFrame{Offset: 5, Data: []byte("world"), Fin: true, DataLenPresent: true}))
	require.NoError(t, s.handleStreamFrame(&wire.StreamFrame{Offset: 0, Data: []byte("hello"), DataLenPresent: true}))

	buf := make([]byte, 10)
	n, err := s.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "helloworld", string(buf[:n]))
}

func TestReceiveStreamReadBlocksUntilDataArrives(t *testing.T) {
	s, _ := newTestReceiveStream()
	done := make(chan struct{})
	buf := make([]byte, 5)
	var n int
	var err error
	go func() {
		n, err = s.Read(buf)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Read returned before any data arrived")
	default:
	}

	require.NoError(t, s.handleStreamFrame(&wire.StreamFrame{Offset: 0, Data: []byte("hi"), DataLenPresent: true}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Read never woke up after data arrived")
	}
	require.NoError(t, err)
	require.Equal(t, "hi", string(buf[:n]))
}

func TestReceiveStreamReadRespectsDeadline(t *testing.T) {
	s, _ := newTestReceiveStream()
	require.NoError(t, s.SetReadDeadline(time.Now().Add(20 * time.Millisecond)))

	_, err := s.Read(make([]byte, 5))
	require.ErrorIs(t, err, qerr.ErrTimeout)
}

func TestReceiveStreamHandleRstStreamFrameResetsReader(t *testing.T) {
	s, _ := newTestReceiveStream()
	require.NoError(t, s.handleRstStreamFrame(&wire.ResetStreamFrame{ErrorCode: 9, FinalSize: 0}))

	_, err := s.Read(make([]byte, 5))
	require.ErrorIs(t, err, qerr.ErrResetByRemote)
	require.Equal(t, uint64(9), s.resetErrorCode)
}

func TestReceiveStreamHandleRstStreamFrameIsIdempotent(t *testing.T) {
	s, _ := newTestReceiveStream()
	require.NoError(t, s.handleRstStreamFrame(&wire.ResetStreamFrame{ErrorCode: 1, FinalSize: 10}))
	require.NoError(t, s.handleRstStreamFrame(&wire.ResetStreamFrame{ErrorCode: 2, FinalSize: 10}))
	require.Equal(t, uint64(1), s.resetErrorCode, "a later RESET_STREAM must not overwrite the first")
}

func TestReceiveStreamCancelReadQueuesStopSendingAndUnblocksRead(t *testing.T) {
	s, sender := newTestReceiveStream()
	done := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 5))
		done <- err
	}()

	require.NoError(t, s.CancelRead(4))

	select {
	case err := <-done:
		require.ErrorIs(t, err, qerr.ErrResetByRemote)
	case <-time.After(time.Second):
		t.Fatal("CancelRead did not unblock Read")
	}

	require.Len(t, sender.control, 1)
	ss, ok := sender.control[0].(*wire.StopSendingFrame)
	require.True(t, ok)
	require.Equal(t, uint64(4), ss.ErrorCode)
}

func TestReceiveStreamCancelReadAfterFinReadIsNoOp(t *testing.T) {
	s, sender := newTestReceiveStream()
	require.NoError(t, s.handleStreamFrame(&wire.StreamFrame{Offset: 0, Fin: true, DataLenPresent: true}))

	_, err := s.Read(make([]byte, 1))
	require.ErrorIs(t, err, qerr.ErrStreamEof)

	require.NoError(t, s.CancelRead(1))
	require.Empty(t, sender.control)
}

func TestReceiveStreamCloseForShutdownUnblocksRead(t *testing.T) {
	s, _ := newTestReceiveStream()
	done := make(chan error, 1)
	go func() {
		_, err := s.Read(make([]byte, 5))
		done <- err
	}()

	testErr := qerr.NewTransportError(qerr.InternalError, "shutdown")
	s.closeForShutdown(testErr)

	select {
	case err := <-done:
		require.ErrorIs(t, err, testErr)
	case <-time.After(time.Second):
		t.Fatal("closeForShutdown did not unblock Read")
	}
}

func TestReceiveStreamHandleStreamFrameRejectsFlowControlViolation(t *testing.T) {
	sender := &recordingStreamSender{}
	connFC := flowcontrol.NewConnectionFlowController(10, 10, 0, utils.NewRTTStats(0))
	fc := flowcontrol.NewStreamFlowController(2, connFC, 10, 10, 0, utils.NewRTTStats(0))
	s := newReceiveStream(2, sender, fc)

	err := s.handleStreamFrame(&wire.StreamFrame{Offset: 0, Data: make([]byte, 20), DataLenPresent: true})
	require.Error(t, err)
}
