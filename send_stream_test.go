package quiccore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qcore-go/qcore/internal/flowcontrol"
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/internal/utils"
	"github.com/qcore-go/qcore/internal/wire"
)

func newTestSendStream(sendWindow protocol.ByteCount) (*sendStream, *recordingStreamSender) {
	sender := &recordingStreamSender{}
	connFC := flowcontrol.NewConnectionFlowController(100000, 100000, 100000, utils.NewRTTStats(0))
	fc := flowcontrol.NewStreamFlowController(1, connFC, 100000, 100000, sendWindow, utils.NewRTTStats(0))
	return newSendStream(1, sender, fc), sender
}

func TestSendStreamWriteBuffersAndReturnsOnceDrained(t *testing.T) {
	s, sender := newTestSendStream(100000)

	done := make(chan struct{})
	var n int
	var err error
	go func() {
		n, err = s.Write([]byte("hello"))
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(sender.activeStreams) > 0
	}, time.Second, time.Millisecond)

	frame := s.popStreamFrame(1000)
	require.NotNil(t, frame)
	sf := frame.Frame.(*wire.StreamFrame)
	require.Equal(t, []byte("hello"), sf.Data)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Write never returned after data was drained")
	}
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

func TestSendStreamWriteOnClosedStreamFails(t *testing.T) {
	s, _ := newTestSendStream(100000)
	require.NoError(t, s.Close())

	_, err := s.Write([]byte("x"))
	require.ErrorIs(t, err, qerr.ErrWriteOnClosedStream)
}

func TestSendStreamWriteEmptyIsNoOp(t *testing.T) {
	s, sender := newTestSendStream(100000)
	n, err := s.Write(nil)
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, sender.activeStreams)
}

func TestSendStreamWriteRespectsDeadline(t *testing.T) {
	s, _ := newTestSendStream(0) // flow control blocks all data
	require.NoError(t, s.SetWriteDeadline(time.Now().Add(20 * time.Millisecond)))

	_, err := s.Write([]byte("hello"))
	require.ErrorIs(t, err, qerr.ErrTimeout)
}

func TestSendStreamWriteAlreadyPastDeadlineFailsImmediately(t *testing.T) {
	s, _ := newTestSendStream(100000)
	require.NoError(t, s.SetWriteDeadline(time.Now().Add(-time.Second)))

	_, err := s.Write([]byte("hello"))
	require.ErrorIs(t, err, qerr.ErrTimeout)
}

func TestSendStreamPopStreamFrameNilWhenNothingToSend(t *testing.T) {
	s, _ := newTestSendStream(100000)
	require.Nil(t, s.popStreamFrame(1000))
}

func TestSendStreamPopStreamFrameRespectsFlowControlWindow(t *testing.T) {
	s, _ := newTestSendStream(3)
	s.dataForWriting = []byte("hello")

	frame := s.popStreamFrame(1000)
	require.NotNil(t, frame)
	sf := frame.Frame.(*wire.StreamFrame)
	require.Equal(t, []byte("hel"), sf.Data)
	require.Equal(t, []byte("lo"), s.dataForWriting)
}

func TestSendStreamPopStreamFrameSetsFinOnClose(t *testing.T) {
	s, _ := newTestSendStream(100000)
	require.NoError(t, s.Close())

	frame := s.popStreamFrame(1000)
	require.NotNil(t, frame)
	sf := frame.Frame.(*wire.StreamFrame)
	require.True(t, sf.Fin)
	require.True(t, s.finSent)
}

func TestSendStreamOnFrameAckedWithFinCompletesStream(t *testing.T) {
	s, sender := newTestSendStream(100000)
	s.onFrameAcked(&wire.StreamFrame{Fin: true})
	require.Contains(t, sender.completed, StreamID(1))
}

func TestSendStreamOnFrameAckedWithoutFinDoesNotComplete(t *testing.T) {
	s, sender := newTestSendStream(100000)
	s.onFrameAcked(&wire.StreamFrame{Fin: false})
	require.Empty(t, sender.completed)
}

func TestSendStreamQueueRetransmissionResendsExactBytes(t *testing.T) {
	s, sender := newTestSendStream(100000)
	lost := &wire.StreamFrame{StreamID: 1, Offset: 0, Data: []byte("lost"), DataLenPresent: true}
	s.queueRetransmission(lost)

	require.Contains(t, sender.activeStreams, StreamID(1))
	frame := s.popStreamFrame(1000)
	require.NotNil(t, frame)
	require.Same(t, lost, frame.Frame.(*wire.StreamFrame))
}

func TestSendStreamPopRetransmissionSplitsOversizedFrame(t *testing.T) {
	s, _ := newTestSendStream(100000)
	lost := &wire.StreamFrame{StreamID: 1, Offset: 0, Data: []byte("0123456789"), DataLenPresent: true}
	s.retransmissionQueue = append(s.retransmissionQueue, lost)

	head := s.popStreamFrame(2)
	require.Nil(t, head, "too small even for a one-byte split head plus header")

	head = s.popStreamFrame(8)
	require.NotNil(t, head)
	hf := head.Frame.(*wire.StreamFrame)
	require.Less(t, len(hf.Data), 10)
	require.Len(t, s.retransmissionQueue, 1, "the tail stays queued")
}

func TestSendStreamCancelWriteQueuesResetStreamAndUnblocksWrite(t *testing.T) {
	s, sender := newTestSendStream(0)
	done := make(chan error, 1)
	go func() {
		_, err := s.Write([]byte("x"))
		done <- err
	}()

	require.NoError(t, s.CancelWrite(7))

	select {
	case err := <-done:
		require.ErrorIs(t, err, qerr.ErrCancelWrite)
	case <-time.After(time.Second):
		t.Fatal("CancelWrite did not unblock Write")
	}

	require.Len(t, sender.control, 1)
	rst, ok := sender.control[0].(*wire.ResetStreamFrame)
	require.True(t, ok)
	require.Equal(t, uint64(7), rst.ErrorCode)
}

func TestSendStreamCancelWriteAfterCloseFails(t *testing.T) {
	s, _ := newTestSendStream(100000)
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.CancelWrite(1), qerr.ErrWriteOnClosedStream)
}

func TestSendStreamCancelWriteIsIdempotent(t *testing.T) {
	s, sender := newTestSendStream(100000)
	require.NoError(t, s.CancelWrite(1))
	require.NoError(t, s.CancelWrite(2))
	require.Len(t, sender.control, 1, "a second cancel must not re-queue RESET_STREAM")
}

func TestSendStreamHandleStopSendingFrameCancelsWithResetByRemote(t *testing.T) {
	s, _ := newTestSendStream(100000)
	s.handleStopSendingFrame(&wire.StopSendingFrame{StreamID: 1, ErrorCode: 3})

	_, err := s.Write([]byte("x"))
	require.ErrorIs(t, err, qerr.ErrResetByRemote)
}

func TestSendStreamHandleMaxStreamDataFrameRaisesWindow(t *testing.T) {
	s, _ := newTestSendStream(0)
	s.handleMaxStreamDataFrame(&wire.MaxStreamDataFrame{StreamID: 1, MaximumStreamData: 500})
	require.Equal(t, protocol.ByteCount(500), s.flowController.SendWindowSize())
}

func TestSendStreamHandleMaxStreamDataFrameReactivatesBlockedWrite(t *testing.T) {
	s, sender := newTestSendStream(0)
	s.dataForWriting = []byte("pending")

	s.handleMaxStreamDataFrame(&wire.MaxStreamDataFrame{StreamID: 1, MaximumStreamData: 500})
	require.Contains(t, sender.activeStreams, StreamID(1), "raising the window must re-queue the stream for sending")
}

func TestSendStreamHandleMaxStreamDataFrameWithNothingPendingDoesNotActivate(t *testing.T) {
	s, sender := newTestSendStream(0)
	s.handleMaxStreamDataFrame(&wire.MaxStreamDataFrame{StreamID: 1, MaximumStreamData: 500})
	require.Empty(t, sender.activeStreams)
}

func TestSendStreamCloseForShutdownUnblocksWriteWithoutSignalingPeer(t *testing.T) {
	s, sender := newTestSendStream(0)
	done := make(chan error, 1)
	go func() {
		_, err := s.Write([]byte("x"))
		done <- err
	}()

	testErr := qerr.NewTransportError(qerr.InternalError, "shutdown")
	s.closeForShutdown(testErr)

	select {
	case err := <-done:
		require.ErrorIs(t, err, testErr)
	case <-time.After(time.Second):
		t.Fatal("closeForShutdown did not unblock Write")
	}
	require.Empty(t, sender.control, "closeForShutdown never sends RESET_STREAM")
	require.True(t, s.finished())
}

func TestSendStreamFinishedReflectsState(t *testing.T) {
	s, _ := newTestSendStream(100000)
	require.False(t, s.finished())

	require.NoError(t, s.Close())
	require.False(t, s.finished(), "finished requires the FIN to have actually been sent")

	frame := s.popStreamFrame(1000)
	require.NotNil(t, frame)
	require.True(t, s.finished())
}
