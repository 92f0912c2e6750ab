package quiccore

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/internal/wire"
)

func newTestSession(t *testing.T, perspective protocol.Perspective) (*session, *fakeUDPConn) {
	t.Helper()
	conn := &fakeUDPConn{}
	remote := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4242}
	localConnID := protocol.ConnectionID("local-id")
	peerConnID := protocol.ConnectionID("peer-id0")
	s := newSession(conn, remote, localConnID, peerConnID, perspective, &Config{})
	return s, conn
}

func TestNewSessionConstructsComponents(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	require.NotNil(t, s.streams)
	require.NotNil(t, s.framer)
	require.Same(t, s.streams, s.framer.streams)
	require.NotNil(t, s.windowUpdateQueue)
	require.NotNil(t, s.retransmissionQueue)
	require.Equal(t, protocol.InvalidPacketNumber, s.largestRcvdPN)
	select {
	case <-s.ctx.Done():
		t.Fatal("session context should not be done right after construction")
	default:
	}
}

func TestSessionOnHasStreamDataMarksActiveAndSignals(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	s.onHasStreamData(4)
	require.Contains(t, s.framer.activeStreams, protocol.StreamID(4))
	select {
	case <-s.sendingScheduled:
	default:
		t.Fatal("expected sendingScheduled to be signalled")
	}
}

func TestSessionQueueControlFrameQueuesAndSignals(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	f := &wire.PingFrame{}
	s.queueControlFrame(f)
	require.Len(t, s.framer.controlFrames, 1)
	select {
	case <-s.sendingScheduled:
	default:
		t.Fatal("expected sendingScheduled to be signalled")
	}
}

func TestSessionOnStreamCompletedRemovesFromQueues(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	str, err := s.streams.OpenStream()
	require.NoError(t, err)
	id := str.(*bidiStream).StreamID()

	s.windowUpdateQueue.Add(str.(*bidiStream))
	s.framer.AddActiveStream(id)

	s.onStreamCompleted(id)
	require.NotContains(t, s.framer.activeStreams, id)
	frames := s.windowUpdateQueue.QueuedFrames()
	require.Empty(t, frames)
}

func TestSessionHandlePacketEnqueuesAndDropsWhenFull(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	s.receivedPackets = make(chan *receivedPacket, 1)

	s.handlePacket(&receivedPacket{data: []byte("a")})
	require.Len(t, s.receivedPackets, 1)

	// Second packet finds the queue full and is dropped, not blocked.
	done := make(chan struct{})
	go func() {
		s.handlePacket(&receivedPacket{data: []byte("b")})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handlePacket blocked instead of dropping")
	}
	require.Len(t, s.receivedPackets, 1)
}

func buildShortHeaderPacket(t *testing.T, destConnID protocol.ConnectionID, pn protocol.PacketNumber, frames ...wire.Frame) []byte {
	t.Helper()
	pnLen := protocol.PacketNumberLengthForHeader(pn)
	b := wire.AppendShortHeader(nil, destConnID, protocol.KeyPhaseZero, pnLen)
	b = wire.AppendPacketNumber(b, pn, pnLen)
	for _, f := range frames {
		var err error
		b, err = f.Append(b)
		require.NoError(t, err)
	}
	return b
}

func TestSessionHandleOnePacketDispatchesStreamFrameAndOpensPeerStream(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	sid := protocol.FirstStreamID(protocol.PerspectiveClient)

	data := buildShortHeaderPacket(t, s.localConnID, 0, &wire.StreamFrame{
		StreamID:       sid,
		Data:           []byte("hello"),
		DataLenPresent: true,
	})

	s.handleOnePacket(&receivedPacket{data: data, rcvTime: time.Now()})

	str := s.streams.getStream(sid)
	require.NotNil(t, str)

	buf := make([]byte, 5)
	n, err := str.receiveStream.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf[:n]))
	require.Equal(t, protocol.PacketNumber(0), s.largestRcvdPN)
}

func TestSessionHandleOnePacketIgnoresMalformedData(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	s.handleOnePacket(&receivedPacket{data: []byte{0x00}, rcvTime: time.Now()})
	require.Equal(t, protocol.InvalidPacketNumber, s.largestRcvdPN)
}

func TestSessionHandleFrameMaxData(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	// The window starts at DefaultInitialMaxData and never shrinks, so the
	// update has to offer more than that.
	err := s.handleFrame(&wire.MaxDataFrame{MaximumData: 1000000}, time.Now())
	require.NoError(t, err)
	require.Equal(t, protocol.ByteCount(1000000), s.connFlowController.SendWindowSize())
}

func TestSessionHandleFrameMaxDataReactivatesConnectionBlockedStream(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	str, err := s.streams.OpenStream()
	require.NoError(t, err)
	bs := str.(*bidiStream)
	bs.sendStream.dataForWriting = []byte("pending")
	require.NotContains(t, s.framer.activeStreams, bs.StreamID(), "not yet marked active before the window update")

	err = s.handleFrame(&wire.MaxDataFrame{MaximumData: 100000}, time.Now())
	require.NoError(t, err)
	require.Contains(t, s.framer.activeStreams, bs.StreamID())
}

func TestSessionHandleFrameMaxStreamData(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	str, err := s.streams.OpenStream()
	require.NoError(t, err)
	id := str.(*bidiStream).StreamID()

	err = s.handleFrame(&wire.MaxStreamDataFrame{StreamID: id, MaximumStreamData: 999999}, time.Now())
	require.NoError(t, err)
}

func TestSessionHandleFrameMaxStreams(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveClient)
	s.streams.outgoingLimit = 1
	err := s.handleFrame(&wire.MaxStreamsFrame{MaxStreamNum: 10}, time.Now())
	require.NoError(t, err)
	require.Equal(t, protocol.StreamNum(10), s.streams.outgoingLimit)
}

func TestSessionHandleFrameBlockedIsInformational(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	err := s.handleFrame(&wire.DataBlockedFrame{MaximumData: 1}, time.Now())
	require.NoError(t, err)
}

func TestSessionHandleFrameStopSending(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveClient)
	str, err := s.streams.OpenStream()
	require.NoError(t, err)
	id := str.(*bidiStream).StreamID()

	err = s.handleFrame(&wire.StopSendingFrame{StreamID: id, ErrorCode: 7}, time.Now())
	require.NoError(t, err)

	_, werr := str.Write([]byte("x"))
	require.ErrorIs(t, werr, qerr.ErrResetByRemote)
}

func TestSessionHandleFrameResetStream(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	sid := protocol.FirstStreamID(protocol.PerspectiveClient)

	err := s.handleFrame(&wire.ResetStreamFrame{StreamID: sid, ErrorCode: 3, FinalSize: 0}, time.Now())
	require.NoError(t, err)

	str := s.streams.getStream(sid)
	require.NotNil(t, str)
	_, rerr := str.Read(make([]byte, 1))
	require.ErrorIs(t, rerr, qerr.ErrResetByRemote)
}

func TestSessionHandleFrameConnectionCloseMarksPeerClosed(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	err := s.handleFrame(&wire.ConnectionCloseFrame{ErrorCode: uint64(qerr.InternalError), ReasonPhrase: "bye"}, time.Now())
	require.NoError(t, err)
	require.True(t, s.peerClosed)
	require.Error(t, s.getCloseErr())
}

func TestSessionHandleFrameUnknownFrameIsNoOp(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	err := s.handleFrame(&wire.PingFrame{}, time.Now())
	require.NoError(t, err)
}

func TestSessionComposeNextPacketWithControlFrameOnly(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	s.queueControlFrame(&wire.PingFrame{})

	b, sent, err := s.composeNextPacket(time.Now(), nil, false)
	require.NoError(t, err)
	require.True(t, sent)
	require.NotEmpty(t, b)
	require.Equal(t, protocol.PacketNumber(1), s.nextPacketNumber)
}

func TestSessionComposeNextPacketEmptyReturnsNotSent(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	_, sent, err := s.composeNextPacket(time.Now(), nil, false)
	require.NoError(t, err)
	require.False(t, sent)
	require.Equal(t, protocol.PacketNumber(0), s.nextPacketNumber)
}

func TestSessionComposeNextPacketOnlyAckSkipsControlFrames(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	s.queueControlFrame(&wire.PingFrame{})
	ack := &wire.AckFrame{AckRanges: []wire.AckRange{{Smallest: 0, Largest: 0}}}

	b, sent, err := s.composeNextPacket(time.Now(), ack, true)
	require.NoError(t, err)
	require.True(t, sent)
	require.NotEmpty(t, b)
	// The control frame is still queued since onlyAck skipped it.
	require.Len(t, s.framer.controlFrames, 1)
}

func TestSessionSendConnectionCloseWritesPacket(t *testing.T) {
	s, conn := newTestSession(t, protocol.PerspectiveServer)
	s.sendConnectionClose(qerr.NewTransportError(qerr.NoError, "closing"))
	require.Equal(t, 1, conn.sentCount())
	require.NotEmpty(t, s.lastConnectionClosePacket)
}

func TestSessionFinalizeClosesStreamsAndReportsClosed(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	str, err := s.streams.OpenStream()
	require.NoError(t, err)

	var closedID protocol.ConnectionID
	var closedErr error
	s.onClosed = func(id protocol.ConnectionID, _ []byte, err error) {
		closedID = id
		closedErr = err
	}

	testErr := qerr.NewTransportError(qerr.NoError, "done")
	s.finalize(testErr)

	_, werr := str.Write([]byte("x"))
	require.ErrorIs(t, werr, testErr)
	require.Equal(t, s.localConnID, closedID)
	require.ErrorIs(t, closedErr, testErr)
}

func TestSessionCloseStopsRunLoop(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	go func() { _ = s.run() }()

	require.NoError(t, s.Close())
	select {
	case <-s.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not shut down")
	}
}

func TestSessionOpenStreamAndOpenStreamSyncReturnStreams(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveClient)
	str, err := s.OpenStream()
	require.NoError(t, err)
	require.NotNil(t, str)

	str2, err := s.OpenStreamSync()
	require.NoError(t, err)
	require.NotNil(t, str2)
}

func TestSessionAcceptStreamReturnsPeerInitiated(t *testing.T) {
	s, _ := newTestSession(t, protocol.PerspectiveServer)
	sid := protocol.FirstStreamID(protocol.PerspectiveClient)
	_, err := s.streams.getOrOpenPeerStream(sid)
	require.NoError(t, err)

	str, err := s.AcceptStream()
	require.NoError(t, err)
	require.Equal(t, sid, str.(*bidiStream).StreamID())
}
