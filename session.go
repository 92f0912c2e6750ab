package quiccore

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/qcore-go/qcore/internal/ackhandler"
	"github.com/qcore-go/qcore/internal/congestion"
	"github.com/qcore-go/qcore/internal/flowcontrol"
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/internal/utils"
	"github.com/qcore-go/qcore/internal/wire"
	"github.com/qcore-go/qcore/metrics"
)

// sendPacketsPerIteration bounds how many packets a single send_packets
// pass may produce before yielding back to the run loop, so a session
// with an enormous amount of queued data can't starve its own read side.
const sendPacketsPerIteration = 4

// session is a single QUIC connection's run loop: a cooperative fiber
// that owns all connection state and is never touched from another
// goroutine except through the narrow surfaces documented on its public
// methods (Close, OpenStream, AcceptStream, and the stream read/write
// paths, all of which hand off through channel or mutex boundaries
// scoped to exactly what crosses the fiber).
type session struct {
	conn       udpConn
	remoteAddr net.Addr

	perspective protocol.Perspective
	localConnID protocol.ConnectionID
	peerConnID  protocol.ConnectionID

	config  *Config
	logger  Logger
	clock   Clock
	metrics *metrics.Collector

	rttStats              *utils.RTTStats
	sentPacketHandler     ackhandler.SentPacketHandler
	receivedPacketHandler ackhandler.ReceivedPacketHandler
	connFlowController    flowcontrol.ConnectionController

	streams             *streamsMap
	framer              *framer
	windowUpdateQueue    *windowUpdateQueue
	retransmissionQueue *retransmissionQueue

	nextPacketNumber  protocol.PacketNumber
	largestRcvdPN     protocol.PacketNumber

	timer *sessionTimer

	receivedPackets  chan *receivedPacket
	sendingScheduled chan struct{}

	closeOnce  sync.Once
	closeChan  chan struct{}
	closeMu    sync.Mutex
	closeErr   error
	peerClosed bool

	lastConnectionClosePacket []byte

	ctx       context.Context
	ctxCancel context.CancelFunc

	// onClosed, if set, is invoked by finalize as the run loop shuts down,
	// so a server or client's packet handler map can install a
	// closedSession stub and schedule the connection id's eventual removal.
	onClosed func(localConnID protocol.ConnectionID, closePacket []byte, err error)
}

func newSession(
	conn udpConn,
	remoteAddr net.Addr,
	localConnID, peerConnID protocol.ConnectionID,
	perspective protocol.Perspective,
	config *Config,
) *session {
	config = populateConfig(config)
	rttStats := utils.NewRTTStats(config.MaxAckDelay)
	cc := congestion.New(config.CongestionControl, rttStats)
	connFC := flowcontrol.NewConnectionFlowController(
		config.InitialConnectionReceiveWindow,
		config.MaxConnectionReceiveWindow,
		protocol.DefaultInitialMaxData,
		rttStats,
	)

	s := &session{
		conn:                  conn,
		remoteAddr:            remoteAddr,
		perspective:           perspective,
		localConnID:           localConnID,
		peerConnID:            peerConnID,
		config:                config,
		logger:                config.Logger,
		clock:                 DefaultClock,
		metrics:               config.Metrics,
		rttStats:              rttStats,
		sentPacketHandler:     ackhandler.NewSentPacketHandler(perspective, rttStats, cc, config.Logger),
		receivedPacketHandler: ackhandler.NewReceivedPacketHandler(config.PacketsBeforeAck, config.MaxAckDelay),
		connFlowController:    connFC,
		windowUpdateQueue:     newWindowUpdateQueue(connFC),
		retransmissionQueue:   newRetransmissionQueue(),
		nextPacketNumber:      0,
		largestRcvdPN:         protocol.InvalidPacketNumber,
		timer:                 newSessionTimer(),
		receivedPackets:       make(chan *receivedPacket, 128),
		sendingScheduled:      make(chan struct{}, 1),
		closeChan:             make(chan struct{}),
	}
	s.framer = newFramer(nil) // streams assigned just below, framer needs streamsMap back-reference
	s.streams = newStreamsMap(perspective, s, connFC, rttStats, config.MaxIncomingStreams)
	s.framer.streams = s.streams
	s.ctx, s.ctxCancel = context.WithCancel(context.Background())
	s.metrics.ConnectionOpened(perspective.String())
	return s
}

// streamSender implementation, consumed by sendStream/receiveStream.

func (s *session) onHasStreamData(id StreamID) {
	s.framer.AddActiveStream(id)
	s.signalWrite()
}

func (s *session) queueControlFrame(f wire.Frame) {
	s.framer.QueueControlFrame(f)
	s.signalWrite()
}

func (s *session) onStreamCompleted(id StreamID) {
	s.windowUpdateQueue.RemoveStream(id)
	s.framer.removeActiveStream(id)
}

func (s *session) signalWrite() {
	select {
	case s.sendingScheduled <- struct{}{}:
	default:
	}
}

// handlePacket is invoked by a server or client's socket reader to hand
// a just-received datagram into this session's inbound queue.
func (s *session) handlePacket(p *receivedPacket) {
	select {
	case s.receivedPackets <- p:
		s.signalWrite()
	default:
		if s.logger != nil && s.logger.Debug() {
			s.logger.Debugf("dropping packet: inbound queue full")
		}
	}
}

var _ packetHandler = &session{}

// OpenStream, OpenStreamSync, AcceptStream delegate straight to the
// streams map, which owns its own synchronization independent of the
// run loop's single-threaded state mutation.

func (s *session) OpenStream() (Stream, error) {
	str, err := s.streams.OpenStream()
	if err == nil {
		s.metrics.StreamOpened()
	}
	return str, err
}

func (s *session) OpenStreamSync() (Stream, error) {
	str, err := s.streams.OpenStreamSync()
	if err == nil {
		s.metrics.StreamOpened()
	}
	return str, err
}

func (s *session) AcceptStream() (Stream, error) {
	str, err := s.streams.AcceptStream()
	if err == nil {
		s.metrics.StreamOpened()
	}
	return str, err
}

// Close tears the session down with a clean, locally-initiated
// CONNECTION_CLOSE and blocks until the run loop has fully stopped.
func (s *session) Close() error {
	s.destroy(qerr.NewTransportError(qerr.NoError, "session closed locally"))
	<-s.ctx.Done()
	return nil
}

// destroy records err (if this is the first call) and wakes the run
// loop, which performs the actual teardown on its own fiber.
func (s *session) destroy(err error) {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closeErr = err
		s.closeMu.Unlock()
		close(s.closeChan)
	})
}

func (s *session) getCloseErr() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closeErr
}

// run is the session's fiber: it loops compute-deadline / await-event /
// drain-inbound / check-loss-timeout / send-packets until destroy has
// been called, then performs teardown and returns the closing error.
func (s *session) run() error {
	defer func() {
		s.timer.Stop()
		s.ctxCancel()
	}()

	for {
		now := s.clock.Now()
		deadline, mode := s.nextDeadline(now)
		s.timer.MaybeReset(mode, deadline)

		select {
		case <-s.timer.Chan():
			s.timer.SetRead()
		case <-s.sendingScheduled:
		case <-s.closeChan:
		}

		if err := s.getCloseErr(); err != nil {
			return s.finalize(err)
		}

		s.drainReceivedPackets()

		if err := s.getCloseErr(); err != nil {
			return s.finalize(err)
		}

		now = s.clock.Now()
		if to := s.sentPacketHandler.GetLossDetectionTimeout(); !to.IsZero() && !now.Before(to) {
			inFlightBefore := s.sentPacketHandler.BytesInFlight()
			if err := s.sentPacketHandler.OnLossDetectionTimeout(now); err != nil {
				s.destroy(err)
				return s.finalize(err)
			}
			if s.sentPacketHandler.BytesInFlight() < inFlightBefore {
				s.metrics.PacketLost()
			}
		}

		if err := s.sendPackets(s.clock.Now()); err != nil {
			s.destroy(err)
			return s.finalize(err)
		}
	}
}

func (s *session) drainReceivedPackets() {
	for {
		select {
		case p := <-s.receivedPackets:
			s.handleOnePacket(p)
			if err := s.getCloseErr(); err != nil {
				return
			}
		default:
			return
		}
	}
}

// nextDeadline computes the run loop's next wake-up time and which
// timer source produced it, per the component design's
// min(now+30ms, ack_alarm, loss_detection_timeout, pacing_deadline).
func (s *session) nextDeadline(now time.Time) (time.Time, timerMode) {
	deadline := now.Add(30 * time.Millisecond)
	mode := timerModeIdle
	if t := s.receivedPacketHandler.GetAlarmTimeout(); !t.IsZero() && t.Before(deadline) {
		deadline, mode = t, timerModeAckAlarm
	}
	if t := s.sentPacketHandler.GetLossDetectionTimeout(); !t.IsZero() && t.Before(deadline) {
		deadline, mode = t, timerModeLossDetection
	}
	if t := s.sentPacketHandler.TimeUntilSend(); !t.IsZero() && t.Before(deadline) {
		deadline, mode = t, timerModePacing
	}
	return deadline, mode
}

func (s *session) finalize(err error) error {
	s.streams.closeWithError(err)
	if !s.peerClosed {
		s.sendConnectionClose(err)
	}
	s.metrics.ConnectionClosed(s.perspective.String())
	if s.onClosed != nil {
		s.onClosed(s.localConnID, s.lastConnectionClosePacket, err)
	}
	return err
}

func (s *session) sendConnectionClose(err error) {
	frame := &wire.ConnectionCloseFrame{ErrorCode: uint64(qerr.InternalError)}
	switch e := err.(type) {
	case *qerr.ApplicationError:
		frame = &wire.ConnectionCloseFrame{IsApplicationError: true, ErrorCode: e.ErrorCode, ReasonPhrase: e.Message}
	case *qerr.TransportError:
		frame = &wire.ConnectionCloseFrame{ErrorCode: uint64(e.ErrorCode), ReasonPhrase: e.Message}
	}

	pnLen := protocol.GetPacketNumberLengthForHeader(s.nextPacketNumber, s.sentPacketHandler.LargestAcked())
	b := wire.AppendShortHeader(nil, s.peerConnID, protocol.KeyPhaseZero, pnLen)
	b = wire.AppendPacketNumber(b, s.nextPacketNumber, pnLen)
	b, appendErr := frame.Append(b)
	if appendErr != nil {
		return
	}
	s.nextPacketNumber++
	s.lastConnectionClosePacket = b
	if _, writeErr := s.conn.WriteTo(b, s.remoteAddr); writeErr != nil && s.logger != nil {
		s.logger.Debugf("error sending CONNECTION_CLOSE: %s", writeErr)
	}
}

// handleOnePacket parses one datagram's short header and frames and
// dispatches each frame, per the component design's handle_packet.
func (s *session) handleOnePacket(p *receivedPacket) {
	kp, pnLen, hdrLen, err := wire.ParseShortHeader(p.data, s.localConnID.Len())
	if err != nil {
		if s.logger != nil && s.logger.Debug() {
			s.logger.Debugf("dropping packet: %s", err)
		}
		return
	}
	_ = kp
	if len(p.data) < hdrLen+int(pnLen) {
		return
	}
	truncated, err := wire.ReadPacketNumber(p.data[hdrLen:], pnLen)
	if err != nil {
		return
	}
	largest := s.largestRcvdPN
	if largest == protocol.InvalidPacketNumber {
		largest = 0
	}
	pn := protocol.DecodePacketNumber(pnLen, largest, truncated)
	if s.receivedPacketHandler.IsPotentiallyDuplicate(pn) {
		return
	}

	payload := p.data[hdrLen+int(pnLen):]
	frames, err := wire.ParseFrames(payload)
	if err != nil {
		if s.logger != nil && s.logger.Debug() {
			s.logger.Debugf("dropping packet %d: %s", pn, err)
		}
		return
	}
	if pn > s.largestRcvdPN {
		s.largestRcvdPN = pn
	}
	s.metrics.PacketReceived(len(p.data))

	isAckEliciting := wire.HasAckEliciting(frames)
	var dispatchErr error
	for _, f := range frames {
		if dispatchErr = s.handleFrame(f, p.rcvTime); dispatchErr != nil {
			break
		}
	}
	if err := s.receivedPacketHandler.ReceivedPacket(pn, p.rcvTime, isAckEliciting); err != nil && dispatchErr == nil {
		dispatchErr = err
	}
	if dispatchErr != nil {
		s.destroy(dispatchErr)
	}
}

func (s *session) handleFrame(f wire.Frame, rcvTime time.Time) error {
	switch frame := f.(type) {
	case *wire.StreamFrame:
		str, err := s.streams.getOrOpenPeerStream(frame.StreamID)
		if err != nil || str == nil {
			return err
		}
		if err := str.receiveStream.handleStreamFrame(frame); err != nil {
			return err
		}
		s.windowUpdateQueue.Add(str)
		return nil
	case *wire.AckFrame:
		err := s.sentPacketHandler.ReceivedAck(frame, rcvTime)
		s.metrics.UpdatedRTT(s.rttStats.SmoothedRTT().Seconds())
		return err
	case *wire.MaxDataFrame:
		s.connFlowController.UpdateSendWindow(frame.MaximumData)
		s.streams.handleMaxDataFrame()
		return nil
	case *wire.MaxStreamDataFrame:
		if str := s.streams.getStream(frame.StreamID); str != nil {
			str.sendStream.handleMaxStreamDataFrame(frame)
		}
		return nil
	case *wire.MaxStreamsFrame:
		s.streams.handleMaxStreamsFrame(frame.MaxStreamNum)
		return nil
	case *wire.DataBlockedFrame, *wire.StreamDataBlockedFrame, *wire.StreamsBlockedFrame:
		// Informational: the sender already schedules its own window
		// updates via windowUpdateQueue on the normal auto-tuning
		// schedule, so there is no separate forced response to compose.
		if s.logger != nil && s.logger.Debug() {
			s.logger.Debugf("received blocked signal: %#v", frame)
		}
		return nil
	case *wire.StopSendingFrame:
		if str := s.streams.getStream(frame.StreamID); str != nil {
			str.sendStream.handleStopSendingFrame(frame)
		}
		return nil
	case *wire.ResetStreamFrame:
		str, err := s.streams.getOrOpenPeerStream(frame.StreamID)
		if err != nil || str == nil {
			return err
		}
		return str.receiveStream.handleRstStreamFrame(frame)
	case *wire.ConnectionCloseFrame:
		s.handleConnectionClose(frame)
		return nil
	default:
		// CRYPTO, NEW_TOKEN, NEW_CONNECTION_ID, RETIRE_CONNECTION_ID,
		// PATH_CHALLENGE/RESPONSE, HANDSHAKE_DONE, PING: opaque to this
		// core, which owns neither the handshake nor path migration.
		return nil
	}
}

func (s *session) handleConnectionClose(f *wire.ConnectionCloseFrame) {
	var err error
	if f.IsApplicationError {
		err = &qerr.ApplicationError{ErrorCode: f.ErrorCode, Message: f.ReasonPhrase, Remote: true}
	} else {
		err = &qerr.TransportError{ErrorCode: qerr.TransportErrorCode(f.ErrorCode), Message: f.ReasonPhrase, Remote: true}
	}
	s.peerClosed = true
	s.destroy(err)
}

// sendPackets produces packets until send_mode forbids it, congestion
// denies with nothing left to acknowledge, the inbound queue has new
// work waiting, or the per-iteration bound is reached.
func (s *session) sendPackets(now time.Time) error {
	for i := 0; i < sendPacketsPerIteration; i++ {
		mode := s.sentPacketHandler.SendMode(now)
		if mode == ackhandler.SendNone {
			return nil
		}

		ack := s.receivedPacketHandler.GetAckFrame(now, false)
		if mode == ackhandler.SendAck && ack == nil {
			return nil
		}
		if mode != ackhandler.SendAck && !s.sentPacketHandler.HasPacingBudget(now) {
			return nil
		}

		onlyAck := mode == ackhandler.SendAck
		b, sent, err := s.composeNextPacket(now, ack, onlyAck)
		if err != nil {
			return err
		}
		if !sent {
			return nil
		}
		if _, err := s.conn.WriteTo(b, s.remoteAddr); err != nil {
			return err
		}
		s.metrics.PacketSent(len(b))

		if len(s.receivedPackets) > 0 {
			return nil
		}
	}
	return nil
}

// composeNextPacket assembles one packet's payload: an optional ACK,
// then the retransmission queue, then FIFO control frames, then a
// round robin of active streams, per the component design's
// compose_next_packet. onlyAck restricts the packet to the ACK alone,
// used when congestion forbids new data but there is ACK information
// owed.
func (s *session) composeNextPacket(now time.Time, ack *wire.AckFrame, onlyAck bool) ([]byte, bool, error) {
	pn := s.nextPacketNumber
	pnLen := protocol.GetPacketNumberLengthForHeader(pn, s.sentPacketHandler.LargestAcked())
	headerLen := protocol.ByteCount(1+s.peerConnID.Len()) + protocol.ByteCount(pnLen)
	maxPayload := protocol.DefaultMaxDatagramSize
	if headerLen >= maxPayload {
		return nil, false, nil
	}
	remaining := maxPayload - headerLen

	var frames []*ackhandler.Frame
	var largestAcked protocol.PacketNumber = protocol.InvalidPacketNumber
	if ack != nil && ack.Length() <= remaining {
		frames = append(frames, &ackhandler.Frame{Frame: ack})
		remaining -= ack.Length()
		largestAcked = ack.LargestAcked()
	}

	if !onlyAck {
		for {
			f := s.retransmissionQueue.GetFrame(remaining)
			if f == nil {
				break
			}
			wrapped := s.retransmissionQueue.AckHandler(f)
			frames = append(frames, wrapped)
			remaining -= f.Length()
		}

		for _, wf := range s.windowUpdateQueue.QueuedFrames() {
			if wf.Length() > remaining {
				continue
			}
			frames = append(frames, s.retransmissionQueue.AckHandler(wf))
			remaining -= wf.Length()
		}

		var ctrlLen protocol.ByteCount
		frames, ctrlLen = s.framer.AppendControlFrames(frames, remaining, s.retransmissionQueue.AckHandler)
		remaining -= ctrlLen

		frames = s.framer.AppendStreamFrames(frames, remaining)
	}

	if len(frames) == 0 {
		return nil, false, nil
	}

	b := wire.AppendShortHeader(nil, s.peerConnID, protocol.KeyPhaseZero, pnLen)
	b = wire.AppendPacketNumber(b, pn, pnLen)
	for _, f := range frames {
		var err error
		b, err = f.Frame.Append(b)
		if err != nil {
			return nil, false, err
		}
	}

	s.nextPacketNumber++
	s.sentPacketHandler.SentPacket(&ackhandler.Packet{
		PacketNumber: pn,
		Frames:       frames,
		LargestAcked: largestAcked,
		Length:       protocol.ByteCount(len(b)),
		SendTime:     now,
	})
	return b, true, nil
}
