package quiccore

import (
	"net"
	"sync"

	"github.com/qcore-go/qcore/internal/protocol"
)

// closedSession is the quiescent handler a session manager installs once
// a connection has closed locally: the run loop and its streams are gone,
// but a retransmitted CONNECTION_CLOSE from the peer (it never saw ours,
// or kept sending before the close propagated) still needs a reply,
// bounded so neither side loops forever on lost CONNECTION_CLOSEs.
type closedSession struct {
	conn            udpConn
	remoteAddr      net.Addr
	connClosePacket []byte

	closeOnce sync.Once
	closeChan chan struct{}

	receivedPackets chan []byte
	counter         uint64

	perspective protocol.Perspective
	logger      Logger
}

func newClosedSession(conn udpConn, remoteAddr net.Addr, connClosePacket []byte, perspective protocol.Perspective, logger Logger) *closedSession {
	s := &closedSession{
		conn:            conn,
		remoteAddr:      remoteAddr,
		connClosePacket: connClosePacket,
		perspective:     perspective,
		logger:          logger,
		closeChan:       make(chan struct{}),
		receivedPackets: make(chan []byte, 64),
	}
	go s.run()
	return s
}

func (s *closedSession) run() {
	for {
		select {
		case p := <-s.receivedPackets:
			s.handlePacketImpl(p)
		case <-s.closeChan:
			return
		}
	}
}

// handlePacket enqueues p for processing, dropping it if the queue is
// already full rather than blocking the receive loop.
func (s *closedSession) handlePacket(p *receivedPacket) {
	select {
	case s.receivedPackets <- p.data:
	default:
	}
}

// handlePacketImpl retransmits the CONNECTION_CLOSE only for the 1st,
// 2nd, 4th, 8th, 16th, ... packet that arrives after closing, so a peer
// that keeps sending doesn't get a reply to every single packet.
func (s *closedSession) handlePacketImpl([]byte) {
	s.counter++
	for n := s.counter; n > 1; n = n / 2 {
		if n%2 != 0 {
			return
		}
	}
	if s.logger != nil && s.logger.Debug() {
		s.logger.Debugf("received %d packets after close, retransmitting CONNECTION_CLOSE", s.counter)
	}
	if _, err := s.conn.WriteTo(s.connClosePacket, s.remoteAddr); err != nil && s.logger != nil {
		s.logger.Debugf("error retransmitting CONNECTION_CLOSE: %s", err)
	}
}

// Close stops the closedSession's run loop, satisfying packetHandler.
func (s *closedSession) Close() error {
	s.closeOnce.Do(func() { close(s.closeChan) })
	return nil
}

var _ packetHandler = &closedSession{}
