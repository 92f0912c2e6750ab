package quiccore

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
)

// Server listens on a single UDP socket and demultiplexes incoming
// datagrams by destination connection id, spawning a new session the
// first time a given destination connection id is seen.
// There is no handshake to negotiate the connection id: the server
// simply trusts whatever id accompanies a peer's first packet and
// echoes it back as its own destination id for the life of the
// connection, matching the component design's decision to treat
// CRYPTO as an opaque data pipe it never terminates itself.
type Server struct {
	conn   udpConn
	config *Config

	handlers *packetHandlerMap

	acceptMu    sync.Mutex
	acceptCond  sync.Cond
	acceptQueue []*session
	closed      bool
}

// Listen opens a UDP socket at address and returns a Server ready to
// Accept incoming sessions once Serve is running in a goroutine.
func Listen(address string, config *Config) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		conn:     conn,
		config:   populateConfig(config),
		handlers: newPacketHandlerMap(),
	}
	s.acceptCond.L = &s.acceptMu
	return s, nil
}

// LocalAddr returns the address the server's socket is bound to.
func (s *Server) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Serve reads datagrams off the socket until it is closed or a fatal
// read error occurs, demultiplexing each one to its session.
func (s *Server) Serve() error {
	buf := make([]byte, protocol.MaxReceivePacketSize)
	for {
		n, remoteAddr, err := s.conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		s.handleDatagram(data, remoteAddr)
	}
}

func (s *Server) handleDatagram(data []byte, remoteAddr net.Addr) {
	connIDLen := s.config.ConnectionIDLength
	if len(data) < 1+connIDLen {
		return
	}
	connID := protocol.ConnectionID(append([]byte(nil), data[1:1+connIDLen]...))

	handler, ok := s.handlers.Get(connID)
	if !ok {
		sess := s.newIncomingSession(connID, remoteAddr)
		if sess == nil {
			return
		}
		handler = sess
	}
	handler.handlePacket(&receivedPacket{remoteAddr: remoteAddr, rcvTime: time.Now(), data: data})
}

func (s *Server) newIncomingSession(connID protocol.ConnectionID, remoteAddr net.Addr) *session {
	s.acceptMu.Lock()
	defer s.acceptMu.Unlock()
	if s.closed {
		return nil
	}

	localConnID, err := protocol.GenerateConnectionID(s.config.ConnectionIDLength)
	if err != nil {
		return nil
	}
	sess := newSession(s.conn, remoteAddr, localConnID, connID, protocol.PerspectiveServer, s.config)
	sess.onClosed = func(_ protocol.ConnectionID, closePacket []byte, closeErr error) {
		// The session is routed by the peer's id, not its own local id.
		s.handlers.Add(connID, newClosedSession(s.conn, remoteAddr, closePacket, protocol.PerspectiveServer, s.config.Logger))
		s.handlers.Remove(connID)
	}
	if !s.handlers.Add(connID, sess) {
		return nil
	}
	go sess.run()

	if len(s.acceptQueue) < protocol.MaxAcceptQueueSize {
		s.acceptQueue = append(s.acceptQueue, sess)
		s.acceptCond.Broadcast()
	}
	return sess
}

// Accept blocks until a new incoming session is available.
func (s *Server) Accept() (Connection, error) {
	s.acceptMu.Lock()
	defer s.acceptMu.Unlock()
	for len(s.acceptQueue) == 0 {
		if s.closed {
			return nil, errors.New("server closed")
		}
		s.acceptCond.Wait()
	}
	sess := s.acceptQueue[0]
	s.acceptQueue = s.acceptQueue[1:]
	return sess, nil
}

// Close shuts every open session down and closes the underlying socket.
func (s *Server) Close() error {
	s.acceptMu.Lock()
	if s.closed {
		s.acceptMu.Unlock()
		return nil
	}
	s.closed = true
	s.acceptCond.Broadcast()
	s.acceptMu.Unlock()

	_ = s.handlers.Close()
	return s.conn.Close()
}

// Connection is the application-facing surface of an established
// session: opening and accepting streams, and tearing the whole
// connection down.
type Connection interface {
	OpenStream() (Stream, error)
	OpenStreamSync() (Stream, error)
	AcceptStream() (Stream, error)
	Close() error
}

var _ Connection = &session{}
