package quiccore

import (
	"net"
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
)

// Dial opens a UDP socket, generates a fresh local connection id, and
// establishes a session against address without any handshake: the
// peer's first datagram from this socket carries the generated id as
// its destination connection id, and the server is expected to treat
// that as implicit connection establishment.
func Dial(address string, config *Config) (Connection, error) {
	remoteAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, err
	}
	return DialConn(conn, remoteAddr, config)
}

// DialConn is like Dial but reuses an already-bound socket, the way a
// client multiplexing several outgoing connections through one local
// port would.
func DialConn(conn udpConn, remoteAddr net.Addr, config *Config) (Connection, error) {
	config = populateConfig(config)
	localConnID, err := protocol.GenerateConnectionID(config.ConnectionIDLength)
	if err != nil {
		return nil, err
	}

	sess := newSession(conn, remoteAddr, localConnID, localConnID, protocol.PerspectiveClient, config)
	handlers := newPacketHandlerMap()
	handlers.Add(localConnID, sess)
	sess.onClosed = func(id protocol.ConnectionID, closePacket []byte, closeErr error) {
		handlers.Add(id, newClosedSession(conn, remoteAddr, closePacket, protocol.PerspectiveClient, config.Logger))
		handlers.Remove(id)
	}

	go sess.run()
	go clientReadLoop(conn, handlers, localConnID, config)
	return sess, nil
}

// clientReadLoop feeds every datagram read off conn to the one session
// (or closedSession) this client dial owns, demultiplexing is trivial
// since a single client socket only ever talks to one peer.
func clientReadLoop(conn udpConn, handlers *packetHandlerMap, localConnID protocol.ConnectionID, config *Config) {
	buf := make([]byte, protocol.MaxReceivePacketSize)
	for {
		n, remoteAddr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		handler, ok := handlers.Get(localConnID)
		if !ok {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		handler.handlePacket(&receivedPacket{remoteAddr: remoteAddr, rcvTime: time.Now(), data: data})
	}
}
