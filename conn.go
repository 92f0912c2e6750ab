package quiccore

import "net"

// udpConn is the UdpSocket collaborator the core consumes: a transport
// that sends and receives whole datagrams, each one exactly one QUIC
// packet's worth of bytes. *net.UDPConn satisfies it directly.
type udpConn interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
	ReadFrom(b []byte) (int, net.Addr, error)
	Close() error
	LocalAddr() net.Addr
}
