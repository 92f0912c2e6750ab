package quiccore

import (
	"net"
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
)

// receivedPacket is one datagram read off the socket, still undemuxed:
// the packet handler map routes it to a session (or to a closedSession
// stub, or drops it) by the connection ID parsed out of data.
type receivedPacket struct {
	remoteAddr net.Addr
	rcvTime    time.Time
	data       []byte
}

func (p *receivedPacket) Size() protocol.ByteCount { return protocol.ByteCount(len(p.data)) }
