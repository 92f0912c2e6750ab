package quiccore

import (
	"sync"
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
)

// packetHandler is the common surface a server or client multiplexer
// needs from whatever it keyed by connection ID: a live session, or a
// closedSession answering retransmitted CONNECTION_CLOSEs.
type packetHandler interface {
	handlePacket(*receivedPacket)
	Close() error
}

// packetHandlerMap demultiplexes datagrams arriving on a shared UDP
// socket by connection ID. The server uses one to store sessions
// keyed by the destination connection ID of the peer's first packet;
// a client dialing
// through a shared socket uses one to store its own outgoing
// sessions keyed by the connection ID it generated.
type packetHandlerMap struct {
	mutex sync.RWMutex

	handlers map[string]packetHandler
	closed   bool

	deleteClosedSessionsAfter time.Duration
}

func newPacketHandlerMap() *packetHandlerMap {
	return &packetHandlerMap{
		handlers:                  make(map[string]packetHandler),
		deleteClosedSessionsAfter: protocol.ClosedSessionDeleteTimeout,
	}
}

func (h *packetHandlerMap) Get(id protocol.ConnectionID) (packetHandler, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	handler, ok := h.handlers[string(id)]
	return handler, ok
}

func (h *packetHandlerMap) Add(id protocol.ConnectionID, handler packetHandler) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return false
	}
	h.handlers[string(id)] = handler
	return true
}

// Remove leaves id's current handler in place and forgets the connection
// ID entirely after deleteClosedSessionsAfter: the caller installs a
// closedSession at id first if it still wants retransmitted
// CONNECTION_CLOSEs answered in the interim.
func (h *packetHandlerMap) Remove(id protocol.ConnectionID) {
	key := string(id)
	time.AfterFunc(h.deleteClosedSessionsAfter, func() {
		h.mutex.Lock()
		delete(h.handlers, key)
		h.mutex.Unlock()
	})
}

func (h *packetHandlerMap) Close() error {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return nil
	}
	h.closed = true
	handlers := make([]packetHandler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		if handler != nil {
			handlers = append(handlers, handler)
		}
	}
	h.mutex.Unlock()

	var wg sync.WaitGroup
	wg.Add(len(handlers))
	for _, handler := range handlers {
		go func(handler packetHandler) {
			defer wg.Done()
			_ = handler.Close()
		}(handler)
	}
	wg.Wait()
	return nil
}
