package quiccore

import (
	"sync"

	"github.com/qcore-go/qcore/internal/flowcontrol"
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/internal/utils"
	"github.com/qcore-go/qcore/internal/wire"
)

// bidiStream bundles a stream's two halves plus the shared flow
// controller, matching the wire-level fact that a bidirectional stream
// id addresses one flow-controlled entity with two independent
// directions.
type bidiStream struct {
	*sendStream
	*receiveStream
}

func (s *bidiStream) StreamID() StreamID { return s.sendStream.StreamID() }

// streamsMap tracks every open stream this session knows about, on both
// the locally-initiated and peer-initiated side, following the
// outgoing/incoming split the component design describes: outgoing
// streams track a peer-raised limit and emit STREAMS_BLOCKED, while
// incoming streams materialise lazily up to a gap and wake Accept.
type streamsMap struct {
	mutex sync.Mutex
	cond  sync.Cond

	perspective protocol.Perspective
	sender      streamSender
	connFC      flowcontrol.ConnectionController

	streams  map[protocol.StreamID]*bidiStream
	rttStats *utils.RTTStats

	nextOutgoing    protocol.StreamNum
	outgoingLimit   protocol.StreamNum
	blockedOutgoing bool

	highestIncoming protocol.StreamNum
	incomingLimit   protocol.StreamNum
	acceptQueue     []protocol.StreamID

	closeErr error
}

func newStreamsMap(perspective protocol.Perspective, sender streamSender, connFC flowcontrol.ConnectionController, rttStats *utils.RTTStats, maxIncoming int64) *streamsMap {
	m := &streamsMap{
		perspective:   perspective,
		sender:        sender,
		connFC:        connFC,
		rttStats:      rttStats,
		streams:       make(map[protocol.StreamID]*bidiStream),
		nextOutgoing:  1,
		outgoingLimit: protocol.StreamNum(protocol.DefaultMaxIncomingStreams),
		incomingLimit: protocol.StreamNum(maxIncoming),
	}
	m.cond.L = &m.mutex
	return m
}

func (m *streamsMap) newBidiStream(id protocol.StreamID) *bidiStream {
	streamFC := flowcontrol.NewStreamFlowController(
		id,
		m.connFC,
		protocol.DefaultInitialMaxStreamData,
		protocol.DefaultMaxReceiveStreamFlowControlWindow,
		protocol.DefaultInitialMaxStreamData,
		m.rttStats,
	)
	return &bidiStream{
		sendStream:    newSendStream(id, m.sender, streamFC),
		receiveStream: newReceiveStream(id, m.sender, streamFC),
	}
}

// OpenStream allocates the next locally-initiated bidirectional stream,
// or returns an error if the peer's MAX_STREAMS credit is exhausted.
func (m *streamsMap) OpenStream() (Stream, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closeErr != nil {
		return nil, m.closeErr
	}
	return m.openStreamImpl()
}

// OpenStreamSync blocks until a stream can be opened or the session closes.
func (m *streamsMap) OpenStreamSync() (Stream, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for {
		if m.closeErr != nil {
			return nil, m.closeErr
		}
		s, err := m.openStreamImpl()
		if err == nil {
			return s, nil
		}
		m.cond.Wait()
	}
}

func (m *streamsMap) openStreamImpl() (Stream, error) {
	if m.nextOutgoing >= m.outgoingLimit {
		if !m.blockedOutgoing {
			m.blockedOutgoing = true
			m.sender.queueControlFrame(&wire.StreamsBlockedFrame{Type: wire.StreamsTypeBidi, StreamLimit: m.outgoingLimit})
		}
		return nil, qerr.NewTransportError(qerr.StreamLimitErrorCode, "too many open streams")
	}
	id := protocol.StreamIDForNum(m.nextOutgoing, m.perspective)
	s := m.newBidiStream(id)
	m.streams[id] = s
	m.nextOutgoing++
	return s, nil
}

// handleMaxStreamsFrame raises the peer-granted outgoing stream limit and
// wakes anyone blocked in OpenStreamSync.
func (m *streamsMap) handleMaxStreamsFrame(limit protocol.StreamNum) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if limit > m.outgoingLimit {
		m.outgoingLimit = limit
		m.blockedOutgoing = false
		m.cond.Broadcast()
	}
}

// getOrOpenPeerStream returns the peer-initiated stream for id, opening
// every lower-numbered gap stream first the way the component design's
// incoming-bidi map requires, or an error if doing so would exceed
// MaxIncomingStreams.
func (m *streamsMap) getOrOpenPeerStream(id protocol.StreamID) (*bidiStream, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if s, ok := m.streams[id]; ok {
		return s, nil
	}
	num := id.StreamNum()
	if num <= m.highestIncoming {
		return nil, nil // already closed
	}
	if num > m.incomingLimit {
		return nil, qerr.NewTransportError(qerr.StreamLimitErrorCode, "peer exceeded incoming stream limit")
	}

	peerPerspective := m.perspective.Opposite()
	for n := m.highestIncoming + 1; n <= num; n++ {
		gapID := protocol.StreamIDForNum(n, peerPerspective)
		s := m.newBidiStream(gapID)
		m.streams[gapID] = s
		m.acceptQueue = append(m.acceptQueue, gapID)
	}
	m.highestIncoming = num
	m.cond.Broadcast()
	return m.streams[id], nil
}

// AcceptStream blocks until a peer-initiated stream is available, then
// returns the lowest-numbered one and grants one more unit of
// MAX_STREAMS credit to the peer.
func (m *streamsMap) AcceptStream() (Stream, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for len(m.acceptQueue) == 0 {
		if m.closeErr != nil {
			return nil, m.closeErr
		}
		m.cond.Wait()
	}
	id := m.acceptQueue[0]
	m.acceptQueue = m.acceptQueue[1:]
	m.incomingLimit++
	m.sender.queueControlFrame(&wire.MaxStreamsFrame{Type: wire.StreamsTypeBidi, MaxStreamNum: m.incomingLimit})
	return m.streams[id], nil
}

// handleMaxDataFrame re-activates every open stream that still has
// buffered data, since raising the connection-level send window may
// have unblocked a writer that was parked only on the shared budget
// rather than its own per-stream window.
func (m *streamsMap) handleMaxDataFrame() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for _, s := range m.streams {
		s.sendStream.maybeReactivate()
	}
}

func (m *streamsMap) getStream(id protocol.StreamID) *bidiStream {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.streams[id]
}

func (m *streamsMap) closeWithError(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closeErr != nil {
		return
	}
	m.closeErr = err
	for _, s := range m.streams {
		s.sendStream.closeForShutdown(err)
		s.receiveStream.closeForShutdown(err)
	}
	m.cond.Broadcast()
}
