package quiccore

import (
	"github.com/qcore-go/qcore/internal/flowcontrol"
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/wire"
)

// windowUpdateQueue batches the MAX_STREAM_DATA and MAX_DATA frames a
// session owes its peer: the session marks a stream each time it
// receives a STREAM frame for it, and QueuedFrames drains every marked
// stream (plus the connection, checked first), emitting a frame for each
// one whose flow controller reports a window update, deduplicating
// repeated marks for the same stream the way a map naturally does.
type windowUpdateQueue struct {
	queue   map[protocol.StreamID]*bidiStream
	connFC  flowcontrol.ConnectionController
}

func newWindowUpdateQueue(connFC flowcontrol.ConnectionController) *windowUpdateQueue {
	return &windowUpdateQueue{
		queue:  make(map[protocol.StreamID]*bidiStream),
		connFC: connFC,
	}
}

// Add marks s as owing a window update check next time frames are drained.
func (q *windowUpdateQueue) Add(s *bidiStream) {
	q.queue[s.StreamID()] = s
}

// RemoveStream drops s from the queue, called once it will never again
// need a window update (abandoned or fully read).
func (q *windowUpdateQueue) RemoveStream(id protocol.StreamID) {
	delete(q.queue, id)
}

// QueuedFrames returns every MAX_DATA / MAX_STREAM_DATA frame currently
// owed, checking the connection-level update before any stream's, since
// a session that's connection-blocked gains nothing from raising one
// stream's window alone.
func (q *windowUpdateQueue) QueuedFrames() []wire.Frame {
	var frames []wire.Frame
	if offset, ok := q.connFC.GetWindowUpdate(); ok {
		frames = append(frames, &wire.MaxDataFrame{MaximumData: offset})
	}
	for id, s := range q.queue {
		delete(q.queue, id)
		offset, ok := s.receiveStream.flowController.GetWindowUpdate()
		if !ok {
			continue
		}
		frames = append(frames, &wire.MaxStreamDataFrame{StreamID: id, MaximumStreamData: offset})
	}
	return frames
}
