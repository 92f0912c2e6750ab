package quiccore

import (
	"github.com/qcore-go/qcore/internal/ackhandler"
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/wire"
)

// retransmissionQueue holds control frames (everything but STREAM
// frames, which each stream retransmits itself) whose packet was
// declared lost and must go out again. Packet numbers live in a single
// 1-RTT-equivalent space, so there's one queue for the whole connection
// rather than one per encryption level.
type retransmissionQueue struct {
	frames []wire.Frame
}

func newRetransmissionQueue() *retransmissionQueue {
	return &retransmissionQueue{}
}

func (q *retransmissionQueue) add(f wire.Frame) {
	if _, ok := f.(*wire.StreamFrame); ok {
		panic("STREAM frames are retransmitted by their own stream, not the retransmission queue")
	}
	q.frames = append(q.frames, f)
}

// GetFrame pops the next queued frame that fits within maxLen, or nil.
func (q *retransmissionQueue) GetFrame(maxLen protocol.ByteCount) wire.Frame {
	if len(q.frames) == 0 {
		return nil
	}
	f := q.frames[0]
	if f.Length() > maxLen {
		return nil
	}
	q.frames = q.frames[1:]
	return f
}

func (q *retransmissionQueue) HasData() bool {
	return len(q.frames) > 0
}

// AckHandler wraps f so that losing its packet requeues it here for
// retransmission, and acking it is a no-op (the frame's side effects, if
// any, already happened when it was first queued).
func (q *retransmissionQueue) AckHandler(f wire.Frame) *ackhandler.Frame {
	wrapped := &ackhandler.Frame{Frame: f}
	wrapped.OnLost = func(af *ackhandler.Frame) { q.add(af.Frame) }
	return wrapped
}
