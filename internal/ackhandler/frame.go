package ackhandler

import "github.com/qcore-go/qcore/internal/wire"

// Frame wraps a wire.Frame with the callbacks the session's queues need:
// OnLost re-queues retransmittable data once its packet is declared
// lost, OnAcked releases resources (flow-control credit, stream
// completion) once its packet is acknowledged. Frame carries these as
// data rather than as frame methods, so the wire codec never needs to
// know about the stream layer.
type Frame struct {
	wire.Frame

	OnLost  func(*Frame)
	OnAcked func(*Frame)

	retransmittedAs []*Frame
}

func (f *Frame) onAcked() {
	for _, r := range f.retransmittedAs {
		r.onAcked()
	}
	if f.Frame != nil && f.OnAcked != nil {
		f.OnAcked(f)
	}
}

func (f *Frame) onLost() {
	if f.Frame != nil && f.OnLost != nil {
		f.OnLost(f)
	}
}

// RetransmittedAs records that f's data was requeued as r, so acking f
// after the fact (a stale ACK for the original packet) also acks r.
func (f *Frame) RetransmittedAs(r *Frame) {
	f.retransmittedAs = append(f.retransmittedAs, r)
}
