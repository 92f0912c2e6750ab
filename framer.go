package quiccore

import (
	"sync"

	"github.com/qcore-go/qcore/internal/ackhandler"
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/wire"
)

// framer collects everything a session's packet-assembly loop appends
// after an ACK and the retransmission queue: the FIFO control-frame
// queue and the round-robin active-stream set from the component
// design's compose_next_packet.
type framer struct {
	streams *streamsMap

	streamQueueMutex sync.Mutex
	activeStreams    map[protocol.StreamID]struct{}
	streamQueue      []protocol.StreamID

	controlFrameMutex sync.Mutex
	controlFrames     []wire.Frame
}

func newFramer(streams *streamsMap) *framer {
	return &framer{
		streams:       streams,
		activeStreams: make(map[protocol.StreamID]struct{}),
	}
}

func (f *framer) QueueControlFrame(frame wire.Frame) {
	f.controlFrameMutex.Lock()
	f.controlFrames = append(f.controlFrames, frame)
	f.controlFrameMutex.Unlock()
}

// AppendControlFrames drains the FIFO control-frame queue into frames,
// wrapping each popped frame with wrap so the caller decides how a lost
// control frame gets requeued.
func (f *framer) AppendControlFrames(frames []*ackhandler.Frame, maxLen protocol.ByteCount, wrap func(wire.Frame) *ackhandler.Frame) ([]*ackhandler.Frame, protocol.ByteCount) {
	var length protocol.ByteCount
	f.controlFrameMutex.Lock()
	for len(f.controlFrames) > 0 {
		frame := f.controlFrames[0]
		frameLen := frame.Length()
		if length+frameLen > maxLen {
			break
		}
		frames = append(frames, wrap(frame))
		length += frameLen
		f.controlFrames = f.controlFrames[1:]
	}
	f.controlFrameMutex.Unlock()
	return frames, length
}

// AddActiveStream marks id as having data to send, so the next
// AppendStreamFrames call visits it.
func (f *framer) AddActiveStream(id protocol.StreamID) {
	f.streamQueueMutex.Lock()
	if _, ok := f.activeStreams[id]; !ok {
		f.streamQueue = append(f.streamQueue, id)
		f.activeStreams[id] = struct{}{}
	}
	f.streamQueueMutex.Unlock()
}

func (f *framer) removeActiveStream(id protocol.StreamID) {
	f.streamQueueMutex.Lock()
	delete(f.activeStreams, id)
	f.streamQueueMutex.Unlock()
}

// AppendStreamFrames round-robins across the active-stream queue,
// popping at most one STREAM frame per stream per call: a stream with
// more data to send is rotated to the tail, a drained stream is dropped
// from the active set, stopping once less than MinStreamFrameSize
// remains in the budget.
func (f *framer) AppendStreamFrames(frames []*ackhandler.Frame, maxLen protocol.ByteCount) []*ackhandler.Frame {
	var length protocol.ByteCount
	f.streamQueueMutex.Lock()
	numActive := len(f.streamQueue)
	for i := 0; i < numActive; i++ {
		if maxLen-length < protocol.MinStreamFrameSize {
			break
		}
		id := f.streamQueue[0]
		f.streamQueue = f.streamQueue[1:]

		s := f.streams.getStream(id)
		if s == nil {
			delete(f.activeStreams, id)
			continue
		}
		frame := s.sendStream.popStreamFrame(maxLen - length)
		if frame == nil {
			delete(f.activeStreams, id)
			continue
		}
		if s.sendStream.finished() {
			delete(f.activeStreams, id)
		} else {
			f.streamQueue = append(f.streamQueue, id)
		}
		frames = append(frames, frame)
		length += frame.Frame.Length()
	}
	f.streamQueueMutex.Unlock()
	return frames
}
