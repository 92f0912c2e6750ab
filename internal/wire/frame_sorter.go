package wire

import (
	"container/list"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
)

// byteInterval is a half-open gap [Start, End) in the reassembly buffer
// that has not yet been filled.
type byteInterval struct {
	Start, End protocol.ByteCount
}

type sorterEntry struct {
	Data   []byte
	DoneCb func()
}

// FrameSorter merges out-of-order byte ranges delivered by STREAM frames
// into a buffer that yields data strictly in offset order. It tracks the
// set of unfilled gaps explicitly (rather than merely the filled ranges),
// so Pop can tell in O(1) whether contiguous data is available.
type FrameSorter struct {
	queue      map[protocol.ByteCount]sorterEntry
	readPos    protocol.ByteCount
	gaps       *list.List // of *byteInterval, ascending, covers [readPos, +inf)
	gapsLimit  int
}

// NewFrameSorter creates an empty sorter starting at read position 0 with
// a single gap covering the entire stream.
func NewFrameSorter() *FrameSorter {
	s := &FrameSorter{
		queue:     make(map[protocol.ByteCount]sorterEntry),
		gaps:      list.New(),
		gapsLimit: protocol.MaxStreamFrameSorterGaps,
	}
	s.gaps.PushBack(&byteInterval{Start: 0, End: protocol.MaxByteCount})
	return s
}

// Push inserts a byte range. If doneCb is non-nil, Push invokes it at
// once when none of the data is new; otherwise Pop hands it back with
// the last chunk this call inserted.
func (s *FrameSorter) Push(data []byte, offset protocol.ByteCount, doneCb func()) error {
	if len(data) == 0 {
		if doneCb != nil {
			doneCb()
		}
		return nil
	}
	start := offset
	end := offset + protocol.ByteCount(len(data))

	if end <= s.readPos {
		if doneCb != nil {
			doneCb()
		}
		return nil
	}
	if start < s.readPos {
		data = data[s.readPos-start:]
		start = s.readPos
	}

	startGap, endGap := s.findGaps(start, end)
	if startGap == nil {
		// entirely covered by already-stored data
		if doneCb != nil {
			doneCb()
		}
		return nil
	}

	// Clip the new range against every gap it overlaps: only the portions
	// that fall within a gap are new data, since an already-covered byte
	// was delivered by whichever range arrived first.
	added := false
	lastInserted := start
	for el := startGap; el != nil; el = el.Next() {
		gap := el.Value.(*byteInterval)
		clipStart := max(start, gap.Start)
		clipEnd := min(end, gap.End)
		if clipStart >= clipEnd {
			if el == endGap {
				break
			}
			continue
		}
		chunk := data[clipStart-start : clipEnd-start]
		s.queue[clipStart] = sorterEntry{Data: chunk}
		added = true
		lastInserted = clipStart
		s.shrinkGap(el, clipStart, clipEnd)
		if el == endGap {
			break
		}
	}
	if !added {
		if doneCb != nil {
			doneCb()
		}
		return nil
	}
	if doneCb != nil {
		// Attach to the last chunk inserted for this Push call so it
		// fires exactly once, when that chunk is popped.
		s.attachDone(lastInserted, lastInserted+1, doneCb)
	}
	if s.gaps.Len() > s.gapsLimit {
		return qerr.ErrTooManyGaps
	}
	return nil
}

func (s *FrameSorter) attachDone(start, end protocol.ByteCount, cb func()) {
	// Find the highest-offset chunk whose range falls in [start,end) that
	// this push actually inserted, and hang the callback there.
	var best protocol.ByteCount = -1
	for off := range s.queue {
		if off >= start && off < end {
			if best == -1 || off > best {
				best = off
			}
		}
	}
	if best == -1 {
		cb()
		return
	}
	e := s.queue[best]
	e.DoneCb = cb
	s.queue[best] = e
}

// findGaps returns the first and last list elements (both *byteInterval)
// that the half-open range [start,end) intersects, or (nil,nil) if the
// range lies entirely within already-filled data.
func (s *FrameSorter) findGaps(start, end protocol.ByteCount) (*list.Element, *list.Element) {
	var first, last *list.Element
	for el := s.gaps.Front(); el != nil; el = el.Next() {
		gap := el.Value.(*byteInterval)
		if gap.End <= start {
			continue
		}
		if gap.Start >= end {
			break
		}
		if first == nil {
			first = el
		}
		last = el
	}
	return first, last
}

// shrinkGap removes the [clipStart,clipEnd) sub-range from the gap held
// by el, splitting it into zero, one, or two remaining gaps.
func (s *FrameSorter) shrinkGap(el *list.Element, clipStart, clipEnd protocol.ByteCount) {
	gap := el.Value.(*byteInterval)
	leftRemains := clipStart > gap.Start
	rightRemains := clipEnd < gap.End
	switch {
	case leftRemains && rightRemains:
		s.gaps.InsertAfter(&byteInterval{Start: clipEnd, End: gap.End}, el)
		gap.End = clipStart
	case leftRemains:
		gap.End = clipStart
	case rightRemains:
		gap.Start = clipEnd
	default:
		s.gaps.Remove(el)
	}
}

// HasMoreData reports whether Pop would return data right now.
func (s *FrameSorter) HasMoreData() bool {
	_, ok := s.queue[s.readPos]
	return ok
}

// Pop returns the next contiguous chunk starting at the current read
// position, advances the read position past it, and returns its done
// callback if one is attached. Pop does not invoke the callback; the
// caller does. It returns ok=false if no data is available at the read
// position yet.
func (s *FrameSorter) Pop() (offset protocol.ByteCount, data []byte, doneCb func(), ok bool) {
	e, found := s.queue[s.readPos]
	if !found {
		return 0, nil, nil, false
	}
	delete(s.queue, s.readPos)
	offset = s.readPos
	s.readPos += protocol.ByteCount(len(e.Data))
	return offset, e.Data, e.DoneCb, true
}

func min(a, b protocol.ByteCount) protocol.ByteCount {
	if a < b {
		return a
	}
	return b
}

func max(a, b protocol.ByteCount) protocol.ByteCount {
	if a > b {
		return a
	}
	return b
}
