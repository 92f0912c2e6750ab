package flowcontrol

import (
	"sync"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/utils"
)

// baseFlowController implements the accounting shared by the stream and
// connection variants: it is embedded by both, per the component
// design's "two variants sharing one contract".
type baseFlowController struct {
	mutex sync.Mutex

	bytesSent  protocol.ByteCount
	sendWindow protocol.ByteCount

	lastBlockedAt protocol.ByteCount

	bytesRead       protocol.ByteCount
	highestReceived protocol.ByteCount

	// receiveWindow is the absolute offset advertised to the peer as the
	// enforcement ceiling; it only ever advances, in lockstep with
	// bytesRead, each time getWindowUpdate emits a new advertisement.
	// receiveWindowSize is the current width of that window, auto-tuned
	// upward (via maybeAdjustWindowIncrement) independently of where the
	// ceiling itself currently sits.
	receiveWindow     protocol.ByteCount
	receiveWindowSize protocol.ByteCount
	maxReceiveWindow  protocol.ByteCount

	rttStats *utils.RTTStats
}

func (c *baseFlowController) sendWindowSize() protocol.ByteCount {
	if c.bytesSent > c.sendWindow {
		return 0
	}
	return c.sendWindow - c.bytesSent
}

func (c *baseFlowController) addBytesSent(n protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.bytesSent += n
}

func (c *baseFlowController) isNewlyBlocked() (bool, protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.sendWindowSize() != 0 || c.sendWindow == c.lastBlockedAt {
		return false, 0
	}
	c.lastBlockedAt = c.sendWindow
	return true, c.sendWindow
}

func (c *baseFlowController) updateSendWindow(offset protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if offset > c.sendWindow {
		c.sendWindow = offset
	}
}

func (c *baseFlowController) addBytesRead(n protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.bytesRead += n
}

// maybeAdjustWindowIncrement doubles receiveWindowSize, up to
// maxReceiveWindow, on every window update while rttStats is set, an
// auto-tuning heuristic against a too-small static window. It does not
// measure how quickly the previous window was consumed.
func (c *baseFlowController) maybeAdjustWindowIncrement() {
	if c.rttStats == nil || c.receiveWindowSize >= c.maxReceiveWindow {
		return
	}
	c.receiveWindowSize = utils.Min(2*c.receiveWindowSize, c.maxReceiveWindow)
}

// getWindowUpdate returns a new absolute receive-window offset to
// advertise, and true, once the peer has consumed enough of the
// current window to cross WindowUpdateThreshold. The ceiling it
// advertises, and enforces via receiveWindow, always equals
// bytesRead + receiveWindowSize at the moment of the update.
func (c *baseFlowController) getWindowUpdate() (protocol.ByteCount, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	bytesRemaining := c.receiveWindow - c.bytesRead
	if bytesRemaining >= protocol.ByteCount(float64(c.receiveWindowSize)*(1-protocol.WindowUpdateThreshold)) {
		return 0, false
	}
	c.maybeAdjustWindowIncrement()
	c.receiveWindow = c.bytesRead + c.receiveWindowSize
	return c.receiveWindow, true
}
