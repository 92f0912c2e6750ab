package flowcontrol

import (
	"fmt"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/internal/utils"
)

// connectionFlowController aggregates flow control across every stream
// on the connection.
type connectionFlowController struct {
	baseFlowController
}

var _ ConnectionController = &connectionFlowController{}

// NewConnectionFlowController creates the connection-level controller.
func NewConnectionFlowController(
	receiveWindow, maxReceiveWindow, sendWindow protocol.ByteCount,
	rttStats *utils.RTTStats,
) ConnectionController {
	return &connectionFlowController{
		baseFlowController: baseFlowController{
			receiveWindow:     receiveWindow,
			receiveWindowSize: receiveWindow,
			maxReceiveWindow:  maxReceiveWindow,
			sendWindow:        sendWindow,
			rttStats:          rttStats,
		},
	}
}

func (c *connectionFlowController) SendWindowSize() protocol.ByteCount {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.sendWindowSize()
}

func (c *connectionFlowController) AddBytesSent(n protocol.ByteCount) {
	c.addBytesSent(n)
}

func (c *connectionFlowController) IsNewlyBlocked() (bool, protocol.ByteCount) {
	return c.isNewlyBlocked()
}

func (c *connectionFlowController) UpdateSendWindow(offset protocol.ByteCount) {
	c.updateSendWindow(offset)
}

func (c *connectionFlowController) AddBytesRead(n protocol.ByteCount) {
	c.addBytesRead(n)
}

func (c *connectionFlowController) GetWindowUpdate() (protocol.ByteCount, bool) {
	return c.getWindowUpdate()
}

func (c *connectionFlowController) EnsureMinimumWindowIncrement(addend protocol.ByteCount) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if addend > c.maxReceiveWindow {
		c.maxReceiveWindow = utils.Min(addend, protocol.DefaultMaxReceiveConnectionFlowControlWindow)
	}
}

// addHighestReceived is called by a stream's controller to advance the
// connection-wide received-bytes count by increment, checking it against
// the connection's own receive window.
func (c *connectionFlowController) addHighestReceived(increment protocol.ByteCount) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.highestReceived += increment
	if c.highestReceived > c.receiveWindow {
		return qerr.ErrFlowControlError(fmt.Sprintf(
			"connection: received %d bytes, allowed %d", c.highestReceived, c.receiveWindow,
		))
	}
	return nil
}
