package flowcontrol

import (
	"fmt"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/qerr"
	"github.com/qcore-go/qcore/internal/utils"
)

// streamFlowController is the per-stream flow-control variant. It holds
// a backpointer to the connection-level controller so every stream-level
// byte it accounts for is also credited against the connection budget.
type streamFlowController struct {
	baseFlowController

	streamID    protocol.StreamID
	connection  ConnectionController
	finalOffset protocol.ByteCount
	finSet      bool
}

var _ StreamController = &streamFlowController{}

// NewStreamFlowController creates the flow controller for one stream.
func NewStreamFlowController(
	streamID protocol.StreamID,
	conn ConnectionController,
	receiveWindow, maxReceiveWindow, sendWindow protocol.ByteCount,
	rttStats *utils.RTTStats,
) StreamController {
	return &streamFlowController{
		streamID:   streamID,
		connection: conn,
		baseFlowController: baseFlowController{
			receiveWindow:     receiveWindow,
			receiveWindowSize: receiveWindow,
			maxReceiveWindow:  maxReceiveWindow,
			sendWindow:        sendWindow,
			rttStats:          rttStats,
		},
	}
}

func (c *streamFlowController) SendWindowSize() protocol.ByteCount {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	own := c.sendWindowSize()
	return utils.Min(own, c.connection.SendWindowSize())
}

func (c *streamFlowController) AddBytesSent(n protocol.ByteCount) {
	c.addBytesSent(n)
	c.connection.AddBytesSent(n)
}

func (c *streamFlowController) IsNewlyBlocked() (bool, protocol.ByteCount) {
	return c.isNewlyBlocked()
}

func (c *streamFlowController) UpdateSendWindow(offset protocol.ByteCount) {
	c.updateSendWindow(offset)
}

func (c *streamFlowController) AddBytesRead(n protocol.ByteCount) {
	c.addBytesRead(n)
	c.connection.AddBytesRead(n)
}

func (c *streamFlowController) GetWindowUpdate() (protocol.ByteCount, bool) {
	c.mutex.Lock()
	if c.finSet && c.bytesRead >= c.finalOffset {
		c.mutex.Unlock()
		return 0, false
	}
	c.mutex.Unlock()
	return c.getWindowUpdate()
}

func (c *streamFlowController) UpdateHighestReceived(offset protocol.ByteCount, final bool) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if final && c.finSet && offset != c.finalOffset {
		return qerr.ErrFinalSizeError(fmt.Sprintf(
			"stream %d: received conflicting final offset: got %d, expected %d",
			c.streamID, offset, c.finalOffset,
		))
	}
	if final {
		c.finSet = true
		c.finalOffset = offset
	} else if c.finSet && offset > c.finalOffset {
		return qerr.ErrFinalSizeError(fmt.Sprintf(
			"stream %d: received data beyond final offset %d at %d", c.streamID, c.finalOffset, offset,
		))
	}
	if offset <= c.highestReceived {
		return nil
	}
	increment := offset - c.highestReceived
	c.highestReceived = offset
	if c.highestReceived > c.receiveWindow {
		return qerr.ErrFlowControlError(fmt.Sprintf(
			"stream %d: received %d bytes, allowed %d", c.streamID, c.highestReceived, c.receiveWindow,
		))
	}
	return c.connection.(*connectionFlowController).addHighestReceived(increment)
}

func (c *streamFlowController) Abandon() {
	c.mutex.Lock()
	unread := c.highestReceived - c.bytesRead
	c.mutex.Unlock()
	if unread > 0 {
		c.connection.AddBytesRead(unread)
	}
}
