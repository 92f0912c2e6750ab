package congestion

import (
	"math"
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/utils"
)

// cubic constants per RFC 8312.
const (
	cubicBeta = 0.7
	cubicC    = 0.4
)

// cubic computes the TCP-CUBIC congestion window growth curve in units of
// DefaultMaxDatagramSize-sized segments. It holds no notion of bytes in
// flight or loss recovery state itself; cubicSender drives it.
type cubic struct {
	clock Clock

	epochStart    time.Time
	originPointCwnd protocol.ByteCount
	lastMaxCwnd   protocol.ByteCount
	timeToOriginPoint uint32
	lastTargetCwnd protocol.ByteCount
}

func newCubic(clock Clock) *cubic {
	return &cubic{clock: clock}
}

func (c *cubic) reset() {
	c.epochStart = time.Time{}
	c.originPointCwnd = 0
	c.lastMaxCwnd = 0
	c.timeToOriginPoint = 0
	c.lastTargetCwnd = 0
}

func (c *cubic) congestionWindowAfterPacketLoss(currentCwnd protocol.ByteCount) protocol.ByteCount {
	if currentCwnd < c.lastMaxCwnd {
		c.lastMaxCwnd = protocol.ByteCount(float64(currentCwnd) * (1 + cubicBeta) / 2)
	} else {
		c.lastMaxCwnd = currentCwnd
	}
	c.epochStart = time.Time{}
	return protocol.ByteCount(float64(currentCwnd) * cubicBeta)
}

// congestionWindowAfterAck applies one RTT's worth of convex/concave CUBIC
// growth. delayMin is the current minimum RTT estimate.
func (c *cubic) congestionWindowAfterAck(currentCwnd protocol.ByteCount, delayMin time.Duration) protocol.ByteCount {
	now := c.clock.Now()
	if c.epochStart.IsZero() {
		c.epochStart = now
		if c.lastMaxCwnd <= currentCwnd {
			c.timeToOriginPoint = 0
			c.originPointCwnd = currentCwnd
		} else {
			c.timeToOriginPoint = uint32(math.Cbrt(float64(c.lastMaxCwnd-currentCwnd) / float64(protocol.DefaultMaxDatagramSize) / cubicC))
			c.originPointCwnd = c.lastMaxCwnd
		}
		c.lastTargetCwnd = currentCwnd
	}

	elapsed := now.Sub(c.epochStart) + delayMin
	elapsedS := elapsed.Seconds()
	offset := elapsedS - float64(c.timeToOriginPoint)
	deltaCongestionWindow := protocol.ByteCount(cubicC * offset * offset * offset * float64(protocol.DefaultMaxDatagramSize))

	// deltaCongestionWindow carries offset's sign, so before the origin
	// point the target sits below originPointCwnd and above it after.
	targetCwnd := c.originPointCwnd + deltaCongestionWindow
	targetCwnd = utils.Min(targetCwnd, currentCwnd+protocol.ByteCount(float64(currentCwnd)*0.5))
	c.lastTargetCwnd = targetCwnd
	if targetCwnd > currentCwnd {
		return targetCwnd
	}
	return currentCwnd
}
