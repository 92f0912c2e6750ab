package congestion

import (
	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/utils"
)

// New builds the requested congestion controller. Unlike the source's
// boot-time-configured switch, this core's Config carries the algorithm
// per session, so two connections in the same process may run different
// controllers concurrently.
func New(algorithm protocol.CongestionControlAlgorithm, rttStats *utils.RTTStats) SendAlgorithmWithDebugInfo {
	switch algorithm {
	case protocol.CongestionControlBBR:
		return NewBBRSender(DefaultClock{}, rttStats, protocol.InitialCongestionWindow, protocol.DefaultMaxCongestionWindow)
	case protocol.CongestionControlCubic:
		fallthrough
	default:
		return NewCubicSender(DefaultClock{}, rttStats, protocol.InitialCongestionWindow, protocol.DefaultMaxCongestionWindow)
	}
}
