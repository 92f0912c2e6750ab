package protocol

import "strings"

// CongestionControlAlgorithm selects the congestion-control implementation
// a session's ackhandler invokes. Unlike the boot-time boolean this was
// historically modeled as, the implementation here selects this per
// session at construction, so the same process can run CUBIC and BBR
// sessions side by side.
type CongestionControlAlgorithm uint8

const (
	CongestionControlCubic CongestionControlAlgorithm = iota + 1
	CongestionControlBBR
)

// ParseCongestionControlAlgorithm maps a configuration string to its
// algorithm constant, defaulting to CUBIC for anything unrecognised.
func ParseCongestionControlAlgorithm(s string) CongestionControlAlgorithm {
	switch strings.ToLower(s) {
	case "bbr":
		return CongestionControlBBR
	case "cubic":
		return CongestionControlCubic
	default:
		return CongestionControlCubic
	}
}

func (a CongestionControlAlgorithm) String() string {
	switch a {
	case CongestionControlCubic:
		return "cubic"
	case CongestionControlBBR:
		return "bbr"
	default:
		return "unknown"
	}
}
