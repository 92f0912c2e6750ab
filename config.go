package quiccore

import (
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/metrics"
)

// Config holds every tunable this core recognises. Unset (zero-value)
// fields are replaced by their default in populateConfig, the way the
// teacher's Config handles optional overrides.
type Config struct {
	// PacketsBeforeAck is the number of ack-eliciting packets received
	// before an ACK is sent, absent any out-of-order arrival.
	PacketsBeforeAck int
	// MaxAckDelay bounds how long a received packet may wait for an ACK.
	MaxAckDelay time.Duration

	// InitialStreamReceiveWindow and MaxStreamReceiveWindow bound a single
	// stream's receive-side flow control window and its auto-tuned ceiling.
	InitialStreamReceiveWindow ByteCount
	MaxStreamReceiveWindow     ByteCount
	// InitialConnectionReceiveWindow and MaxConnectionReceiveWindow do the
	// same at connection scope.
	InitialConnectionReceiveWindow ByteCount
	MaxConnectionReceiveWindow     ByteCount

	// MaxIncomingStreams caps concurrently open peer-initiated streams.
	MaxIncomingStreams int64

	// CongestionControl selects the pluggable congestion algorithm this
	// session runs; selected per session, not per process.
	CongestionControl protocol.CongestionControlAlgorithm

	// Logger receives diagnostic output; nil disables logging.
	Logger Logger

	// ConnectionIDLength is the length in bytes of locally-generated
	// connection ids.
	ConnectionIDLength int

	// Metrics receives connection lifecycle and traffic counters, if set.
	Metrics *metrics.Collector
}

// ByteCount re-exports the wire byte-count type at package scope, so
// application code configuring window sizes never has to import
// internal/protocol directly.
type ByteCount = protocol.ByteCount

func populateConfig(c *Config) *Config {
	if c == nil {
		c = &Config{}
	}
	populated := *c
	if populated.PacketsBeforeAck <= 0 {
		populated.PacketsBeforeAck = protocol.PacketsBeforeAck
	}
	if populated.MaxAckDelay <= 0 {
		populated.MaxAckDelay = protocol.DefaultAckSendDelay
	}
	if populated.InitialStreamReceiveWindow <= 0 {
		populated.InitialStreamReceiveWindow = protocol.DefaultInitialMaxStreamData
	}
	if populated.MaxStreamReceiveWindow <= 0 {
		populated.MaxStreamReceiveWindow = protocol.DefaultMaxReceiveStreamFlowControlWindow
	}
	if populated.InitialConnectionReceiveWindow <= 0 {
		populated.InitialConnectionReceiveWindow = protocol.DefaultInitialMaxData
	}
	if populated.MaxConnectionReceiveWindow <= 0 {
		populated.MaxConnectionReceiveWindow = protocol.DefaultMaxReceiveConnectionFlowControlWindow
	}
	if populated.MaxIncomingStreams <= 0 {
		populated.MaxIncomingStreams = protocol.DefaultMaxIncomingStreams
	}
	if populated.CongestionControl == 0 {
		populated.CongestionControl = protocol.CongestionControlCubic
	}
	if populated.ConnectionIDLength <= 0 {
		populated.ConnectionIDLength = protocol.MinConnectionIDLenInitial
	}
	return &populated
}
