// Package protocol defines the wire-level types and tunable constants
// shared across the transport core: byte counts, packet numbers,
// connection and stream ids, and the encryption-level/perspective tags
// carried alongside them.
package protocol

import "time"

// ByteCount is used to count bytes.
type ByteCount int64

// MaxByteCount is the maximum value of a ByteCount.
const MaxByteCount = ByteCount(1<<62 - 1)

// InvalidByteCount is an invalid byte count.
const InvalidByteCount = ByteCount(-1)

// MinStreamFrameSize is the minimum size that must be left in a packet for
// it to be worth adding another STREAM frame; smaller leftovers are not
// filled, so STREAM data is not cut into tiny pieces.
const MinStreamFrameSize ByteCount = 128

// MaxStreamFrameSorterGaps is the maximum number of gaps in the stream
// frame sorter; a Push that leaves more gaps than this still stores its
// data and returns ErrTooManyGaps.
const MaxStreamFrameSorterGaps = 1000

// MaxPacketBufferSize maximum packet size of any QUIC packet, based on
// ethernet's max size, minus the IP/UDP headers. IPv6 has a 40 byte header,
// UDP adds an additional 8 bytes. This is a safe default MTU used for
// non-path-aware sending.
const MaxPacketBufferSize ByteCount = 1452

// DefaultMaxDatagramSize is the default value of MaxDatagramSize, used
// when no path MTU discovery overrides it.
const DefaultMaxDatagramSize ByteCount = 1252

// MinInitialPacketSize is the minimum size an Initial-equivalent first
// flight packet must be padded up to.
const MinInitialPacketSize ByteCount = 1200

// MaxReceivePacketSize maximum packet size we use for sending our
// acknowledgements.
const MaxReceivePacketSize ByteCount = 1452

// InitialCongestionWindow is the initial congestion window in packets.
const InitialCongestionWindow = 32

// DefaultMaxCongestionWindow is the default for the max congestion window.
const DefaultMaxCongestionWindow = 200

// MaxUndecryptablePackets limits the number of undecryptable packets that
// are queued, which has no meaning once TLS integration is out of scope,
// kept only so the session's datagram intake queue has a documented cap.
const MaxUndecryptablePackets = 32

// DefaultAckSendDelay is the default max_ack_delay.
const DefaultAckSendDelay = 25 * time.Millisecond

// PacketsBeforeAck is the default number of ack-eliciting packets received
// before an ACK is sent, absent a configured override.
const PacketsBeforeAck = 2

// TimerGranularity is the granularity of the loss detection timer; no
// timer is armed for a shorter duration than this.
const TimerGranularity = time.Millisecond

// MaxPacketsAfterNewAck is the number of packets that can be received
// after getting a new highest-ranked packet without triggering an ACK.
const MaxPacketsAfterNewAck = 2

// ClosedSessionDeleteTimeout is how long a closed session's connection ID
// keeps answering retransmitted CONNECTION_CLOSE packets before the
// packet handler map forgets about it entirely.
const ClosedSessionDeleteTimeout = 5 * time.Second

// WindowUpdateThreshold is the fraction of the receive window that must
// be consumed before a window update is queued.
const WindowUpdateThreshold = 0.25

// DefaultInitialMaxStreamData is the default initial per-stream receive window.
const DefaultInitialMaxStreamData ByteCount = 512 * 1024

// DefaultMaxReceiveStreamFlowControlWindow is the default maximum stream-level
// receive window.
const DefaultMaxReceiveStreamFlowControlWindow ByteCount = 6 * 1024 * 1024

// DefaultInitialMaxData is the default initial connection-level receive window.
const DefaultInitialMaxData ByteCount = 512 * 1024

// DefaultMaxReceiveConnectionFlowControlWindow is the default maximum
// connection-level receive window.
const DefaultMaxReceiveConnectionFlowControlWindow ByteCount = 15 * 1024 * 1024

// DefaultMaxIncomingStreams is the default value for the number of
// concurrently open incoming bidirectional streams a peer is allowed.
const DefaultMaxIncomingStreams = 100

// MaxAcceptQueueSize is the maximum number of streams queued for Accept,
// and the maximum number of sessions a server queues for Accept.
const MaxAcceptQueueSize = 32
