package congestion

import (
	"math"
	"time"

	"github.com/qcore-go/qcore/internal/protocol"
	"github.com/qcore-go/qcore/internal/utils"
)

const (
	minPacingDelay = time.Millisecond
	maxBurstSize   = 10 * protocol.DefaultMaxDatagramSize
)

// Pacer smooths a congestion window's worth of packets out over a round
// trip instead of releasing them in a single burst, using a token-bucket
// budget replenished at the algorithm's current bandwidth estimate.
type Pacer struct {
	budgetAtLastSent protocol.ByteCount
	lastSentTime     time.Time
	getBandwidth     func() Bandwidth
}

func NewPacer(getBandwidth func() Bandwidth) *Pacer {
	p := &Pacer{getBandwidth: getBandwidth}
	p.budgetAtLastSent = p.maxBurstSize()
	return p
}

func (p *Pacer) SentPacket(sendTime time.Time, size protocol.ByteCount) {
	budget := p.Budget(sendTime)
	if size > budget {
		p.budgetAtLastSent = 0
	} else {
		p.budgetAtLastSent = budget - size
	}
	p.lastSentTime = sendTime
}

func (p *Pacer) Budget(now time.Time) protocol.ByteCount {
	if p.lastSentTime.IsZero() {
		return p.maxBurstSize()
	}
	bandwidthBytes := protocol.ByteCount(p.getBandwidth() / BytesPerSecond)
	budget := p.budgetAtLastSent + (bandwidthBytes*protocol.ByteCount(now.Sub(p.lastSentTime).Nanoseconds()))/1e9
	return utils.Min(p.maxBurstSize(), budget)
}

func (p *Pacer) maxBurstSize() protocol.ByteCount {
	bandwidthBytes := protocol.ByteCount(p.getBandwidth() / BytesPerSecond)
	burst := protocol.ByteCount(uint64((minPacingDelay + protocol.TimerGranularity).Nanoseconds())) * bandwidthBytes / 1e9
	return utils.Max(burst, maxBurstSize)
}

// TimeUntilSend returns when the budget will next cover a full packet, the
// zero Time if it already does.
func (p *Pacer) TimeUntilSend() time.Time {
	if p.budgetAtLastSent >= protocol.DefaultMaxDatagramSize {
		return time.Time{}
	}
	bandwidthBytes := float64(p.getBandwidth() / BytesPerSecond)
	if bandwidthBytes <= 0 {
		return p.lastSentTime.Add(minPacingDelay)
	}
	needed := float64(protocol.DefaultMaxDatagramSize - p.budgetAtLastSent)
	delay := time.Duration(math.Ceil(needed*1e9/bandwidthBytes)) * time.Nanosecond
	if delay < minPacingDelay {
		delay = minPacingDelay
	}
	return p.lastSentTime.Add(delay)
}
