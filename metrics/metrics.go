// Package metrics exposes a Collector that a Config can plug into a
// session's lifecycle hooks, recording packet, loss, and RTT events
// into Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the Prometheus-backed sink a session reports lifecycle
// and loss events to. A nil *Collector is valid and records nothing,
// so wiring it into Config is always optional.
type Collector struct {
	connectionsOpened *prometheus.CounterVec
	connectionsClosed *prometheus.CounterVec
	streamsOpened     prometheus.Counter
	packetsSent       prometheus.Counter
	packetsLost       prometheus.Counter
	bytesSent         prometheus.Counter
	bytesReceived     prometheus.Counter
	congestionWindow  prometheus.Gauge
	smoothedRTT       prometheus.Gauge
}

// NewCollector registers a fresh set of collectors against reg and
// returns a Collector backed by them. Passing prometheus.DefaultRegisterer
// matches how an application wires this core's metrics alongside its own.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qcore_connections_opened_total",
			Help: "Number of QUIC connections opened, by perspective.",
		}, []string{"perspective"}),
		connectionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qcore_connections_closed_total",
			Help: "Number of QUIC connections closed, by perspective.",
		}, []string{"perspective"}),
		streamsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qcore_streams_opened_total",
			Help: "Number of streams opened across all connections.",
		}),
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qcore_packets_sent_total",
			Help: "Number of packets sent across all connections.",
		}),
		packetsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qcore_packets_lost_total",
			Help: "Number of packets declared lost across all connections.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qcore_bytes_sent_total",
			Help: "Number of payload bytes sent across all connections.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qcore_bytes_received_total",
			Help: "Number of payload bytes received across all connections.",
		}),
		congestionWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qcore_congestion_window_bytes",
			Help: "Most recently observed congestion window, in bytes, of the last connection to report one.",
		}),
		smoothedRTT: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "qcore_smoothed_rtt_seconds",
			Help: "Most recently observed smoothed RTT, in seconds, of the last connection to report one.",
		}),
	}
	reg.MustRegister(
		c.connectionsOpened, c.connectionsClosed, c.streamsOpened,
		c.packetsSent, c.packetsLost, c.bytesSent, c.bytesReceived,
		c.congestionWindow, c.smoothedRTT,
	)
	return c
}

func (c *Collector) ConnectionOpened(perspective string) {
	if c == nil {
		return
	}
	c.connectionsOpened.WithLabelValues(perspective).Inc()
}

func (c *Collector) ConnectionClosed(perspective string) {
	if c == nil {
		return
	}
	c.connectionsClosed.WithLabelValues(perspective).Inc()
}

func (c *Collector) StreamOpened() {
	if c == nil {
		return
	}
	c.streamsOpened.Inc()
}

func (c *Collector) PacketSent(size int) {
	if c == nil {
		return
	}
	c.packetsSent.Inc()
	c.bytesSent.Add(float64(size))
}

func (c *Collector) PacketReceived(size int) {
	if c == nil {
		return
	}
	c.bytesReceived.Add(float64(size))
}

func (c *Collector) PacketLost() {
	if c == nil {
		return
	}
	c.packetsLost.Inc()
}

func (c *Collector) UpdatedRTT(smoothedRTTSeconds float64) {
	if c == nil {
		return
	}
	c.smoothedRTT.Set(smoothedRTTSeconds)
}

func (c *Collector) UpdatedCongestionWindow(bytes float64) {
	if c == nil {
		return
	}
	c.congestionWindow.Set(bytes)
}
