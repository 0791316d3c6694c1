package engine

import (
	"sync"

	"github.com/corvidio/wsconn/closecode"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the Prometheus collectors the engine updates as it
// processes frames and closes connections. It is constructed with the
// same promauto-free, explicit-registration style as the corpus's
// absmach-mproxy/pkg/metrics package, so callers control which
// registry (if any) the collectors land in.
type Metrics struct {
	framesReceived   *prometheus.CounterVec
	framesSent       *prometheus.CounterVec
	closesByReason   *prometheus.CounterVec
	heartbeatMisses  prometheus.Counter
	messageBytes     prometheus.Histogram
}

// NewMetrics builds a Metrics instance and registers its collectors
// with reg. Pass prometheus.NewRegistry() for an isolated registry (as
// tests do) or prometheus.DefaultRegisterer in production.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "wsconn"
	}
	m := &Metrics{
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames processed, by opcode.",
		}, []string{"opcode"}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Outbound frames emitted, by opcode.",
		}, []string{"opcode"}),
		closesByReason: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closes_total",
			Help:      "Connections closed, by domain close reason.",
		}, []string{"reason"}),
		heartbeatMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_misses_total",
			Help:      "Heartbeat cycles where the peer never answered a ping.",
		}),
		messageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "message_bytes",
			Help:      "Size of fully reassembled inbound messages, in bytes.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		}),
	}
	reg.MustRegister(m.framesReceived, m.framesSent, m.closesByReason, m.heartbeatMisses, m.messageBytes)
	return m
}

var (
	defaultMetricsOnce sync.Once
	defaultMetrics     *Metrics
)

func init() {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = NewMetrics("wsconn", prometheus.NewRegistry())
	})
}

func (m *Metrics) observeFrameIn(opcode byte) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(opcodeLabel(opcode)).Inc()
}

func (m *Metrics) observeFrameOut(opcode byte) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(opcodeLabel(opcode)).Inc()
}

func (m *Metrics) observeDisconnect(reason closecode.Reason) {
	if m == nil {
		return
	}
	m.closesByReason.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) observeHeartbeatMiss() {
	if m == nil {
		return
	}
	m.heartbeatMisses.Inc()
}

func (m *Metrics) observeMessageBytes(n int) {
	if m == nil {
		return
	}
	m.messageBytes.Observe(float64(n))
}

func opcodeLabel(opcode byte) string {
	switch opcode {
	case 0x0:
		return "continuation"
	case 0x1:
		return "text"
	case 0x2:
		return "binary"
	case 0x8:
		return "close"
	case 0x9:
		return "ping"
	case 0xA:
		return "pong"
	default:
		return "reserved"
	}
}
