package cancomm

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts frames handled by one or more Contexts. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	transmitted *prometheus.CounterVec
	received    *prometheus.CounterVec
	discarded   prometheus.Counter
	txFailures  prometheus.Counter
	downgrades  prometheus.Counter
}

// Frame kinds used as the "kind" label.
const (
	kindClassic = "classic"
	kindFD      = "fd"
	kindError   = "error"
)

// NewMetrics creates the cancomm counters and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cancomm",
				Name:      "frames_transmitted_total",
				Help:      "Frames written to the CAN socket.",
			},
			[]string{"kind"},
		),
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cancomm",
				Name:      "frames_received_total",
				Help:      "Frames read from the CAN socket and handed to the caller.",
			},
			[]string{"kind"},
		),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cancomm",
			Name:      "frames_discarded_total",
			Help:      "Reads dropped because of an unexpected size or a remote request.",
		}),
		txFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cancomm",
			Name:      "transmit_failures_total",
			Help:      "Transmit calls that did not write a complete frame.",
		}),
		downgrades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cancomm",
			Name:      "fd_downgrades_total",
			Help:      "Connects that fell back to classic CAN because CAN FD could not be enabled.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.transmitted, m.received, m.discarded, m.txFailures, m.downgrades)
	}
	return m
}

func frameKind(f *Frame) string {
	switch {
	case f.IsError():
		return kindError
	case f.IsFD():
		return kindFD
	default:
		return kindClassic
	}
}

func (m *Metrics) sent(fd bool) {
	if m == nil {
		return
	}
	kind := kindClassic
	if fd {
		kind = kindFD
	}
	m.transmitted.WithLabelValues(kind).Inc()
}

func (m *Metrics) got(f *Frame) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(frameKind(f)).Inc()
}

func (m *Metrics) dropped() {
	if m == nil {
		return
	}
	m.discarded.Inc()
}

func (m *Metrics) sendFailed() {
	if m == nil {
		return
	}
	m.txFailures.Inc()
}

func (m *Metrics) downgraded() {
	if m == nil {
		return
	}
	m.downgrades.Inc()
}
