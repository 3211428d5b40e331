package avr

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "avr"

// Metrics holds the bridge's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	connState     *prometheus.GaugeVec
	connects      prometheus.Counter
	reconnects    prometheus.Counter
	linesReceived prometheus.Counter
	commandsSent  prometheus.Counter
	decodeErrors  *prometheus.CounterVec
	encodeErrors  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connects_total",
			Help:      "Successful connections to the receiver.",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a failure.",
		}),
		linesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "lines_received_total",
			Help:      "Response lines received from the receiver.",
		}),
		commandsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_sent_total",
			Help:      "Commands written to the receiver.",
		}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "decode_errors_total",
			Help:      "Response lines that failed to decode.",
		}, []string{"dialect"}),
		encodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "encode_errors_total",
			Help:      "Host writes that could not be encoded.",
		}, []string{"dialect"}),
	}
	reg.MustRegister(m.connState, m.connects, m.reconnects, m.linesReceived,
		m.commandsSent, m.decodeErrors, m.encodeErrors)
	return m
}

var allConnStates = []ConnState{
	StateIdle, StateConnecting, StateConnected, StateDetecting, StateOperational, StateFailed,
}

func (m *Metrics) setState(s ConnState) {
	if m == nil {
		return
	}
	for _, st := range allConnStates {
		v := 0.0
		if st == s {
			v = 1
		}
		m.connState.WithLabelValues(string(st)).Set(v)
	}
}

func (m *Metrics) connected() {
	if m != nil {
		m.connects.Inc()
	}
}

func (m *Metrics) reconnectScheduled() {
	if m != nil {
		m.reconnects.Inc()
	}
}

func (m *Metrics) lineReceived() {
	if m != nil {
		m.linesReceived.Inc()
	}
}

func (m *Metrics) commandSent() {
	if m != nil {
		m.commandsSent.Inc()
	}
}

func (m *Metrics) decodeError(d Dialect) {
	if m != nil {
		m.decodeErrors.WithLabelValues(d.String()).Inc()
	}
}

func (m *Metrics) encodeError(d Dialect) {
	if m != nil {
		m.encodeErrors.WithLabelValues(d.String()).Inc()
	}
}
