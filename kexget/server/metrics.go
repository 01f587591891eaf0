package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts connection loop events. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Connections     prometheus.Counter
	Rejected        prometheus.Counter
	Requests        *prometheus.CounterVec
	Responses       *prometheus.CounterVec
	ChannelFailures *prometheus.CounterVec
}

// NewMetrics creates the server metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kexget",
			Name:      "connections_total",
			Help:      "Accepted connections.",
		}),
		Rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kexget",
			Name:      "connections_rejected_total",
			Help:      "Connections closed by the accept limiter.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kexget",
			Name:      "requests_total",
			Help:      "Requests processed, by request type.",
		}, []string{"type"}),
		Responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kexget",
			Name:      "responses_total",
			Help:      "Responses sent, by status.",
		}, []string{"status"}),
		ChannelFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kexget",
			Name:      "channel_failures_total",
			Help:      "Inbound messages that failed to decrypt, by reason.",
		}, []string{"reason"}),
	}
	for _, c := range []prometheus.Collector{m.Connections, m.Rejected, m.Requests, m.Responses, m.ChannelFailures} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) connection() {
	if m != nil {
		m.Connections.Inc()
	}
}

func (m *Metrics) rejected() {
	if m != nil {
		m.Rejected.Inc()
	}
}

func (m *Metrics) request(typ string) {
	if m != nil {
		m.Requests.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) response(status string) {
	if m != nil {
		m.Responses.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) channelFailure(reason string) {
	if m != nil {
		m.ChannelFailures.WithLabelValues(reason).Inc()
	}
}
