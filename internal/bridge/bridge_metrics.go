package bridge

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the ingestion path. A nil *Metrics is
// a no-op.
type Metrics struct {
	InboundTotal *prometheus.CounterVec
}

// NewMetrics registers and returns ingestion metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casebridge_inbound_emails_total",
			Help: "Total inbound emails by handling result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.InboundTotal)
	return m
}

func (m *Metrics) incInbound(result string) {
	if m == nil {
		return
	}
	m.InboundTotal.WithLabelValues(result).Inc()
}
