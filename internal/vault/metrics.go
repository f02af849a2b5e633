package vault

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	operations *prometheus.CounterVec
	exhausted  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statsvault",
			Subsystem: "vault",
			Name:      "operations_total",
			Help:      "Vault operations by kind and outcome",
		}, []string{"op", "outcome"}),
		exhausted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statsvault",
			Subsystem: "vault",
			Name:      "exhausted_entries",
			Help:      "Entries whose fetch budget is used up",
		}),
	}
	if reg == nil {
		return m, nil
	}
	if err := reg.Register(m.operations); err != nil {
		return nil, err
	}
	if err := reg.Register(m.exhausted); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *metrics) observe(op string, err error) {
	m.operations.WithLabelValues(op, Outcome(err)).Inc()
}
