package enrollment

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the ledger's Prometheus collectors
type Metrics struct {
	Begins      *prometheus.CounterVec
	Transitions *prometheus.CounterVec
	Expired     prometheus.Counter
}

// NewMetrics creates the ledger collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Begins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefhub_enrollment_begins_total",
				Help: "Enrollment begin requests by outcome",
			},
			[]string{"outcome"},
		),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chefhub_enrollment_transitions_total",
				Help: "Committed enrollment state transitions",
			},
			[]string{"from", "to"},
		),
		Expired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chefhub_enrollment_expired_total",
				Help: "Pending enrollments failed by the sweeper",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.Begins, m.Transitions, m.Expired)
	}
	return m
}
