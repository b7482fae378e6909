package transaction

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "traverse"

type metrics struct {
	started         prometheus.Counter
	retransmissions prometheus.Counter
	outcomes        *prometheus.CounterVec
	late            prometheus.Counter
	duplicates      *prometheus.CounterVec
}

// newMetrics builds the controller's collectors and registers them with
// reg. A nil reg leaves them unregistered. Collectors already registered by
// another controller on the same registry are shared.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transactions_started_total",
			Help:      "Client transactions started.",
		}),
		retransmissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "retransmissions_total",
			Help:      "Request retransmissions sent.",
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transaction_outcomes_total",
			Help:      "Client transaction outcomes by terminal state.",
		}, []string{"outcome"}),
		late: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "late_responses_total",
			Help:      "Responses dropped because their transaction already finished or was never started.",
		}),
		duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "duplicate_requests_total",
			Help:      "Retransmitted inbound requests by disposition.",
		}, []string{"disposition"}),
	}
	if reg == nil {
		return m
	}
	m.started = register(reg, m.started)
	m.retransmissions = register(reg, m.retransmissions)
	m.outcomes = register(reg, m.outcomes)
	m.late = register(reg, m.late)
	m.duplicates = register(reg, m.duplicates)
	return m
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}
