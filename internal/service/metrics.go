package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mutation outcomes recorded in metrics and the audit log.
const (
	OutcomeAccepted = "accepted"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
	OutcomeStale    = "stale"
	OutcomeFailed   = "failed"
	OutcomeInFlight = "in_flight"
)

// Mutation actions.
const (
	ActionStatus = "status"
	ActionCancel = "cancel"
	ActionAssign = "assign"
)

type lifecycleMetrics struct {
	transitions *prometheus.CounterVec
	loads       *prometheus.CounterVec
}

// newLifecycleMetrics registers collectors on reg; a nil reg yields unregistered collectors.
func newLifecycleMetrics(reg prometheus.Registerer, namespace string) *lifecycleMetrics {
	if namespace == "" {
		namespace = "orderdesk"
	}
	factory := promauto.With(reg)
	return &lifecycleMetrics{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_transitions_total",
				Help:      "Order lifecycle mutations by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		loads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "order_view_loads_total",
				Help:      "Order view loads by source (cache or upstream).",
			},
			[]string{"source"},
		),
	}
}

func (m *lifecycleMetrics) transition(action, outcome string) {
	m.transitions.WithLabelValues(action, outcome).Inc()
}

func (m *lifecycleMetrics) load(source string) {
	m.loads.WithLabelValues(source).Inc()
}
