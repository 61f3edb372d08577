package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// GateMetrics exposes Prometheus collectors for the verification protocol.
type GateMetrics struct {
	StepOutcomes   *prometheus.CounterVec
	CodesDelivered prometheus.Counter
	SessionsIssued prometheus.Counter
}

// NewGateMetrics constructs and registers the verification collectors.
func NewGateMetrics(reg prometheus.Registerer) (*GateMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	stepOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gate",
		Subsystem: "verification",
		Name:      "step_outcomes_total",
		Help:      "Verification operation outcomes partitioned by step and outcome.",
	}, []string{"step", "outcome"})

	codesDelivered := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gate",
		Subsystem: "verification",
		Name:      "codes_delivered_total",
		Help:      "One-time codes handed to the delivery channel, including resends.",
	})

	sessionsIssued := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gate",
		Subsystem: "admin_session",
		Name:      "issued_total",
		Help:      "Terminal admin sessions granted after full verification.",
	})

	for _, c := range []prometheus.Collector{stepOutcomes, codesDelivered, sessionsIssued} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, fmt.Errorf("register gate collector: %w", err)
			}
		}
	}

	return &GateMetrics{
		StepOutcomes:   stepOutcomes,
		CodesDelivered: codesDelivered,
		SessionsIssued: sessionsIssued,
	}, nil
}

// ObserveStep records one verification operation outcome.
func (m *GateMetrics) ObserveStep(step, outcome string) {
	if m == nil || m.StepOutcomes == nil {
		return
	}
	m.StepOutcomes.WithLabelValues(step, outcome).Inc()
}
