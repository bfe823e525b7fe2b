package intake

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Total number of interview sessions started",
		},
	)

	SessionsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "sessions",
			Name:      "completed_total",
			Help:      "Total number of interview sessions that reached the terminal phase",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intake",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Sessions currently suspended awaiting a human reply",
		},
	)

	// TurnsTotal counts human replies by the phase they answered.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "controller",
			Name:      "turns_total",
			Help:      "Human replies processed, by phase",
		},
		[]string{"phase"},
	)

	PhaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "controller",
			Name:      "phase_transitions_total",
			Help:      "Phase advancements, by source and target phase",
		},
		[]string{"from", "to"},
	)

	// OracleCalls labels: kind (text, structured), result (success, malformed, error)
	OracleCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "oracle",
			Name:      "calls_total",
			Help:      "Oracle invocations by kind and result",
		},
		[]string{"kind", "result"},
	)

	ExtractionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "merger",
			Name:      "extraction_failures_total",
			Help:      "Extractions absorbed as no new information, by phase",
		},
		[]string{"phase"},
	)

	// GateDecisions labels: phase, result (sufficient, insufficient, malformed)
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Sufficiency gate outcomes, by phase",
		},
		[]string{"phase", "result"},
	)
)
