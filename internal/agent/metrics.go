package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestDuration labels: kind (text or schema name), result (success, error)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intake",
			Subsystem: "oracle",
			Name:      "request_duration_seconds",
			Help:      "Model request latency including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "result"},
	)

	transcriptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intake",
			Subsystem: "stt",
			Name:      "transcriptions_total",
			Help:      "Speech-to-text requests by result",
		},
		[]string{"result"},
	)
)
