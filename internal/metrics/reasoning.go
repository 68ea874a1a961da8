package metrics

import "github.com/prometheus/client_golang/prometheus"

// Reasoning (remote completion) metrics.
var (
	ReasoningRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reasoning_requests_total",
			Help:      "Total number of remote completion requests",
		},
		[]string{"provider", "model", "status"},
	)

	ReasoningRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reasoning_request_duration_seconds",
			Help:      "Remote completion duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "model"},
	)
)

var reasoningMetricsRegistered bool

// RegisterReasoningMetrics registers the reasoning collectors.
func RegisterReasoningMetrics() {
	mustRegister(&reasoningMetricsRegistered, ReasoningRequestsTotal, ReasoningRequestDuration)
}
