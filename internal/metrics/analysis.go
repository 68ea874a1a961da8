package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation and analysis metrics.
var (
	// AnalysisPassTotal counts pass outcomes: ok, skipped, degraded, malformed.
	AnalysisPassTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_pass_total",
			Help:      "Layered analysis pass outcomes",
		},
		[]string{"pass", "outcome"},
	)

	RecommendationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommendations_total",
			Help:      "Recommendation requests by kind and status",
		},
		[]string{"kind", "status"},
	)

	IndexQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_query_duration_seconds",
			Help:      "Vector index query duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
)

var analysisMetricsRegistered bool

// RegisterAnalysisMetrics registers the recommendation collectors.
func RegisterAnalysisMetrics() {
	mustRegister(&analysisMetricsRegistered, AnalysisPassTotal, RecommendationsTotal, IndexQueryDuration)
}
