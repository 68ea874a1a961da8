// Package metrics holds the Prometheus collectors of the service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "tagrec"

// Register registers every collector with the default registry. Safe to call more than once.
func Register() {
	RegisterHTTPMetrics()
	RegisterEmbeddingMetrics()
	RegisterReasoningMetrics()
	RegisterAnalysisMetrics()
}

func mustRegister(registered *bool, cs ...prometheus.Collector) {
	if *registered {
		return
	}
	prometheus.MustRegister(cs...)
	*registered = true
}
