package metrics

import "testing"

func TestRegister_Idempotent(t *testing.T) {
	Register()
	Register()
	if !httpMetricsRegistered || !embMetricsRegistered || !reasoningMetricsRegistered || !analysisMetricsRegistered {
		t.Fatal("expected all collectors registered")
	}
}
