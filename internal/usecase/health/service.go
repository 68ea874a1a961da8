package health

import (
	"context"
	"sort"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
	// Unhealthy indicates total failure.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Component is a named health check.
type Component struct {
	Name    string
	Checker Checker
	// Optional components degrade the report but never make it unhealthy.
	Optional bool
}

// Service coordinates health checks.
type Service struct {
	components []Component
}

// New creates a Service. Components with a nil Checker are skipped.
func New(components ...Component) *Service {
	s := &Service{}
	for _, c := range components {
		if c.Checker != nil {
			s.components = append(s.components, c)
		}
	}
	return s
}

// Names returns the registered component names in sorted order.
func (s *Service) Names() []string {
	names := make([]string, len(s.components))
	for i, c := range s.components {
		names[i] = c.Name
	}
	sort.Strings(names)
	return names
}

// Check runs every component check. Any failure degrades the report; when every
// required component fails the report is unhealthy.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult, len(s.components))
	required, requiredFailed, failed := 0, 0, 0

	for _, c := range s.components {
		if !c.Optional {
			required++
		}
		if err := c.Checker.HealthCheck(ctx); err != nil {
			checks[c.Name] = CheckError
			failed++
			if !c.Optional {
				requiredFailed++
			}
			continue
		}
		checks[c.Name] = CheckOK
	}

	status := Healthy
	switch {
	case required > 0 && requiredFailed == required:
		status = Unhealthy
	case failed > 0:
		status = Degraded
	}

	return Report{Status: status, Checks: checks}
}
