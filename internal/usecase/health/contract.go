package health

import "context"

// Checker verifies one component.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// Pinger adapts anything with Ping to Checker.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping wraps a Pinger as a Checker.
func Ping(p Pinger) Checker { return CheckerFunc(p.Ping) }
