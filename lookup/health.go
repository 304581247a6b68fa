package lookup

import "context"

// HealthChecker probes one dependency; a non-nil error marks it unhealthy.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

type checkFunc struct {
	name string
	fn   func(context.Context) error
}

func (c checkFunc) Name() string                    { return c.name }
func (c checkFunc) Check(ctx context.Context) error { return c.fn(ctx) }

// CheckFunc adapts fn to HealthChecker.
func CheckFunc(name string, fn func(context.Context) error) HealthChecker {
	return checkFunc{name: name, fn: fn}
}
