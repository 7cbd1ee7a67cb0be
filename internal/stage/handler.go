package stage

import "context"

// Checker is implemented by collaborators that can report their readiness.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

// HealthCheck calls f.
func (f CheckerFunc) HealthCheck(ctx context.Context) error {
	return f(ctx)
}

// Probe names a checker and whether a run can proceed without it.
type Probe struct {
	Name     string
	Checker  Checker
	Required bool
}

// Run executes one probe. A nil checker reports healthy.
func (p Probe) Run(ctx context.Context) Health {
	if p.Checker == nil {
		return Healthy(p.Name)
	}
	if err := p.Checker.HealthCheck(ctx); err != nil {
		h := Unhealthy(p.Name, err.Error())
		h.Required = p.Required
		h.Err = err
		return h
	}
	return Healthy(p.Name)
}

// RunAll executes probes in order.
func RunAll(ctx context.Context, probes []Probe) []Health {
	results := make([]Health, 0, len(probes))
	for _, p := range probes {
		results = append(results, p.Run(ctx))
	}
	return results
}
