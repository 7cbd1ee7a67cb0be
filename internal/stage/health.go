package stage

// Health summarizes the readiness of a run collaborator.
type Health struct {
	Name     string
	Ready    bool
	Detail   string
	Required bool
	Err      error
}

// Healthy constructs a ready Health record.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy constructs an unhealthy Health record with context detail.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Ready: false, Detail: detail}
}

// Blocking returns the first unhealthy required record.
func Blocking(results []Health) (Health, bool) {
	for _, h := range results {
		if !h.Ready && h.Required {
			return h, true
		}
	}
	return Health{}, false
}
