package location

import "context"

// ServiceCheck reports whether any positioning backend is enabled.
type ServiceCheck struct {
	backends []Backend
}

// NewServiceCheck creates a ServiceCheck over the given backends.
func NewServiceCheck(backends ...Backend) *ServiceCheck {
	return &ServiceCheck{backends: backends}
}

// IsAvailable is true if at least one backend is enabled right now.
func (c *ServiceCheck) IsAvailable(ctx context.Context) bool {
	for _, b := range c.backends {
		if b.Enabled(ctx) {
			return true
		}
	}
	return false
}
