package incident

import (
	"fmt"
	"time"

	"github.com/blackwolfsec/soc-sdk/pkg/errors"
	"github.com/blackwolfsec/soc-sdk/pkg/shared/severity"
)

// SLAPolicy maps incident severity to the response-time window used to
// derive the SLA deadline at creation. The mapping is configuration
// supplied by the product, not business logic: see config.Load.
type SLAPolicy struct {
	windows map[severity.Level]time.Duration
}

// Collaborator API default windows: critical 2h, high 4h, medium 8h, low 24h.
var defaultWindows = map[severity.Level]time.Duration{
	severity.Critical: 2 * time.Hour,
	severity.High:     4 * time.Hour,
	severity.Medium:   8 * time.Hour,
	severity.Low:      24 * time.Hour,
}

// DefaultSLAPolicy returns the product-default policy.
func DefaultSLAPolicy() SLAPolicy {
	return SLAPolicy{windows: defaultWindows}
}

// NewSLAPolicy builds a policy from explicit windows. Every severity level
// must be mapped and windows must be monotonic: a higher severity never gets
// a longer window than a lower one.
func NewSLAPolicy(windows map[severity.Level]time.Duration) (SLAPolicy, error) {
	const op = "incident.NewSLAPolicy"

	for _, l := range severity.AllLevels() {
		w, ok := windows[l]
		if !ok {
			return SLAPolicy{}, errors.E(errors.KindInvalidInput, op,
				fmt.Sprintf("missing SLA window for severity %q", l))
		}
		if w <= 0 {
			return SLAPolicy{}, errors.E(errors.KindInvalidInput, op,
				fmt.Sprintf("SLA window for %q must be positive", l))
		}
	}

	levels := severity.AllLevels() // highest first
	for i := 1; i < len(levels); i++ {
		if windows[levels[i-1]] > windows[levels[i]] {
			return SLAPolicy{}, errors.E(errors.KindInvalidInput, op,
				fmt.Sprintf("SLA window for %q exceeds window for %q", levels[i-1], levels[i]))
		}
	}

	copied := make(map[severity.Level]time.Duration, len(windows))
	for l, w := range windows {
		copied[l] = w
	}
	return SLAPolicy{windows: copied}, nil
}

// Window returns the response window for the given severity.
func (p SLAPolicy) Window(l severity.Level) time.Duration {
	if p.windows == nil {
		p.windows = defaultWindows
	}
	if w, ok := p.windows[l]; ok {
		return w
	}
	return p.windows[severity.Low]
}

// Deadline computes the SLA deadline for an incident of the given severity
// created at createdAt.
func (p SLAPolicy) Deadline(l severity.Level, createdAt time.Time) time.Time {
	return createdAt.Add(p.Window(l))
}
