package strategy

import (
	"github.com/angeloszaimis/priority-balancer/internal/backend"
)

// Strategy selects the next backend from the best available priority tier.
// Implementations return nil when no backend is eligible.
type Strategy interface {
	SelectBackend(backends []*backend.Backend) *backend.Backend
}

// bestPriorityTier returns all non-throttling backends sharing the lowest
// priority value. A strictly lower priority resets the tier; an equal
// priority appends to it.
func bestPriorityTier(backends []*backend.Backend) []*backend.Backend {
	var tier []*backend.Backend
	var tierPriority int

	for _, b := range backends {
		if b.IsThrottling() {
			continue
		}

		switch {
		case len(tier) == 0 || b.Priority() < tierPriority:
			tierPriority = b.Priority()
			tier = tier[:0]
			tier = append(tier, b)
		case b.Priority() == tierPriority:
			tier = append(tier, b)
		}
	}

	return tier
}
