package strategy

import (
	"math/rand"

	"github.com/angeloszaimis/priority-balancer/internal/backend"
)

type leastUsedStrategy struct{}

// SelectBackend picks the backend with the fewest successful calls within
// the best priority tier. Exact ties are broken at random, so repeated
// selection spreads requests evenly within this process's lifetime.
func (l *leastUsedStrategy) SelectBackend(backends []*backend.Backend) *backend.Backend {
	tier := bestPriorityTier(backends)
	if len(tier) == 0 {
		return nil
	}

	if len(tier) == 1 {
		return tier[0]
	}

	var candidates []*backend.Backend
	var leastCalls int

	for _, b := range tier {
		calls := b.SuccessfulCalls()

		switch {
		case len(candidates) == 0 || calls < leastCalls:
			leastCalls = calls
			candidates = candidates[:0]
			candidates = append(candidates, b)
		case calls == leastCalls:
			candidates = append(candidates, b)
		}
	}

	return candidates[rand.Intn(len(candidates))]
}

func NewLeastUsedStrategy() Strategy {
	return &leastUsedStrategy{}
}
