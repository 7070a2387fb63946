package strategy

import (
	"math/rand"

	"github.com/angeloszaimis/priority-balancer/internal/backend"
)

type randomStrategy struct{}

// SelectBackend picks a uniformly random backend within the best priority
// tier. Independent processes running their own balancer cannot coordinate,
// so randomization is the cheapest way to approximate even distribution.
func (r *randomStrategy) SelectBackend(backends []*backend.Backend) *backend.Backend {
	tier := bestPriorityTier(backends)
	if len(tier) == 0 {
		return nil
	}

	return tier[rand.Intn(len(tier))]
}

func NewRandomStrategy() Strategy {
	return &randomStrategy{}
}
