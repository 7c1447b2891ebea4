package policy

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/boristopalov/simenv/pkg/core"
)

// Policy chooses the next action from the latest observation
type Policy interface {
	Act(ctx context.Context, obs core.Observation) (core.ActionVector, error)
}

// Constant always returns the same action
type Constant struct {
	Action core.ActionVector
}

func (p Constant) Act(ctx context.Context, obs core.Observation) (core.ActionVector, error) {
	return p.Action.Clone(), nil
}

// Random samples each action component uniformly from [Low, High]
type Random struct {
	dims      int
	low, high float64
	rng       *rand.Rand
	mu        sync.Mutex
}

func NewRandom(dims int, low, high float64, seed int64) (*Random, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("action dimensions must be positive, got %d", dims)
	}
	if high < low {
		return nil, fmt.Errorf("invalid action range [%v, %v]", low, high)
	}
	return &Random{
		dims: dims,
		low:  low,
		high: high,
		rng:  rand.New(rand.NewSource(seed)),
	}, nil
}

func (p *Random) Act(ctx context.Context, obs core.Observation) (core.ActionVector, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	action := make(core.ActionVector, p.dims)
	for i := range action {
		action[i] = p.low + p.rng.Float64()*(p.high-p.low)
	}
	return action, nil
}
