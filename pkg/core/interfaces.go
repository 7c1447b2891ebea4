package core

import (
	"context"
)

// Environment is the surface an external driver uses to advance a simulation
type Environment interface {
	// Build imports a scene from a serialized payload
	Build(ctx context.Context, data []byte) error
	// Step delivers an action and advances the simulation
	Step(ctx context.Context, action ActionVector) (StepResult, error)
	// GetObservation asks the bound agent for an observation, delivered to cb
	GetObservation(ctx context.Context, cb func(Observation)) error
	// Reset returns the built scene to its initial conditions
	Reset(ctx context.Context) error
	// Status reports the current lifecycle position
	Status() Status
}
