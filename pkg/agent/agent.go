package agent

import (
	"context"

	"github.com/boristopalov/simenv/pkg/core"
	"github.com/boristopalov/simenv/pkg/scene"
)

// Agent is the controllable entity of a scene. It receives one action per
// step, is updated once per sub-step and produces observations on demand.
type Agent interface {
	GetID() string
	// SetAction delivers the action vector for the coming step
	SetAction(action core.ActionVector) error
	// AgentUpdate runs once per physics sub-step, before the physics advance
	AgentUpdate() error
	// Observe computes the agent's current observation
	Observe(ctx context.Context) (core.Observation, error)
}

// Resetter is implemented by agents that can return to their initial state
type Resetter interface {
	Reset() error
}

// Factory creates the agent for a node registered by a scene importer
type Factory func(node *scene.Node) (Agent, error)
