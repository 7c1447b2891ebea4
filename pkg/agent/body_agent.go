package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/boristopalov/simenv/pkg/core"
	"github.com/boristopalov/simenv/pkg/physics"
	"github.com/boristopalov/simenv/pkg/scene"
)

// BodyWorld is the part of a physics world a BodyAgent needs
type BodyWorld interface {
	AddBody(b physics.Body)
	Body(id string) (physics.Body, bool)
	SetVelocity(id string, v mgl64.Vec3) error
}

// BodyAgent steers a single physics body. The action vector is read as
// [vx, vz]; a single value only sets vx and an empty action stops the body.
type BodyAgent struct {
	id      string
	nodeID  string
	name    string
	speed   float64
	world   BodyWorld
	start   mgl64.Vec3
	action  core.ActionVector
	updates int
	mu      sync.Mutex
}

type AgentParams struct {
	AgentID string
	Speed   float64
}

type AgentOption func(*AgentParams)

func WithAgentID(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

// WithSpeed scales action values into velocities (m/s per unit)
func WithSpeed(speed float64) AgentOption {
	return func(p *AgentParams) {
		p.Speed = speed
	}
}

func defaultAgentParams() *AgentParams {
	return &AgentParams{
		AgentID: "agent-" + uuid.New().String(),
		Speed:   1,
	}
}

// NewBodyAgent binds an agent to node, adding a body for it to world if
// the world does not already have one.
func NewBodyAgent(world BodyWorld, node *scene.Node, opts ...AgentOption) (*BodyAgent, error) {
	if world == nil {
		return nil, fmt.Errorf("body agent needs a physics world")
	}
	if node == nil {
		return nil, fmt.Errorf("body agent needs a scene node")
	}

	params := defaultAgentParams()
	for _, opt := range opts {
		opt(params)
	}

	if _, ok := world.Body(node.ID); !ok {
		world.AddBody(physics.Body{
			ID:       node.ID,
			Position: node.Position,
			Mass:     node.Mass,
			Dynamic:  node.RigidBody,
		})
	}

	return &BodyAgent{
		id:     params.AgentID,
		nodeID: node.ID,
		name:   node.Name,
		speed:  params.Speed,
		world:  world,
		start:  node.Position,
	}, nil
}

// NewBodyFactory returns a Factory producing BodyAgents in world
func NewBodyFactory(world BodyWorld, opts ...AgentOption) Factory {
	return func(node *scene.Node) (Agent, error) {
		return NewBodyAgent(world, node, opts...)
	}
}

func (a *BodyAgent) GetID() string {
	return a.id
}

func (a *BodyAgent) SetAction(action core.ActionVector) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.action = action.Clone()
	return nil
}

func (a *BodyAgent) AgentUpdate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var v mgl64.Vec3
	if len(a.action) > 0 {
		v[0] = a.action[0] * a.speed
	}
	if len(a.action) > 1 {
		v[2] = a.action[1] * a.speed
	}
	if err := a.world.SetVelocity(a.nodeID, v); err != nil {
		return fmt.Errorf("agent %s update: %w", a.id, err)
	}
	a.updates++
	return nil
}

type bodyObservation struct {
	AgentID  string     `json:"agent_id"`
	Node     string     `json:"node"`
	Position [3]float64 `json:"position"`
	Velocity [3]float64 `json:"velocity"`
	Updates  int        `json:"updates"`
}

func (a *BodyAgent) Observe(ctx context.Context) (core.Observation, error) {
	if err := ctx.Err(); err != nil {
		return core.Observation{}, err
	}

	a.mu.Lock()
	updates := a.updates
	a.mu.Unlock()

	body, ok := a.world.Body(a.nodeID)
	if !ok {
		return core.Observation{}, fmt.Errorf("agent %s: body %s not found", a.id, a.nodeID)
	}

	content, err := json.Marshal(bodyObservation{
		AgentID:  a.id,
		Node:     a.name,
		Position: body.Position,
		Velocity: body.Velocity,
		Updates:  updates,
	})
	if err != nil {
		return core.Observation{}, err
	}

	return core.Observation{
		AgentID:   a.id,
		Content:   string(content),
		Timestamp: time.Now(),
	}, nil
}

// Reset puts the body back at its imported position
func (a *BodyAgent) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	body, ok := a.world.Body(a.nodeID)
	if !ok {
		return fmt.Errorf("agent %s: body %s not found", a.id, a.nodeID)
	}
	body.Position = a.start
	body.Velocity = mgl64.Vec3{}
	a.world.AddBody(body)

	a.action = nil
	a.updates = 0
	log.Printf("Reset agent %s", a.id)
	return nil
}
