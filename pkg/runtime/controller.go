package runtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/boristopalov/simenv/pkg/agent"
	"github.com/boristopalov/simenv/pkg/core"
	"github.com/boristopalov/simenv/pkg/messaging"
	"github.com/boristopalov/simenv/pkg/physics"
	"github.com/boristopalov/simenv/pkg/scene"
)

const (
	DefaultFrameRate = 30
	DefaultFrameSkip = 10
)

var (
	ErrNotBuilt       = errors.New("no scene has been built")
	ErrAlreadyBuilt   = errors.New("a scene is already built, tear it down first")
	ErrNoAgent        = errors.New("no agent bound to scene")
	ErrMultipleAgents = errors.New("scene registers more than one agent")
)

var _ core.Environment = (*Controller)(nil)

// sceneLoader is implemented by simulators that mirror the scene graph
type sceneLoader interface {
	LoadScene(s *scene.Scene)
	UnloadScene()
}

// bodyReader is implemented by simulators that expose per-body state
type bodyReader interface {
	Body(id string) (physics.Body, bool)
}

// Controller builds a scene, binds its agent and advances the simulation
// in fixed sub-steps for every external Step call. Frame rate and frame
// skip are fixed for the lifetime of a Controller.
type Controller struct {
	sim       physics.Simulator
	importer  scene.Importer
	factory   agent.Factory
	broker    messaging.Broker
	frameRate int
	frameSkip int

	scene   *scene.Scene
	agent   agent.Agent
	phase   core.Phase
	step    uint32
	elapsed time.Duration
	mu      sync.Mutex

	deliveries sync.WaitGroup
}

type ControllerParams struct {
	FrameRate int
	FrameSkip int
	Broker    messaging.Broker
}

type Option func(*ControllerParams)

// WithFrameRate sets the simulated frames per second. Each sub-step
// advances physics by 1/rate seconds.
func WithFrameRate(rate int) Option {
	return func(p *ControllerParams) {
		p.FrameRate = rate
	}
}

// WithFrameSkip sets the number of physics sub-steps per Step call
func WithFrameSkip(n int) Option {
	return func(p *ControllerParams) {
		p.FrameSkip = n
	}
}

// WithBroker publishes runtime events to b
func WithBroker(b messaging.Broker) Option {
	return func(p *ControllerParams) {
		p.Broker = b
	}
}

func New(sim physics.Simulator, importer scene.Importer, factory agent.Factory, opts ...Option) (*Controller, error) {
	params := &ControllerParams{
		FrameRate: DefaultFrameRate,
		FrameSkip: DefaultFrameSkip,
	}
	for _, opt := range opts {
		opt(params)
	}

	if sim == nil {
		return nil, fmt.Errorf("controller needs a physics simulator")
	}
	if importer == nil {
		return nil, fmt.Errorf("controller needs a scene importer")
	}
	if factory == nil {
		return nil, fmt.Errorf("controller needs an agent factory")
	}
	if params.FrameRate <= 0 {
		return nil, fmt.Errorf("frame rate must be positive, got %d", params.FrameRate)
	}
	if params.FrameSkip <= 0 {
		return nil, fmt.Errorf("frame skip must be positive, got %d", params.FrameSkip)
	}

	return &Controller{
		sim:       sim,
		importer:  importer,
		factory:   factory,
		broker:    params.Broker,
		frameRate: params.FrameRate,
		frameSkip: params.FrameSkip,
		phase:     core.PhaseUnbuilt,
	}, nil
}

// FrameInterval is the simulated time of one sub-step, 1/frameRate seconds
// rounded down to the nanosecond.
func (c *Controller) FrameInterval() time.Duration {
	return time.Second / time.Duration(c.frameRate)
}

func (c *Controller) FrameRate() int {
	return c.frameRate
}

func (c *Controller) FrameSkip() int {
	return c.frameSkip
}

// registrar collects the agent nodes an importer hands over during a build
type registrar struct {
	node *scene.Node
}

func (r *registrar) RegisterAgent(n *scene.Node) error {
	if n == nil {
		return fmt.Errorf("agent node is nil")
	}
	if r.node != nil {
		return fmt.Errorf("%w: %s and %s", ErrMultipleAgents, r.node.Name, n.Name)
	}
	r.node = n
	return nil
}

// Build turns off automatic physics, imports the scene in data and binds
// the agent the importer registered, if any. A built scene must be torn
// down before another one can be built.
func (c *Controller) Build(ctx context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != core.PhaseUnbuilt {
		return ErrAlreadyBuilt
	}

	c.sim.SetAutoSimulation(false)

	reg := &registrar{}
	s, err := c.importer.Import(ctx, data, reg)
	if err != nil {
		return fmt.Errorf("failed to import scene: %w", err)
	}
	if s == nil {
		return fmt.Errorf("failed to import scene: importer returned no scene")
	}

	loader, hasLoader := c.sim.(sceneLoader)
	if hasLoader {
		loader.LoadScene(s)
	}
	log.Println("environment built")

	var bound agent.Agent
	if reg.node != nil {
		bound, err = c.factory(reg.node)
		if err != nil {
			if hasLoader {
				loader.UnloadScene()
			}
			return fmt.Errorf("failed to create agent for %s: %w", reg.node.Name, err)
		}
		log.Printf("found agent %s on node %s", bound.GetID(), reg.node.Name)
	} else {
		log.Println("no agent in scene")
	}

	c.scene = s
	c.agent = bound
	c.phase = core.PhaseBuilt
	c.step = 0
	c.elapsed = 0

	c.publish(messaging.EventBuilt, c.agentID())
	return nil
}

// Step hands action to the bound agent, then runs FrameSkip sub-steps of
// agent update followed by one fixed-interval physics advance. Without an
// agent only physics advances. Once started the sub-steps always run to
// completion unless the agent or the simulator fails.
func (c *Controller) Step(ctx context.Context, action core.ActionVector) (core.StepResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == core.PhaseUnbuilt {
		return core.StepResult{}, ErrNotBuilt
	}
	if err := ctx.Err(); err != nil {
		return core.StepResult{}, err
	}

	c.phase = core.PhaseStepping
	defer func() { c.phase = core.PhaseBuilt }()

	result := core.StepResult{AgentBound: c.agent != nil}
	if c.agent != nil {
		log.Printf("stepping agent %s", c.agent.GetID())
		if err := c.agent.SetAction(action.Clone()); err != nil {
			return result, fmt.Errorf("agent %s rejected action: %w", c.agent.GetID(), err)
		}
	} else {
		log.Println("Warning, attempting to step environment with an agent")
	}

	interval := c.FrameInterval()
	for i := 0; i < c.frameSkip; i++ {
		if c.agent != nil {
			if err := c.agent.AgentUpdate(); err != nil {
				return result, fmt.Errorf("sub-step %d: agent update: %w", i, err)
			}
		}
		if err := c.sim.Simulate(interval); err != nil {
			return result, fmt.Errorf("sub-step %d: simulate: %w", i, err)
		}
		result.Substeps++
		result.Simulated += interval
		c.elapsed += interval
	}

	c.step++
	result.Step = c.step
	result.Nodes = c.nodeStates()
	c.publish(messaging.EventStepped, result)
	return result, nil
}

// GetObservation asks the bound agent for its current observation and
// delivers it to cb on a separate goroutine. cb is called exactly once
// when GetObservation returns nil and never otherwise.
func (c *Controller) GetObservation(ctx context.Context, cb func(core.Observation)) error {
	if cb == nil {
		return fmt.Errorf("observation callback is nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == core.PhaseUnbuilt {
		return ErrNotBuilt
	}
	if c.agent == nil {
		return ErrNoAgent
	}

	obs, err := c.agent.Observe(ctx)
	if err != nil {
		return fmt.Errorf("agent %s observation: %w", c.agent.GetID(), err)
	}
	c.publish(messaging.EventObservation, obs)

	c.deliveries.Add(1)
	go func() {
		defer c.deliveries.Done()
		cb(obs)
	}()
	return nil
}

// Wait blocks until every pending observation callback has returned
func (c *Controller) Wait() {
	c.deliveries.Wait()
}

// Reset reloads the scene into the simulator, returns the bound agent to
// its initial state and restarts the step count and simulated clock. The
// scene stays built.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == core.PhaseUnbuilt {
		return ErrNotBuilt
	}
	if loader, ok := c.sim.(sceneLoader); ok {
		loader.UnloadScene()
		loader.LoadScene(c.scene)
	}
	if r, ok := c.agent.(agent.Resetter); ok {
		if err := r.Reset(); err != nil {
			return fmt.Errorf("agent %s reset: %w", c.agent.GetID(), err)
		}
	}
	c.step = 0
	c.elapsed = 0

	c.publish(messaging.EventReset, nil)
	return nil
}

// Teardown releases the scene and unbinds the agent so another scene can
// be built.
func (c *Controller) Teardown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == core.PhaseUnbuilt {
		return ErrNotBuilt
	}
	if loader, ok := c.sim.(sceneLoader); ok {
		loader.UnloadScene()
	}

	c.publish(messaging.EventTeardown, nil)
	log.Printf("Released scene %s", c.scene.ID)

	c.scene = nil
	c.agent = nil
	c.phase = core.PhaseUnbuilt
	c.step = 0
	c.elapsed = 0
	return nil
}

// Scene returns the built scene, or nil
func (c *Controller) Scene() *scene.Scene {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scene
}

func (c *Controller) Status() core.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := core.Status{
		Phase:     c.phase,
		AgentID:   c.agentID(),
		Step:      c.step,
		Elapsed:   c.elapsed,
		Timestamp: time.Now(),
	}
	if c.scene != nil {
		st.SceneID = c.scene.ID
		st.Nodes = c.nodeStates()
	}
	return st
}

// nodeStates reads every scene node's body from the simulator. Nodes are
// keyed by name; a repeated name gets "#<id>" appended. It returns nil when
// the simulator does not expose bodies.
func (c *Controller) nodeStates() map[string]core.NodeState {
	r, ok := c.sim.(bodyReader)
	if !ok || c.scene == nil {
		return nil
	}
	nodes := make(map[string]core.NodeState)
	c.scene.Walk(func(n *scene.Node) bool {
		if n == c.scene.Root {
			return true
		}
		b, ok := r.Body(n.ID)
		if !ok {
			return true
		}
		key := n.Name
		if _, dup := nodes[key]; dup {
			key = n.Name + "#" + n.ID
		}
		nodes[key] = core.NodeState{
			Position: [3]float64(b.Position),
			Velocity: [3]float64(b.Velocity),
		}
		return true
	})
	return nodes
}

func (c *Controller) agentID() string {
	if c.agent == nil {
		return ""
	}
	return c.agent.GetID()
}

func (c *Controller) publish(t messaging.EventType, content any) {
	if c.broker == nil {
		return
	}
	ev := messaging.Event{
		Type:      t,
		Content:   content,
		Timestamp: time.Now(),
	}
	if c.scene != nil {
		ev.SceneID = c.scene.ID
	}
	if err := c.broker.Publish(ev); err != nil {
		log.Printf("Failed to publish %s event: %v", t, err)
	}
}
