package physics

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/boristopalov/simenv/pkg/scene"
)

// Simulator is the physics backend the step controller drives
type Simulator interface {
	// SetAutoSimulation toggles whether the backend advances on its own
	SetAutoSimulation(enabled bool)
	AutoSimulation() bool
	// Simulate advances the simulation by exactly dt
	Simulate(dt time.Duration) error
	// Elapsed is the total simulated time
	Elapsed() time.Duration
}

var ErrInvalidInterval = errors.New("simulation interval must be positive")

// Gravity is the default downward acceleration in m/s^2
var Gravity = mgl64.Vec3{0, -9.81, 0}

type Body struct {
	ID       string
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Mass     float64
	Dynamic  bool // dynamic bodies fall; the rest move only by their velocity
}

// World is a point-mass integrator with a ground plane at y=0. It is meant
// for local runs and tests, not as a general purpose solver.
type World struct {
	bodies  map[string]*Body
	gravity mgl64.Vec3
	auto    bool
	elapsed time.Duration
	mu      sync.RWMutex
}

func NewWorld() *World {
	return &World{
		bodies:  make(map[string]*Body),
		gravity: Gravity,
		auto:    true,
	}
}

// SetGravity overrides the world gravity vector
func (w *World) SetGravity(g mgl64.Vec3) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gravity = g
}

func (w *World) SetAutoSimulation(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.auto = enabled
}

func (w *World) AutoSimulation() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.auto
}

func (w *World) Elapsed() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.elapsed
}

// AddBody registers a body, replacing any body with the same ID
func (w *World) AddBody(b Body) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bodies[b.ID] = &b
}

// Body returns a copy of the body with the given ID
func (w *World) Body(id string) (Body, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, ok := w.bodies[id]
	if !ok {
		return Body{}, false
	}
	return *b, true
}

// SetVelocity replaces the horizontal velocity of a body. The Y component
// of v is ignored so gravity keeps control of vertical motion.
func (w *World) SetVelocity(id string, v mgl64.Vec3) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	if !ok {
		return fmt.Errorf("body %s not found", id)
	}
	b.Velocity = mgl64.Vec3{v.X(), b.Velocity.Y(), v.Z()}
	return nil
}

// Clear removes every body and resets the simulated clock
func (w *World) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bodies = make(map[string]*Body)
	w.elapsed = 0
}

func (w *World) Simulate(dt time.Duration) error {
	if dt <= 0 {
		return ErrInvalidInterval
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	secs := dt.Seconds()
	for _, b := range w.bodies {
		if !b.Dynamic {
			// kinematic: no gravity, no ground contact
			b.Position = b.Position.Add(b.Velocity.Mul(secs))
			continue
		}
		b.Velocity = b.Velocity.Add(w.gravity.Mul(secs))
		b.Position = b.Position.Add(b.Velocity.Mul(secs))

		// resting contact with the ground plane
		if b.Position.Y() < 0 {
			b.Position[1] = 0
			if b.Velocity.Y() < 0 {
				b.Velocity[1] = 0
			}
		}
	}
	w.elapsed += dt
	return nil
}

// LoadScene adds a body for every node of s. Rigid body nodes are dynamic,
// the rest are static. Bodies that already exist are left untouched.
func (w *World) LoadScene(s *scene.Scene) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s.Walk(func(n *scene.Node) bool {
		if n == s.Root {
			return true
		}
		if _, exists := w.bodies[n.ID]; !exists {
			w.bodies[n.ID] = &Body{
				ID:       n.ID,
				Position: n.Position,
				Mass:     n.Mass,
				Dynamic:  n.RigidBody,
			}
		}
		return true
	})
}

// UnloadScene drops every body
func (w *World) UnloadScene() {
	w.Clear()
}
