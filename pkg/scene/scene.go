package scene

import (
	"context"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
)

// AgentTag marks the node that should be bound as the scene's agent
const AgentTag = "Agent"

// Node is one object in an imported scene graph
type Node struct {
	ID          string
	Name        string
	Tag         string
	Translation mgl64.Vec3 // relative to the parent node
	Position    mgl64.Vec3 // world space
	RigidBody   bool
	Mass        float64
	Children    []*Node
}

// Scene is the root handle of an imported scene graph
type Scene struct {
	ID   string
	Root *Node
}

// Importer turns a serialized payload into a scene graph. Nodes that should
// be driven as agents are handed to reg while importing.
type Importer interface {
	Import(ctx context.Context, data []byte, reg AgentRegistrar) (*Scene, error)
}

// AgentRegistrar receives agent nodes discovered by an Importer
type AgentRegistrar interface {
	RegisterAgent(node *Node) error
}

// New wraps root in a scene with a fresh ID
func New(root *Node) *Scene {
	return &Scene{
		ID:   uuid.NewString(),
		Root: root,
	}
}

// Walk visits every node depth-first, stopping early if fn returns false
func (s *Scene) Walk(fn func(n *Node) bool) {
	if s == nil || s.Root == nil {
		return
	}
	walk(s.Root, fn)
}

func walk(n *Node, fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// Find returns the first node matching pred, or nil
func (s *Scene) Find(pred func(n *Node) bool) *Node {
	var found *Node
	s.Walk(func(n *Node) bool {
		if pred(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

// Len returns the number of nodes below the root
func (s *Scene) Len() int {
	count := -1 // root is synthetic
	s.Walk(func(*Node) bool {
		count++
		return true
	})
	if count < 0 {
		return 0
	}
	return count
}
