package core

import (
	"time"
)

// ActionVector is the ordered set of values delivered to an agent for a
// single Step call. Its length and meaning are defined by the agent.
type ActionVector []float64

// Clone returns a copy so callers can reuse their buffer after a step.
func (a ActionVector) Clone() ActionVector {
	if a == nil {
		return nil
	}
	out := make(ActionVector, len(a))
	copy(out, a)
	return out
}

// Observation is produced by an agent and handed to the caller as-is.
type Observation struct {
	AgentID   string
	Content   string // agent-defined payload, JSON for the bundled agents
	Timestamp time.Time
}

// NodeState is the simulated state of one scene node.
type NodeState struct {
	Position [3]float64 `json:"position"`
	Velocity [3]float64 `json:"velocity"`
}

// StepResult describes what a single Step call did.
type StepResult struct {
	Step       uint32        // number of completed steps since build or reset
	Substeps   int           // sub-steps actually advanced
	Simulated  time.Duration // simulated time advanced by this call
	AgentBound bool
	Nodes      map[string]NodeState // by node name, after the last sub-step
}

// EventData is the per-step payload handed to lifecycle hooks.
type EventData struct {
	Step      uint32
	Action    ActionVector
	Result    StepResult
	Timestamp time.Time
}

// Phase is the controller's lifecycle position.
type Phase string

const (
	PhaseUnbuilt  Phase = "unbuilt"
	PhaseBuilt    Phase = "built"
	PhaseStepping Phase = "stepping"
)

type Status struct {
	Phase     Phase
	SceneID   string
	AgentID   string // empty when no agent is bound
	Step      uint32
	Elapsed   time.Duration // total simulated time since build or reset
	Nodes     map[string]NodeState
	Timestamp time.Time
}
