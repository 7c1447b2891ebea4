package server

import (
	"encoding/json"

	"github.com/boristopalov/simenv/pkg/core"
	"github.com/boristopalov/simenv/pkg/messaging"
)

const (
	MethodBuild   = "build"
	MethodStep    = "step"
	MethodReset   = "reset"
	MethodObserve = "observe"
	MethodClose   = "close"
	MethodStatus  = "status"
)

// Request is a driver call. Params depend on the method.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// BuildParams carries the scene payload, base64 encoded on the wire
type BuildParams struct {
	Scene []byte `json:"scene"`
}

type StepParams struct {
	Action []float64 `json:"action"`
}

// Response answers a Request. Warning is set when the call succeeded but
// a plugin hook around it failed; the call must not be retried.
type Response struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// EventFrame forwards a runtime event to every connected driver
type EventFrame struct {
	Event messaging.Event `json:"event"`
}

type StepReply struct {
	Step       uint32                    `json:"step"`
	Substeps   int                       `json:"substeps"`
	SimulatedS float64                   `json:"simulated_s"`
	AgentBound bool                      `json:"agent_bound"`
	Nodes      map[string]core.NodeState `json:"nodes,omitempty"`
}

type ObservationReply struct {
	AgentID     string          `json:"agent_id"`
	Observation json.RawMessage `json:"observation"`
}

type StatusReply struct {
	Phase    string                    `json:"phase"`
	SceneID  string                    `json:"scene_id,omitempty"`
	AgentID  string                    `json:"agent_id,omitempty"`
	Step     uint32                    `json:"step"`
	ElapsedS float64                   `json:"elapsed_s"`
	Nodes    map[string]core.NodeState `json:"nodes,omitempty"`
}
