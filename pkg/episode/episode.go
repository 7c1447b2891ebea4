package episode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/boristopalov/simenv/pkg/core"
	"github.com/boristopalov/simenv/pkg/policy"
	"github.com/boristopalov/simenv/pkg/runtime"
)

const statsHeader = "Step,SimulatedMs,AgentBound,Action,ObservationBytes,Nodes\n"

// Environment is what an episode drives; *session.Session satisfies it
type Environment interface {
	core.Environment
	Unload(ctx context.Context) error
}

// Runner plays one episode: build the scene, then repeatedly observe,
// choose an action and step.
type Runner struct {
	env    Environment
	policy policy.Policy
	steps  int
	stats  io.Writer
}

// Summary describes a finished episode
type Summary struct {
	Steps        int
	Simulated    time.Duration
	Observations int
	Final        core.Observation
	Nodes        map[string]core.NodeState // after the last step
	Duration     time.Duration
}

func NewRunner(env Environment, p policy.Policy, steps int, stats io.Writer) (*Runner, error) {
	if env == nil {
		return nil, fmt.Errorf("episode needs an environment")
	}
	if p == nil {
		return nil, fmt.Errorf("episode needs a policy")
	}
	if steps < 0 {
		return nil, fmt.Errorf("steps must not be negative, got %d", steps)
	}

	r := &Runner{
		env:    env,
		policy: p,
		steps:  steps,
		stats:  stats,
	}
	if r.stats != nil {
		if _, err := io.WriteString(r.stats, statsHeader); err != nil {
			log.Printf("Warning: Failed to write stats header: %v", err)
		}
	}
	return r, nil
}

// Run builds sceneData, plays the episode and always unloads the scene
func (r *Runner) Run(ctx context.Context, sceneData []byte) (summary Summary, err error) {
	start := time.Now()
	if err := r.env.Build(ctx, sceneData); err != nil {
		return summary, fmt.Errorf("failed to build scene: %w", err)
	}
	defer func() {
		if uerr := r.env.Unload(ctx); uerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to unload scene: %w", uerr))
		}
		summary.Duration = time.Since(start)
	}()

	for i := 0; i < r.steps; i++ {
		obs, ok, err := r.observe(ctx)
		if err != nil {
			return summary, fmt.Errorf("step %d observation: %w", i+1, err)
		}
		if ok {
			summary.Observations++
			summary.Final = obs
		}

		action, err := r.policy.Act(ctx, obs)
		if err != nil {
			return summary, fmt.Errorf("step %d policy: %w", i+1, err)
		}

		res, err := r.env.Step(ctx, action)
		if err != nil {
			return summary, fmt.Errorf("step %d: %w", i+1, err)
		}
		summary.Steps++
		summary.Simulated += res.Simulated
		summary.Nodes = res.Nodes
		r.writeStats(res, action, obs)
	}

	if obs, ok, err := r.observe(ctx); err == nil && ok {
		summary.Observations++
		summary.Final = obs
	}

	r.printSummary(summary)
	return summary, nil
}

// observe waits for the asynchronous observation callback. A scene without
// an agent yields an empty observation and ok=false.
func (r *Runner) observe(ctx context.Context) (core.Observation, bool, error) {
	ch := make(chan core.Observation, 1)
	err := r.env.GetObservation(ctx, func(o core.Observation) { ch <- o })
	if errors.Is(err, runtime.ErrNoAgent) {
		return core.Observation{}, false, nil
	}
	if err != nil {
		return core.Observation{}, false, err
	}

	select {
	case o := <-ch:
		return o, true, nil
	case <-ctx.Done():
		return core.Observation{}, false, ctx.Err()
	}
}

func (r *Runner) writeStats(res core.StepResult, action core.ActionVector, obs core.Observation) {
	if r.stats == nil {
		return
	}
	line := fmt.Sprintf("%d,%.3f,%t,%q,%d,%q\n",
		res.Step,
		float64(res.Simulated)/float64(time.Millisecond),
		res.AgentBound,
		fmt.Sprint([]float64(action)),
		len(obs.Content),
		formatNodes(res.Nodes),
	)
	if _, err := io.WriteString(r.stats, line); err != nil {
		log.Printf("Warning: Failed to write to stats file: %v", err)
	}
}

// formatNodes renders node positions as "name=(x y z)", sorted by name
func formatNodes(nodes map[string]core.NodeState) string {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		p := nodes[name].Position
		parts = append(parts, fmt.Sprintf("%s=(%.3f %.3f %.3f)", name, p[0], p[1], p[2]))
	}
	return strings.Join(parts, " ")
}

func (r *Runner) printSummary(s Summary) {
	log.Printf("\n=== Episode Statistics ===")
	log.Printf("  Steps: %d", s.Steps)
	log.Printf("  Simulated Time: %v", s.Simulated)
	log.Printf("  Observations: %d", s.Observations)
	if s.Final.Content != "" {
		log.Printf("  Final Observation: %s", s.Final.Content)
	}
	if len(s.Nodes) > 0 {
		log.Printf("  Final Nodes: %s", formatNodes(s.Nodes))
	}
	log.Printf("==========================\n")
}
