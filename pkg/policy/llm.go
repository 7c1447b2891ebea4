package policy

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/boristopalov/simenv/pkg/core"
	"github.com/boristopalov/simenv/pkg/memory"
	"github.com/boristopalov/simenv/pkg/providers"
)

const (
	SYSTEM_PROMPT = `You control an agent in a physics simulation. Each turn you receive the agent's latest observation as JSON and choose the next action. The action is a list of numbers; its meaning is given in the task description. Keep every value between %.2f and %.2f.`

	ACTION_PROMPT_TEMPLATE = `Task: %s
%s
Latest observation:
%s

The action has %d values. Very briefly think step by step about what the agent should do next, then give your answer after the string "ACTION" like so: ACTION: [x, y]`

	HISTORY_PROMPT_TEMPLATE = `
Earlier observations, oldest first:
%s
`

	RETRY_PROMPT_TEMPLATE = `Your previous response did not include the required format. Here was your response:

%s

Please answer with exactly %d numbers in the form ACTION: [x, y]`
)

var actionRe = regexp.MustCompile(`ACTION:\s*\[([^\]]*)\]`)

// LLM asks a language model for each action
type LLM struct {
	client providers.Client
	model  string
	task   string
	dims   int
	low    float64
	high   float64
	memory *memory.Memory
}

type LLMParams struct {
	Model   string
	Task    string
	Dims    int
	Low     float64
	High    float64
	History int // earlier observations shown to the model
}

type LLMOption func(*LLMParams)

func WithModel(model string) LLMOption {
	return func(p *LLMParams) {
		p.Model = model
	}
}

func WithTask(task string) LLMOption {
	return func(p *LLMParams) {
		p.Task = task
	}
}

func WithDims(dims int) LLMOption {
	return func(p *LLMParams) {
		p.Dims = dims
	}
}

func WithRange(low, high float64) LLMOption {
	return func(p *LLMParams) {
		p.Low = low
		p.High = high
	}
}

func WithHistory(n int) LLMOption {
	return func(p *LLMParams) {
		p.History = n
	}
}

func defaultLLMParams() *LLMParams {
	return &LLMParams{
		Model:   "gpt-4o-mini",
		Task:    "Move the agent along the x axis. The action is [vx, vz].",
		Dims:    2,
		Low:     -1,
		High:    1,
		History: 5,
	}
}

func NewLLM(client providers.Client, opts ...LLMOption) (*LLM, error) {
	if client == nil {
		return nil, fmt.Errorf("llm policy needs a provider client")
	}
	params := defaultLLMParams()
	for _, opt := range opts {
		opt(params)
	}
	if params.Dims <= 0 {
		return nil, fmt.Errorf("action dimensions must be positive, got %d", params.Dims)
	}

	llm := &LLM{
		client: client,
		model:  params.Model,
		task:   params.Task,
		dims:   params.Dims,
		low:    params.Low,
		high:   params.High,
	}
	if params.History > 0 {
		llm.memory = memory.NewMemory(params.History)
	}
	return llm, nil
}

func (p *LLM) Act(ctx context.Context, obs core.Observation) (core.ActionVector, error) {
	system := fmt.Sprintf(SYSTEM_PROMPT, p.low, p.high)
	prompt := fmt.Sprintf(ACTION_PROMPT_TEMPLATE, p.task, p.history(), obs.Content, p.dims)
	if p.memory != nil {
		p.memory.Store(obs)
	}

	response, err := p.client.Complete(ctx, p.model, system, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}
	log.Printf("Action response for agent %s: %s", obs.AgentID, response)

	action, err := parseActionResponse(response, p.dims)
	if err != nil {
		// Retry with more explicit prompt
		response, err = p.client.Complete(ctx, p.model, system, fmt.Sprintf(RETRY_PROMPT_TEMPLATE, response, p.dims))
		if err != nil {
			return nil, fmt.Errorf("failed to generate action on retry: %w", err)
		}
		action, err = parseActionResponse(response, p.dims)
		if err != nil {
			return nil, fmt.Errorf("no action found in response even after retry: %w", err)
		}
	}

	return p.clamp(action), nil
}

// history renders the remembered observations for the prompt
func (p *LLM) history() string {
	if p.memory == nil || p.memory.Len() == 0 {
		return ""
	}
	var sb strings.Builder
	for i, o := range p.memory.GetAll() {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, o.Content)
	}
	return fmt.Sprintf(HISTORY_PROMPT_TEMPLATE, strings.TrimRight(sb.String(), "\n"))
}

// Forget drops the remembered observations, e.g. between episodes
func (p *LLM) Forget() {
	if p.memory != nil {
		p.memory.Clear()
	}
}

func (p *LLM) clamp(action core.ActionVector) core.ActionVector {
	for i, v := range action {
		if v < p.low {
			action[i] = p.low
		} else if v > p.high {
			action[i] = p.high
		}
	}
	return action
}

// parseActionResponse extracts the vector following "ACTION:" from response
func parseActionResponse(response string, dims int) (core.ActionVector, error) {
	matches := actionRe.FindStringSubmatch(response)
	if len(matches) < 2 {
		return nil, fmt.Errorf("could not find action in response: %s", response)
	}

	fields := strings.Split(matches[1], ",")
	if len(fields) != dims {
		return nil, fmt.Errorf("expected %d action values, got %d", dims, len(fields))
	}

	action := make(core.ActionVector, 0, dims)
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("could not parse action value: %w", err)
		}
		action = append(action, v)
	}
	return action, nil
}
