package plugin

import (
	"log"

	"github.com/boristopalov/simenv/pkg/core"
)

// StepLogger logs scene lifecycle events and every Nth step
type StepLogger struct {
	Base
	Every  uint32
	logger *log.Logger
	scene  string
}

func NewStepLogger(logger *log.Logger, every uint32) *StepLogger {
	if logger == nil {
		logger = log.Default()
	}
	if every == 0 {
		every = 1
	}
	return &StepLogger{Every: every, logger: logger}
}

func (p *StepLogger) OnSceneInitialized(cfg SceneConfig) error {
	p.scene = cfg.Name
	p.logger.Printf("[%s] scene initialized at %d fps, %d sub-steps per step", cfg.Name, cfg.FrameRate, cfg.FrameSkip)
	return nil
}

func (p *StepLogger) OnStep(ev core.EventData) error {
	if ev.Step%p.Every != 0 {
		return nil
	}
	p.logger.Printf("[%s] step %d: action=%v simulated=%v agent=%t",
		p.scene, ev.Step, []float64(ev.Action), ev.Result.Simulated, ev.Result.AgentBound)
	return nil
}

func (p *StepLogger) OnReset() error {
	p.logger.Printf("[%s] reset", p.scene)
	return nil
}

func (p *StepLogger) OnBeforeSceneUnloaded() error {
	p.logger.Printf("[%s] unloading", p.scene)
	return nil
}
