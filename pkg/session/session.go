package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/boristopalov/simenv/pkg/core"
	"github.com/boristopalov/simenv/pkg/plugin"
	"github.com/boristopalov/simenv/pkg/runtime"
)

// Controller is the step controller a session drives
type Controller interface {
	core.Environment
	Teardown(ctx context.Context) error
}

// Session plays the role of the plugin host: it forwards driver calls to
// the controller and fires the matching lifecycle hooks around them.
type Session struct {
	ctrl   Controller
	host   *plugin.Host
	config plugin.SceneConfig
	status core.Status
	mu     sync.Mutex
}

func New(ctrl Controller, host *plugin.Host, cfg plugin.SceneConfig) *Session {
	if host == nil {
		host = plugin.NewHost()
	}
	return &Session{
		ctrl:   ctrl,
		host:   host,
		config: cfg,
	}
}

func (s *Session) Host() *plugin.Host {
	return s.host
}

// Build builds the scene, then runs OnSceneInitialized
func (s *Session) Build(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctrl.Build(ctx, data); err != nil {
		return err
	}
	return s.hookErr("scene initialized", s.host.SceneInitialized(s.config))
}

// Step runs OnBeforeStep, advances the controller and runs OnStep. No
// hook runs when no scene is built.
func (s *Session) Step(ctx context.Context, action core.ActionVector) (core.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.ctrl.Status()
	if st.Phase == core.PhaseUnbuilt {
		return core.StepResult{}, runtime.ErrNotBuilt
	}

	ev := core.EventData{
		Step:      st.Step + 1,
		Action:    action.Clone(),
		Timestamp: time.Now(),
	}
	beforeErr := s.host.BeforeStep(ev)

	res, err := s.ctrl.Step(ctx, action)
	if err != nil {
		return res, err
	}

	ev.Step = res.Step
	ev.Result = res
	ev.Timestamp = time.Now()
	stepErr := s.host.Step(ev)

	return res, s.hookErr("step", errors.Join(beforeErr, stepErr))
}

func (s *Session) GetObservation(ctx context.Context, cb func(core.Observation)) error {
	return s.ctrl.GetObservation(ctx, cb)
}

// Reset resets the controller, then runs OnReset
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctrl.Reset(ctx); err != nil {
		return err
	}
	return s.hookErr("reset", s.host.Reset())
}

// Unload runs OnBeforeSceneUnloaded and tears the scene down. Plugins stay
// registered so another scene can be built.
func (s *Session) Unload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl.Status().Phase == core.PhaseUnbuilt {
		return runtime.ErrNotBuilt
	}
	hookErr := s.host.BeforeSceneUnloaded()
	if err := s.ctrl.Teardown(ctx); err != nil {
		return err
	}
	return s.hookErr("scene unload", hookErr)
}

// Close unloads a built scene and releases every plugin
func (s *Session) Close(ctx context.Context) error {
	var errs []error
	if s.ctrl.Status().Phase != core.PhaseUnbuilt {
		if err := s.Unload(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.host.Release(); err != nil {
		errs = append(errs, fmt.Errorf("plugin release: %w", err))
	}
	return errors.Join(errs...)
}

func (s *Session) Status() core.Status {
	return s.ctrl.Status()
}

// hookErr wraps plugin failures. The controller call they surround has
// already succeeded at this point.
func (s *Session) hookErr(phase string, err error) error {
	if err == nil {
		return nil
	}
	log.Printf("Plugins failed during %s: %v", phase, err)
	return &HookError{Phase: phase, Err: err}
}

// HookError reports plugin failures around an otherwise successful call
type HookError struct {
	Phase string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("plugin hooks failed during %s: %v", e.Phase, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}
