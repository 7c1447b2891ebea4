package plugin

import (
	"github.com/boristopalov/simenv/pkg/core"
)

// Plugin is the set of lifecycle hooks a host invokes on an extension.
// Embed Base to override only the hooks you need.
type Plugin interface {
	// OnCreated runs once when the plugin is registered with a host
	OnCreated() error
	// OnReleased runs once when the plugin is removed from a host
	OnReleased() error
	// OnSceneInitialized runs after a scene has been built
	OnSceneInitialized(cfg SceneConfig) error
	// OnBeforeStep runs before the controller advances the simulation
	OnBeforeStep(ev core.EventData) error
	// OnStep runs after all sub-steps of a step have completed
	OnStep(ev core.EventData) error
	// OnReset runs after the scene has been reset
	OnReset() error
	// OnBeforeSceneUnloaded runs before the scene is torn down
	OnBeforeSceneUnloaded() error
}

// SceneConfig carries the scene initialization options handed to
// OnSceneInitialized. Options without a dedicated field go in Extra.
type SceneConfig struct {
	Name      string         `yaml:"name"`
	FrameRate int            `yaml:"frame_rate"`
	FrameSkip int            `yaml:"frame_skip"`
	Seed      int64          `yaml:"seed"`
	Extra     map[string]any `yaml:"extra"`
}

// Get returns an option from Extra.
func (c SceneConfig) Get(key string) (any, bool) {
	if c.Extra == nil {
		return nil, false
	}
	v, ok := c.Extra[key]
	return v, ok
}

// Base implements every hook as a no-op.
type Base struct{}

func (Base) OnCreated() error                         { return nil }
func (Base) OnReleased() error                        { return nil }
func (Base) OnSceneInitialized(cfg SceneConfig) error { return nil }
func (Base) OnBeforeStep(ev core.EventData) error     { return nil }
func (Base) OnStep(ev core.EventData) error           { return nil }
func (Base) OnReset() error                           { return nil }
func (Base) OnBeforeSceneUnloaded() error             { return nil }
