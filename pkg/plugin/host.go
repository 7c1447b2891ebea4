package plugin

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/boristopalov/simenv/pkg/core"
)

// Host keeps registered plugins in registration order and dispatches
// lifecycle hooks to them. A failing or panicking plugin never stops the
// remaining plugins from being called.
type Host struct {
	ids     []string
	plugins map[string]Plugin
	mu      sync.RWMutex
}

// NewHost creates an empty plugin host
func NewHost() *Host {
	return &Host{
		plugins: make(map[string]Plugin),
	}
}

// Register adds a plugin and calls its OnCreated hook
func (h *Host) Register(id string, p Plugin) error {
	if p == nil {
		return fmt.Errorf("plugin %s is nil", id)
	}

	h.mu.Lock()
	if _, exists := h.plugins[id]; exists {
		h.mu.Unlock()
		return fmt.Errorf("plugin %s is already registered", id)
	}
	h.plugins[id] = p
	h.ids = append(h.ids, id)
	h.mu.Unlock()

	return invoke(id, "OnCreated", p.OnCreated)
}

// Unregister removes a plugin and calls its OnReleased hook
func (h *Host) Unregister(id string) error {
	h.mu.Lock()
	p, exists := h.plugins[id]
	if !exists {
		h.mu.Unlock()
		return fmt.Errorf("plugin %s is not registered", id)
	}
	delete(h.plugins, id)
	for i, existing := range h.ids {
		if existing == id {
			h.ids = append(h.ids[:i], h.ids[i+1:]...)
			break
		}
	}
	h.mu.Unlock()

	return invoke(id, "OnReleased", p.OnReleased)
}

// Len returns the number of registered plugins
func (h *Host) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ids)
}

func (h *Host) SceneInitialized(cfg SceneConfig) error {
	return h.each("OnSceneInitialized", func(p Plugin) error { return p.OnSceneInitialized(cfg) })
}

func (h *Host) BeforeStep(ev core.EventData) error {
	return h.each("OnBeforeStep", func(p Plugin) error { return p.OnBeforeStep(ev) })
}

func (h *Host) Step(ev core.EventData) error {
	return h.each("OnStep", func(p Plugin) error { return p.OnStep(ev) })
}

func (h *Host) Reset() error {
	return h.each("OnReset", func(p Plugin) error { return p.OnReset() })
}

func (h *Host) BeforeSceneUnloaded() error {
	return h.each("OnBeforeSceneUnloaded", func(p Plugin) error { return p.OnBeforeSceneUnloaded() })
}

// Release unregisters every plugin, calling OnReleased on each
func (h *Host) Release() error {
	h.mu.RLock()
	ids := make([]string, len(h.ids))
	copy(ids, h.ids)
	h.mu.RUnlock()

	var errs []error
	for _, id := range ids {
		if err := h.Unregister(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// each calls fn for every plugin against a snapshot of the registry so
// hooks may register or unregister plugins without deadlocking.
func (h *Host) each(hook string, fn func(Plugin) error) error {
	h.mu.RLock()
	ids := make([]string, len(h.ids))
	copy(ids, h.ids)
	plugins := make([]Plugin, len(ids))
	for i, id := range ids {
		plugins[i] = h.plugins[id]
	}
	h.mu.RUnlock()

	var errs []error
	for i, p := range plugins {
		if err := invoke(ids[i], hook, func() error { return fn(p) }); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invoke(id, hook string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s %s panicked: %v", id, hook, r)
		}
		if err != nil {
			log.Printf("Plugin hook failed: %v", err)
		}
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("plugin %s %s: %w", id, hook, err)
	}
	return nil
}
