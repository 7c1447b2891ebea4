package plugin

import (
	"errors"
	"strings"
	"testing"

	"github.com/boristopalov/simenv/pkg/core"
)

// recordingPlugin appends every hook name it sees to a shared log
type recordingPlugin struct {
	Base
	name  string
	calls *[]string
}

func (p *recordingPlugin) OnCreated() error {
	*p.calls = append(*p.calls, p.name+":created")
	return nil
}

func (p *recordingPlugin) OnStep(ev core.EventData) error {
	*p.calls = append(*p.calls, p.name+":step")
	return nil
}

func (p *recordingPlugin) OnReleased() error {
	*p.calls = append(*p.calls, p.name+":released")
	return nil
}

type failingPlugin struct {
	Base
}

func (failingPlugin) OnStep(ev core.EventData) error {
	return errors.New("boom")
}

type panickingPlugin struct {
	Base
}

func (panickingPlugin) OnBeforeStep(ev core.EventData) error {
	panic("kaboom")
}

func TestHost(t *testing.T) {
	t.Run("dispatches in registration order", func(t *testing.T) {
		var calls []string
		host := NewHost()
		if err := host.Register("a", &recordingPlugin{name: "a", calls: &calls}); err != nil {
			t.Fatalf("Failed to register a: %v", err)
		}
		if err := host.Register("b", &recordingPlugin{name: "b", calls: &calls}); err != nil {
			t.Fatalf("Failed to register b: %v", err)
		}

		if err := host.Step(core.EventData{Step: 1}); err != nil {
			t.Fatalf("Step dispatch failed: %v", err)
		}

		want := []string{"a:created", "b:created", "a:step", "b:step"}
		if strings.Join(calls, ",") != strings.Join(want, ",") {
			t.Errorf("calls = %v, want %v", calls, want)
		}
	})

	t.Run("failing plugin does not stop others", func(t *testing.T) {
		var calls []string
		host := NewHost()
		host.Register("bad", failingPlugin{})
		host.Register("good", &recordingPlugin{name: "good", calls: &calls})

		err := host.Step(core.EventData{})
		if err == nil {
			t.Fatal("Expected error from failing plugin, got nil")
		}
		if !strings.Contains(err.Error(), "bad") {
			t.Errorf("error %q does not name the failing plugin", err)
		}
		if calls[len(calls)-1] != "good:step" {
			t.Errorf("good plugin was not called after failure: %v", calls)
		}
	})

	t.Run("panicking plugin is recovered", func(t *testing.T) {
		host := NewHost()
		host.Register("panics", panickingPlugin{})

		err := host.BeforeStep(core.EventData{})
		if err == nil || !strings.Contains(err.Error(), "panicked") {
			t.Errorf("Expected recovered panic error, got %v", err)
		}
	})

	t.Run("registration management", func(t *testing.T) {
		var calls []string
		host := NewHost()
		p := &recordingPlugin{name: "p", calls: &calls}

		if err := host.Register("p", p); err != nil {
			t.Fatalf("Failed to register: %v", err)
		}
		if err := host.Register("p", p); err == nil {
			t.Error("Expected error for duplicate registration, got nil")
		}
		if err := host.Register("nil", nil); err == nil {
			t.Error("Expected error for nil plugin, got nil")
		}
		if err := host.Unregister("p"); err != nil {
			t.Fatalf("Failed to unregister: %v", err)
		}
		if err := host.Unregister("p"); err == nil {
			t.Error("Expected error for unregistering missing plugin, got nil")
		}
		if host.Len() != 0 {
			t.Errorf("Len() = %d, want 0", host.Len())
		}
		if calls[len(calls)-1] != "p:released" {
			t.Errorf("OnReleased not called: %v", calls)
		}
	})

	t.Run("release calls every plugin", func(t *testing.T) {
		var calls []string
		host := NewHost()
		host.Register("a", &recordingPlugin{name: "a", calls: &calls})
		host.Register("b", &recordingPlugin{name: "b", calls: &calls})

		if err := host.Release(); err != nil {
			t.Fatalf("Release failed: %v", err)
		}
		if host.Len() != 0 {
			t.Errorf("Len() = %d, want 0", host.Len())
		}
		want := "a:created,b:created,a:released,b:released"
		if strings.Join(calls, ",") != want {
			t.Errorf("calls = %v, want %s", calls, want)
		}
	})

	t.Run("base hooks are no-ops", func(t *testing.T) {
		var p Plugin = Base{}
		if err := p.OnSceneInitialized(SceneConfig{Name: "x"}); err != nil {
			t.Errorf("OnSceneInitialized: %v", err)
		}
		if err := p.OnReset(); err != nil {
			t.Errorf("OnReset: %v", err)
		}
		if err := p.OnBeforeSceneUnloaded(); err != nil {
			t.Errorf("OnBeforeSceneUnloaded: %v", err)
		}
	})
}

func TestSceneConfigGet(t *testing.T) {
	cfg := SceneConfig{Extra: map[string]any{"difficulty": "hard"}}
	if v, ok := cfg.Get("difficulty"); !ok || v != "hard" {
		t.Errorf("Get(difficulty) = %v, %v", v, ok)
	}
	if _, ok := (SceneConfig{}).Get("missing"); ok {
		t.Error("Get on empty config should report missing")
	}
}
