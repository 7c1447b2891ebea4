package plugin

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/boristopalov/simenv/pkg/core"
)

func TestStepLogger(t *testing.T) {
	var buf bytes.Buffer
	p := NewStepLogger(log.New(&buf, "", 0), 2)

	h := NewHost()
	if err := h.Register("logger", p); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	h.SceneInitialized(SceneConfig{Name: "arena", FrameRate: 30, FrameSkip: 10})
	for i := uint32(1); i <= 4; i++ {
		h.Step(core.EventData{
			Step:   i,
			Action: core.ActionVector{0.5},
			Result: core.StepResult{Step: i, Simulated: 330 * time.Millisecond, AgentBound: true},
		})
	}
	h.Reset()
	h.BeforeSceneUnloaded()

	out := buf.String()
	if !strings.Contains(out, "[arena] scene initialized at 30 fps, 10 sub-steps per step") {
		t.Errorf("missing init line in %q", out)
	}
	if strings.Contains(out, "step 1:") || strings.Contains(out, "step 3:") {
		t.Errorf("odd steps should be skipped, got %q", out)
	}
	if !strings.Contains(out, "step 2:") || !strings.Contains(out, "step 4:") {
		t.Errorf("even steps should be logged, got %q", out)
	}
	if !strings.Contains(out, "[arena] reset") || !strings.Contains(out, "[arena] unloading") {
		t.Errorf("missing lifecycle lines in %q", out)
	}

	t.Run("zero interval logs every step", func(t *testing.T) {
		if NewStepLogger(nil, 0).Every != 1 {
			t.Error("Every should default to 1")
		}
	})
}
