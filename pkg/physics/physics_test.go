package physics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

func TestWorld(t *testing.T) {
	t.Run("dynamic body falls and rests on ground", func(t *testing.T) {
		w := NewWorld()
		w.AddBody(Body{ID: "cube", Position: mgl64.Vec3{0, 3, 0}, Mass: 1, Dynamic: true})

		prev := 3.0
		for i := 0; i < 10; i++ {
			if err := w.Simulate(time.Second / 30); err != nil {
				t.Fatalf("Simulate failed: %v", err)
			}
			b, _ := w.Body("cube")
			if b.Position.Y() > prev {
				t.Fatalf("cube rose from %.3f to %.3f", prev, b.Position.Y())
			}
			prev = b.Position.Y()
		}
		if prev >= 3 {
			t.Errorf("cube did not fall, y=%.3f", prev)
		}

		for i := 0; i < 300; i++ {
			w.Simulate(time.Second / 30)
		}
		b, _ := w.Body("cube")
		if b.Position.Y() != 0 || b.Velocity.Y() != 0 {
			t.Errorf("cube not resting on ground: %+v", b)
		}
	})

	t.Run("static body does not move", func(t *testing.T) {
		w := NewWorld()
		w.AddBody(Body{ID: "floor", Position: mgl64.Vec3{0, 1, 0}})
		w.Simulate(time.Second)
		b, _ := w.Body("floor")
		if b.Position.Y() != 1 {
			t.Errorf("static body moved to %v", b.Position)
		}
	})

	t.Run("elapsed accumulates exact intervals", func(t *testing.T) {
		w := NewWorld()
		dt := time.Second / 30
		for i := 0; i < 10; i++ {
			w.Simulate(dt)
		}
		if got := w.Elapsed(); got != 10*dt {
			t.Errorf("Elapsed() = %v, want %v", got, 10*dt)
		}
	})

	t.Run("velocity drives horizontal motion", func(t *testing.T) {
		w := NewWorld()
		w.SetGravity(mgl64.Vec3{})
		w.AddBody(Body{ID: "a", Dynamic: true})
		if err := w.SetVelocity("a", mgl64.Vec3{2, 0, -1}); err != nil {
			t.Fatalf("SetVelocity failed: %v", err)
		}
		w.Simulate(time.Second / 2)
		b, _ := w.Body("a")
		if math.Abs(b.Position.X()-1) > 1e-9 || math.Abs(b.Position.Z()+0.5) > 1e-9 {
			t.Errorf("position = %v, want [1 0 -0.5]", b.Position)
		}
		if err := w.SetVelocity("missing", mgl64.Vec3{}); err == nil {
			t.Error("Expected error for missing body, got nil")
		}
	})

	t.Run("static body with velocity moves without gravity", func(t *testing.T) {
		w := NewWorld()
		w.AddBody(Body{ID: "cart", Position: mgl64.Vec3{0, 2, 0}})
		if err := w.SetVelocity("cart", mgl64.Vec3{1, 0, 0}); err != nil {
			t.Fatalf("SetVelocity failed: %v", err)
		}
		for i := 0; i < 10; i++ {
			w.Simulate(100 * time.Millisecond)
		}
		b, _ := w.Body("cart")
		if math.Abs(b.Position.X()-1) > 1e-9 || b.Position.Y() != 2 {
			t.Errorf("position = %v, want [1 2 0]", b.Position)
		}
	})

	t.Run("rejects non-positive interval", func(t *testing.T) {
		w := NewWorld()
		if err := w.Simulate(0); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("Simulate(0) = %v, want ErrInvalidInterval", err)
		}
	})

	t.Run("auto simulation toggle and clear", func(t *testing.T) {
		w := NewWorld()
		if !w.AutoSimulation() {
			t.Error("auto simulation should default to enabled")
		}
		w.SetAutoSimulation(false)
		if w.AutoSimulation() {
			t.Error("auto simulation still enabled")
		}
		w.AddBody(Body{ID: "a"})
		w.Simulate(time.Second)
		w.Clear()
		if _, ok := w.Body("a"); ok || w.Elapsed() != 0 {
			t.Error("Clear did not reset the world")
		}
	})
}
