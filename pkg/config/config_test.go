package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simenv.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Runtime.FrameRate != 30 || cfg.Runtime.FrameSkip != 10 {
			t.Errorf("unexpected runtime defaults %+v", cfg.Runtime)
		}
		if cfg.Policy.History != 5 {
			t.Errorf("policy history = %d, want 5", cfg.Policy.History)
		}
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := writeConfig(t, `
name: falling_cube
runtime:
  frame_rate: 60
scene:
  path: scenes/cube.gltf
  seed: 7
  extra:
    difficulty: hard
policy:
  type: constant
  action: [0.5, 0]
  history: 3
episode:
  steps: 25
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Runtime.FrameRate != 60 || cfg.Runtime.FrameSkip != 10 {
			t.Errorf("runtime = %+v, want rate 60 skip 10", cfg.Runtime)
		}
		if cfg.Policy.Type != "constant" || len(cfg.Policy.Action) != 2 || cfg.Policy.History != 3 {
			t.Errorf("policy = %+v", cfg.Policy)
		}

		sc := cfg.SceneInit()
		if sc.Name != "falling_cube" || sc.Seed != 7 || sc.FrameRate != 60 {
			t.Errorf("scene init = %+v", sc)
		}
		if v, ok := sc.Get("difficulty"); !ok || v != "hard" {
			t.Errorf("extra difficulty = %v, %v", v, ok)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("SIMENV_FRAME_SKIP", "4")
		t.Setenv("SIMENV_SERVER_ADDR", "127.0.0.1:9000")
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Runtime.FrameSkip != 4 || cfg.Server.Addr != "127.0.0.1:9000" {
			t.Errorf("env overrides not applied: %+v %+v", cfg.Runtime, cfg.Server)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		cases := map[string]string{
			"zero rate":    "runtime:\n  frame_rate: 0\n",
			"bad policy":   "policy:\n  type: genetic\n",
			"bad yaml":     "runtime: [",
			"neg episodes": "episode:\n  steps: -1\n",
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				if _, err := LoadConfig(writeConfig(t, body)); err == nil {
					t.Error("Expected error, got nil")
				}
			})
		}

		t.Setenv("SIMENV_FRAME_RATE", "fast")
		if _, err := LoadConfig(""); err == nil {
			t.Error("Expected error for non-numeric SIMENV_FRAME_RATE")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Error("Expected error for missing file")
		}
	})
}
