package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/boristopalov/simenv/pkg/plugin"
)

type Config struct {
	Name    string        `yaml:"name"`
	Runtime RuntimeConfig `yaml:"runtime"`
	Scene   SceneConfig   `yaml:"scene"`
	Agent   AgentConfig   `yaml:"agent"`
	Policy  PolicyConfig  `yaml:"policy"`
	Episode EpisodeConfig `yaml:"episode"`
	Server  ServerConfig  `yaml:"server"`
	Logging LogConfig     `yaml:"logging"`
}

// RuntimeConfig holds the step controller constants. They are read once
// at startup and never change for the life of the process.
type RuntimeConfig struct {
	FrameRate int `yaml:"frame_rate"`
	FrameSkip int `yaml:"frame_skip"`
}

type SceneConfig struct {
	Path  string         `yaml:"path"`
	Seed  int64          `yaml:"seed"`
	Extra map[string]any `yaml:"extra"`
}

type AgentConfig struct {
	Speed float64 `yaml:"speed"`
}

type PolicyConfig struct {
	Type     string    `yaml:"type"` // constant, random or llm
	Provider string    `yaml:"provider"`
	Model    string    `yaml:"model"`
	Task     string    `yaml:"task"`
	Dims     int       `yaml:"dims"`
	Low      float64   `yaml:"low"`
	High     float64   `yaml:"high"`
	Action   []float64 `yaml:"action"`
	History  int       `yaml:"history"` // earlier observations shown to the llm policy
}

type EpisodeConfig struct {
	Steps     int    `yaml:"steps"`
	StatsPath string `yaml:"stats_path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Path string `yaml:"path"`
}

func Default() *Config {
	return &Config{
		Name: "simenv",
		Runtime: RuntimeConfig{
			FrameRate: 30,
			FrameSkip: 10,
		},
		Agent: AgentConfig{
			Speed: 1,
		},
		Policy: PolicyConfig{
			Type:     "random",
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Dims:     2,
			Low:      -1,
			High:     1,
			History:  5,
		},
		Episode: EpisodeConfig{
			Steps: 10,
		},
		Server: ServerConfig{
			Addr: ":8765",
		},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns
// the defaults. Environment overrides are applied last.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SIMENV_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SIMENV_FRAME_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SIMENV_FRAME_RATE %q: %w", v, err)
		}
		c.Runtime.FrameRate = n
	}
	if v := os.Getenv("SIMENV_FRAME_SKIP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SIMENV_FRAME_SKIP %q: %w", v, err)
		}
		c.Runtime.FrameSkip = n
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Runtime.FrameRate <= 0 {
		return fmt.Errorf("runtime.frame_rate must be positive, got %d", c.Runtime.FrameRate)
	}
	if c.Runtime.FrameSkip <= 0 {
		return fmt.Errorf("runtime.frame_skip must be positive, got %d", c.Runtime.FrameSkip)
	}
	if c.Episode.Steps < 0 {
		return fmt.Errorf("episode.steps must not be negative, got %d", c.Episode.Steps)
	}
	switch c.Policy.Type {
	case "constant", "random", "llm":
	default:
		return fmt.Errorf("unknown policy type %q", c.Policy.Type)
	}
	return nil
}

// SceneInit returns the options handed to plugins once a scene is built
func (c *Config) SceneInit() plugin.SceneConfig {
	return plugin.SceneConfig{
		Name:      c.Name,
		FrameRate: c.Runtime.FrameRate,
		FrameSkip: c.Runtime.FrameSkip,
		Seed:      c.Scene.Seed,
		Extra:     c.Scene.Extra,
	}
}
