package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/boristopalov/simenv/internal/server"
	"github.com/boristopalov/simenv/pkg/agent"
	"github.com/boristopalov/simenv/pkg/config"
	"github.com/boristopalov/simenv/pkg/core"
	"github.com/boristopalov/simenv/pkg/episode"
	"github.com/boristopalov/simenv/pkg/messaging"
	"github.com/boristopalov/simenv/pkg/physics"
	"github.com/boristopalov/simenv/pkg/plugin"
	"github.com/boristopalov/simenv/pkg/policy"
	"github.com/boristopalov/simenv/pkg/providers"
	"github.com/boristopalov/simenv/pkg/runtime"
	"github.com/boristopalov/simenv/pkg/scene"
	"github.com/boristopalov/simenv/pkg/session"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "simenv",
		Short: "simenv hosts a stepped physics simulation that an external agent drives one action at a time.",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the environment to external drivers over WebSocket",
		RunE:  serve,
	}

	runCmd := &cobra.Command{
		Use:   "run [scene.gltf]",
		Short: "Play one episode with a built-in policy",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runEpisode,
	}

	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(serveCmd, runCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config and wires a session around a fresh physics world
func setup(broker messaging.Broker) (*config.Config, *session.Session, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Logging.Path != "" {
		f, err := os.OpenFile(cfg.Logging.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(f)
	}

	world := physics.NewWorld()
	factory := agent.NewBodyFactory(world, agent.WithSpeed(cfg.Agent.Speed))

	opts := []runtime.Option{
		runtime.WithFrameRate(cfg.Runtime.FrameRate),
		runtime.WithFrameSkip(cfg.Runtime.FrameSkip),
	}
	if broker != nil {
		opts = append(opts, runtime.WithBroker(broker))
	}
	ctrl, err := runtime.New(world, scene.NewGLTFImporter(), factory, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create controller: %w", err)
	}

	host := plugin.NewHost()
	if err := host.Register("step-logger", plugin.NewStepLogger(nil, 1)); err != nil {
		return nil, nil, err
	}

	return cfg, session.New(ctrl, host, cfg.SceneInit()), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

func serve(cmd *cobra.Command, args []string) error {
	broker := messaging.NewBroker()
	defer broker.Reset()

	cfg, sess, err := setup(broker)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	defer func() {
		if err := sess.Close(context.Background()); err != nil {
			log.Printf("Failed to close session: %v", err)
		}
	}()

	return server.New(sess, broker).ListenAndServe(ctx, cfg.Server.Addr)
}

func runEpisode(cmd *cobra.Command, args []string) error {
	cfg, sess, err := setup(nil)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	defer func() {
		if err := sess.Close(context.Background()); err != nil {
			log.Printf("Failed to close session: %v", err)
		}
	}()

	scenePath := cfg.Scene.Path
	if len(args) > 0 {
		scenePath = args[0]
	}
	if scenePath == "" {
		return fmt.Errorf("no scene given: pass a path or set scene.path")
	}
	sceneData, err := os.ReadFile(scenePath)
	if err != nil {
		return fmt.Errorf("failed to read scene: %w", err)
	}

	p, err := newPolicy(ctx, cfg.Policy, cfg.Scene.Seed)
	if err != nil {
		return err
	}

	statsPath := cfg.Episode.StatsPath
	if statsPath == "" {
		statsPath = fmt.Sprintf("episode_stats_%s.csv", time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(statsPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create stats directory: %w", err)
		}
	}
	statsFile, err := os.Create(statsPath)
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}
	defer statsFile.Close()

	runner, err := episode.NewRunner(sess, p, cfg.Episode.Steps, statsFile)
	if err != nil {
		return err
	}
	if _, err := runner.Run(ctx, sceneData); err != nil {
		return fmt.Errorf("episode failed: %w", err)
	}
	log.Printf("Wrote stats to %s", statsPath)
	return nil
}

func newPolicy(ctx context.Context, cfg config.PolicyConfig, seed int64) (policy.Policy, error) {
	switch cfg.Type {
	case "constant":
		return policy.Constant{Action: core.ActionVector(cfg.Action)}, nil
	case "random":
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return policy.NewRandom(cfg.Dims, cfg.Low, cfg.High, seed)
	case "llm":
		client, err := providers.New(ctx, cfg.Provider)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
		}
		opts := []policy.LLMOption{
			policy.WithDims(cfg.Dims),
			policy.WithRange(cfg.Low, cfg.High),
			policy.WithHistory(cfg.History),
		}
		if cfg.Model != "" {
			opts = append(opts, policy.WithModel(cfg.Model))
		}
		if cfg.Task != "" {
			opts = append(opts, policy.WithTask(cfg.Task))
		}
		return policy.NewLLM(client, opts...)
	default:
		return nil, fmt.Errorf("unknown policy type %q", cfg.Type)
	}
}
