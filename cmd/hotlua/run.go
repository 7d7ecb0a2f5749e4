package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/caffeineduck/hotlua/config"
	"github.com/caffeineduck/hotlua/host"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the game loop",
	Long: `Start the bridge and step frames at the configured rate until
interrupted. Diagnostics are printed to stderr on the GUI interval.

Examples:
  hotlua run
  hotlua run --frames 600 --fps 120
  hotlua --config game/hotlua.toml run`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	addFrameFlags(runCmd)
	runCmd.Flags().Int("frames", 0, "Stop after this many frames (0 runs until interrupted)")
	rootCmd.AddCommand(runCmd)
}

func addFrameFlags(cmd *cobra.Command) {
	cmd.Flags().Int("fps", 0, "Frames per second (overrides config)")
	cmd.Flags().String("entry", "", "Root module name (overrides config)")
	cmd.Flags().String("scripts", "", "Scripts directory (overrides config)")
	cmd.Flags().String("bundle", "", "Hot-patch bundle file (overrides config)")
	cmd.Flags().String("url", "", "Hotfix WebSocket URL (overrides config)")
}

func applyFrameFlags(cmd *cobra.Command, cfg *config.Config) error {
	if v, _ := cmd.Flags().GetInt("fps"); v > 0 {
		cfg.Runtime.FPS = v
	}
	if v, _ := cmd.Flags().GetString("entry"); v != "" {
		cfg.Scripts.Entry = v
	}
	if v, _ := cmd.Flags().GetString("scripts"); v != "" {
		cfg.Scripts.Dir = v
	}
	if v, _ := cmd.Flags().GetString("bundle"); v != "" {
		cfg.Scripts.Bundle = v
	}
	if v, _ := cmd.Flags().GetString("url"); v != "" {
		cfg.Network.URL = v
	}
	return cfg.Validate()
}

// startHost builds the app and a started runner around its bridge.
func startHost(ctx context.Context, cmd *cobra.Command) (*app, *host.Runner, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := applyFrameFlags(cmd, cfg); err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	runner := host.NewRunner(
		host.WithFPS(cfg.Runtime.FPS),
		host.WithGUIInterval(cfg.Runtime.GUIInterval),
		host.WithGUIOutput(cmd.ErrOrStderr()),
		host.WithPumper(a.net),
		host.WithLogger(logger.Named("host")))
	runner.Register("lua", a.bridge, nil)

	a.net.Start(ctx)
	if err := runner.Start(); err != nil {
		a.close()
		return nil, nil, err
	}
	return a, runner, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	frames, _ := cmd.Flags().GetInt("frames")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, runner, err := startHost(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()
	defer runner.Stop()

	err = runner.Run(ctx, frames)
	a.logger.Info("stopped", zap.Int("frames", runner.Frames()))
	return err
}
