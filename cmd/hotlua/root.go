package main

import (
	"os"

	"github.com/caffeineduck/hotlua/config"
	"github.com/caffeineduck/hotlua/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "hotlua",
	Short: "Host hot-reloadable Lua game logic",
	Long: `hotlua - Run game logic written in hot-reloadable Lua scripts.

Scripts are resolved as <root>/<module>.lua from a hot-patch bundle and a
scripts directory. The root module (Game by default) returns a table whose
Start, Update, Language and HandleNetMessage functions the host calls.
Hotfix network messages travel over a WebSocket, or a local loopback when
no URL is configured.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", config.FileName, "Path to config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// loadConfig reads the config file named by --config and applies flag
// overrides. A missing file yields the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, cfg.Log.Format)
}
