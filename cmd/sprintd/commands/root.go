// Package commands implements the sprintd CLI commands using cobra.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marcus/sprintd/internal/config"
	"github.com/marcus/sprintd/internal/logging"
)

var (
	// Version is set at build time.
	Version = "0.2.0"
)

var (
	configPath   string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "sprintd",
	Short: "Autonomous multi-agent task scheduler",
	Long: `Sprintd drives a pool of AI agents through a sprint's task backlog
without a human re-triggering each step. Tasks are ordered by dependency
count, priority, and complexity; agents are matched by capability; stuck
work is recovered by a periodic sweep.

Configure the agent pool in sprintd.yaml and start a sprint with 'sprintd run'.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default sprintd.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override log level (debug, info, warn, error)")
}

// loadConfig loads the configuration and initializes logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevelFlag != "" {
		cfg.Logging.Level = logLevelFlag
	}
	err = logging.Init(logging.Config{
		Level:         cfg.Logging.Level,
		Path:          cfg.Logging.Path,
		Format:        cfg.Logging.Format,
		RetentionDays: cfg.Logging.RetentionDays,
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
