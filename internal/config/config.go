// Package config handles loading and validating sprintd configuration.
// Supports YAML config files and SPRINTD_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/marcus/sprintd/internal/agents"
	"github.com/marcus/sprintd/internal/history"
	"github.com/marcus/sprintd/internal/logging"
)

// Config holds all sprintd configuration.
type Config struct {
	Agents    []AgentConfig   `mapstructure:"agents"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Sprints   SprintsConfig   `mapstructure:"sprints"`
}

// AgentConfig describes one agent in the pool.
type AgentConfig struct {
	ID            string   `mapstructure:"id"`
	Kind          string   `mapstructure:"kind"` // backend family: claude, codex, gemini...
	Tier          string   `mapstructure:"tier"` // heavy, standard, light
	Capabilities  []string `mapstructure:"capabilities"`
	MaxConcurrent int      `mapstructure:"max_concurrent"`
	Command       string   `mapstructure:"command"` // binary the kind's backend spawns
	Args          []string `mapstructure:"args"`
}

// SchedulerConfig holds the dispatch engine knobs.
type SchedulerConfig struct {
	MaxAgents       int           `mapstructure:"max_agents"`
	Continuous      bool          `mapstructure:"continuous"`
	RequireReview   bool          `mapstructure:"require_review"`
	CostLimit       float64       `mapstructure:"cost_limit"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	DispatchBackoff time.Duration `mapstructure:"dispatch_backoff"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level         string `mapstructure:"level"`
	Path          string `mapstructure:"path"`
	Format        string `mapstructure:"format"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// DatabaseConfig holds the history store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// SprintsConfig locates sprint task files for the file work source.
type SprintsConfig struct {
	Dir string `mapstructure:"dir"`
}

// Default returns the built-in configuration: one heavy and one light agent
// wrapping the claude and gemini CLIs.
func Default() *Config {
	logCfg := logging.DefaultConfig()
	return &Config{
		Agents: []AgentConfig{
			{
				ID: "claude-1", Kind: "claude", Tier: "heavy",
				Capabilities:  []string{"code", "refactor", "debug", "review", "test", "docs"},
				MaxConcurrent: 2,
				Command:       "claude", Args: []string{"--print"},
			},
			{
				ID: "gemini-1", Kind: "gemini", Tier: "light",
				Capabilities:  []string{"code", "docs", "test"},
				MaxConcurrent: 1,
				Command:       "gemini", Args: []string{"--prompt"},
			},
		},
		Scheduler: SchedulerConfig{
			MaxAgents:       3,
			Continuous:      true,
			SweepInterval:   30 * time.Second,
			DispatchBackoff: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:         logCfg.Level,
			Path:          logCfg.Path,
			Format:        logCfg.Format,
			RetentionDays: logCfg.RetentionDays,
		},
		Database: DatabaseConfig{Path: history.DefaultPath()},
		Sprints:  SprintsConfig{Dir: "sprints"},
	}
}

// Load reads configuration from the given file, or from the default search
// paths when path is empty. A missing config file is not an error: defaults
// apply, overridable through SPRINTD_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sprintd")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "sprintd"))
		}
	}

	v.SetEnvPrefix("SPRINTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if path != "" {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("scheduler.max_agents", def.Scheduler.MaxAgents)
	v.SetDefault("scheduler.continuous", def.Scheduler.Continuous)
	v.SetDefault("scheduler.sweep_interval", def.Scheduler.SweepInterval)
	v.SetDefault("scheduler.dispatch_backoff", def.Scheduler.DispatchBackoff)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.path", def.Logging.Path)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.retention_days", def.Logging.RetentionDays)
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("sprints.dir", def.Sprints.Dir)
}

// Validate checks the configuration for fatal problems.
func (c *Config) Validate() error {
	if c.Scheduler.MaxAgents <= 0 {
		return fmt.Errorf("scheduler.max_agents must be positive, got %d", c.Scheduler.MaxAgents)
	}
	if c.Scheduler.SweepInterval < time.Second {
		return fmt.Errorf("scheduler.sweep_interval must be at least 1s, got %v", c.Scheduler.SweepInterval)
	}
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents configured")
	}

	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent with empty id")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		if a.Kind == "" {
			return fmt.Errorf("agent %q: kind is required", a.ID)
		}
		if a.MaxConcurrent <= 0 {
			return fmt.Errorf("agent %q: max_concurrent must be positive, got %d", a.ID, a.MaxConcurrent)
		}
		if a.Tier != "" && !agents.Tier(a.Tier).Valid() {
			return fmt.Errorf("agent %q: unknown tier %q", a.ID, a.Tier)
		}
	}
	return nil
}

// BuildRegistry constructs the shared agent registry from the roster.
func (c *Config) BuildRegistry() (*agents.Registry, error) {
	registry := agents.NewRegistry()
	for _, ac := range c.Agents {
		tier := agents.Tier(ac.Tier)
		if tier == "" {
			tier = agents.TierStandard
		}
		err := registry.Register(&agents.Agent{
			ID:            ac.ID,
			Kind:          ac.Kind,
			Tier:          tier,
			Capabilities:  ac.Capabilities,
			MaxConcurrent: ac.MaxConcurrent,
		})
		if err != nil {
			return nil, err
		}
	}
	return registry, nil
}
