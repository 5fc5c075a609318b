// Package config handles configuration loading for stagehand.
// It supports XDG config paths, project-level overrides, and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for stagehand.
type Config struct {
	Provider  ProviderConfig  `mapstructure:"provider"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Execution ExecutionConfig `mapstructure:"execution"`
	State     StateConfig     `mapstructure:"state"`
}

// ProviderConfig selects and authenticates the LLM backends.
type ProviderConfig struct {
	// Name is the primary provider (anthropic, openai, google).
	Name string `mapstructure:"name"`
	// Model overrides the provider's default model when non-empty.
	Model string `mapstructure:"model"`
	// MaxTokens bounds each completion; 0 uses the provider default.
	MaxTokens int `mapstructure:"max_tokens"`

	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key"`
}

// AgentsConfig bounds delegated sub-agents.
type AgentsConfig struct {
	// MaxTurns caps model round trips per delegated task.
	MaxTurns int `mapstructure:"max_turns"`
	// MaxToolIterations caps tool rounds inside an interactive turn.
	MaxToolIterations int `mapstructure:"max_tool_iterations"`
	// SkipConfirmation disables destructive-tool gating.
	SkipConfirmation bool `mapstructure:"skip_confirmation"`
}

// ExecutionConfig shapes task scheduling.
type ExecutionConfig struct {
	// Strategy is the default planning strategy.
	Strategy string `mapstructure:"strategy"`
	// Role is the default agent role for delegated tasks.
	Role string `mapstructure:"role"`
	// Parallelism, when positive, caps concurrent delegations below
	// the plan's own bound.
	Parallelism int `mapstructure:"parallelism"`
	// TaskTimeout bounds one delegation attempt.
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
	// ToolTimeout bounds one shell or file tool execution.
	ToolTimeout time.Duration `mapstructure:"tool_timeout"`
}

// StateConfig locates the persistence database.
type StateConfig struct {
	// DBPath overrides the default database location when non-empty.
	DBPath string `mapstructure:"db_path"`
	// CheckpointsKept is how many snapshots to retain per session.
	CheckpointsKept int `mapstructure:"checkpoints_kept"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (STAGEHAND_*, plus the vendor API key vars)
// 2. Project config (.stagehand.yaml in current directory or a parent)
// 3. User config (~/.config/stagehand/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("STAGEHAND")
	v.BindEnv("provider.name", "STAGEHAND_PROVIDER")
	v.BindEnv("provider.model", "STAGEHAND_MODEL")
	v.BindEnv("provider.anthropic_api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("provider.openai_api_key", "OPENAI_API_KEY")
	v.BindEnv("provider.gemini_api_key", "GEMINI_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references in keys.
	cfg.Provider.AnthropicAPIKey = os.ExpandEnv(cfg.Provider.AnthropicAPIKey)
	cfg.Provider.OpenAIAPIKey = os.ExpandEnv(cfg.Provider.OpenAIAPIKey)
	cfg.Provider.GeminiAPIKey = os.ExpandEnv(cfg.Provider.GeminiAPIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("provider.name", cfg.Provider.Name)
	v.Set("provider.model", cfg.Provider.Model)
	v.Set("provider.max_tokens", cfg.Provider.MaxTokens)
	v.Set("agents.max_turns", cfg.Agents.MaxTurns)
	v.Set("agents.max_tool_iterations", cfg.Agents.MaxToolIterations)
	v.Set("agents.skip_confirmation", cfg.Agents.SkipConfirmation)
	v.Set("execution.strategy", cfg.Execution.Strategy)
	v.Set("execution.role", cfg.Execution.Role)
	v.Set("execution.parallelism", cfg.Execution.Parallelism)
	v.Set("execution.task_timeout", cfg.Execution.TaskTimeout.String())
	v.Set("execution.tool_timeout", cfg.Execution.ToolTimeout.String())
	v.Set("state.db_path", cfg.State.DBPath)
	v.Set("state.checkpoints_kept", cfg.State.CheckpointsKept)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider.name", "anthropic")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.max_tokens", 0)

	v.SetDefault("agents.max_turns", 10)
	v.SetDefault("agents.max_tool_iterations", 25)
	v.SetDefault("agents.skip_confirmation", false)

	v.SetDefault("execution.strategy", "parallel")
	v.SetDefault("execution.role", "coder")
	v.SetDefault("execution.parallelism", 0)
	v.SetDefault("execution.task_timeout", "15m")
	v.SetDefault("execution.tool_timeout", "5m")

	v.SetDefault("state.db_path", "")
	v.SetDefault("state.checkpoints_kept", 10)
}

// getUserConfigDir returns the XDG config directory for stagehand.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "stagehand")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "stagehand")
	}
	return filepath.Join(home, ".config", "stagehand")
}

// findProjectConfig searches for .stagehand.yaml upward from the
// current directory.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, ".stagehand.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Name: "anthropic",
		},
		Agents: AgentsConfig{
			MaxTurns:          10,
			MaxToolIterations: 25,
		},
		Execution: ExecutionConfig{
			Strategy:    "parallel",
			Role:        "coder",
			TaskTimeout: 15 * time.Minute,
			ToolTimeout: 5 * time.Minute,
		},
		State: StateConfig{
			CheckpointsKept: 10,
		},
	}
}
