package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Provider.Name != "anthropic" {
		t.Errorf("provider = %q, want anthropic", cfg.Provider.Name)
	}
	if cfg.Agents.MaxTurns != 10 || cfg.Agents.MaxToolIterations != 25 {
		t.Errorf("agent bounds = %d/%d, want 10/25", cfg.Agents.MaxTurns, cfg.Agents.MaxToolIterations)
	}
	if cfg.Execution.Strategy != "parallel" || cfg.Execution.Role != "coder" {
		t.Errorf("execution = %q/%q", cfg.Execution.Strategy, cfg.Execution.Role)
	}
	if cfg.Execution.TaskTimeout != 15*time.Minute {
		t.Errorf("task timeout = %v, want 15m", cfg.Execution.TaskTimeout)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
provider:
  name: openai
  model: gpt-4o-mini
agents:
  max_turns: 4
  skip_confirmation: true
execution:
  strategy: pipeline
  task_timeout: 2m
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Provider.Name != "openai" || cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
	if cfg.Agents.MaxTurns != 4 || !cfg.Agents.SkipConfirmation {
		t.Errorf("agents = %+v", cfg.Agents)
	}
	if cfg.Execution.Strategy != "pipeline" {
		t.Errorf("strategy = %q", cfg.Execution.Strategy)
	}
	if cfg.Execution.TaskTimeout != 2*time.Minute {
		t.Errorf("task timeout = %v, want 2m", cfg.Execution.TaskTimeout)
	}
	// Untouched keys keep their defaults.
	if cfg.Agents.MaxToolIterations != 25 {
		t.Errorf("max tool iterations = %d, want default 25", cfg.Agents.MaxToolIterations)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadFromPath accepted a missing file")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := Default()
	cfg.Provider.Name = "google"
	cfg.Agents.MaxTurns = 7
	if err := Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if loaded.Provider.Name != "google" || loaded.Agents.MaxTurns != 7 {
		t.Errorf("reloaded = %+v", loaded)
	}
}
