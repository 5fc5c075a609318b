package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"stagehand/pkg/models"
)

// taskFile is the YAML shape of a task set on disk.
type taskFile struct {
	Strategy string            `yaml:"strategy,omitempty"`
	Role     string            `yaml:"role,omitempty"`
	Tasks    []models.TaskSpec `yaml:"tasks"`
}

// loadTasks interprets the command arguments: a single argument naming
// an existing .yaml/.yml file is parsed as a task file; anything else
// is joined into one ad-hoc task description.
func loadTasks(args []string) (*taskFile, error) {
	if len(args) == 1 && (strings.HasSuffix(args[0], ".yaml") || strings.HasSuffix(args[0], ".yml")) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading task file: %w", err)
		}
		var tf taskFile
		if err := yaml.Unmarshal(data, &tf); err != nil {
			return nil, fmt.Errorf("parsing task file %s: %w", args[0], err)
		}
		if len(tf.Tasks) == 0 {
			return nil, fmt.Errorf("task file %s contains no tasks", args[0])
		}
		return &tf, nil
	}

	desc := strings.TrimSpace(strings.Join(args, " "))
	if desc == "" {
		return nil, fmt.Errorf("no task given")
	}
	return &taskFile{Tasks: []models.TaskSpec{{Description: desc}}}, nil
}
