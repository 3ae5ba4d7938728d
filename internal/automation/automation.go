// Package automation runs scripted sequences of ensembles described in YAML.
package automation

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/jumpsim/internal/config"
	"github.com/san-kum/jumpsim/internal/ensemble"
	"github.com/san-kum/jumpsim/internal/experiment"
	"github.com/san-kum/jumpsim/internal/storage"
)

// Scenario defines a scripted simulation sequence
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset, or the defaults when Preset is empty,
// and applies the keys under Set on top of it. Setting save_grid without
// save_times replaces the preset's save times with the grid.
type ScenarioStep struct {
	Name   string    `yaml:"name"`
	Preset string    `yaml:"preset"`
	Set    yaml.Node `yaml:"set"`
}

// StepResult is the stored outcome of one step.
type StepResult struct {
	Name    string
	RunID   string
	Summary *ensemble.Summary
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", scenario.Name)
	}
	for i, step := range scenario.Steps {
		if _, err := step.Config(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return &scenario, nil
}

// Config resolves the step's configuration.
func (s *ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		cfg = config.GetPreset(s.Preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", s.Preset, config.ListPresets())
		}
	}
	if err := cfg.Overlay(&s.Set); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunScenario executes all steps in order and stores each summary. It stops
// at the first step that cannot be configured or produces no successful
// trajectory.
func RunScenario(ctx context.Context, scenario *Scenario, st *storage.Store, logger *slog.Logger) ([]StepResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}
		logger.Info("scenario step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "name", name)

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp, err := experiment.FromConfig(cfg, logger)
		if err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}

		rep, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		summary, err := ensemble.Reduce(rep)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		meta := storage.NewMetadata(name, exp.Params())
		meta.Elapsed = rep.Elapsed.Seconds()
		meta.Counters = storage.Counters(rep)

		runID, err := st.Save(meta, summary)
		if err != nil {
			return results, fmt.Errorf("step %d save: %w", i+1, err)
		}

		results = append(results, StepResult{Name: name, RunID: runID, Summary: summary})
	}

	return results, nil
}
