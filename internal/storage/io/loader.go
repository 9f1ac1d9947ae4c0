package io

import (
	"context"
	"fmt"
	"io/fs"

	"gopkg.in/yaml.v3"

	"github.com/urko/taskmill/internal/model"
)

// ConfigYAMLRepository loads engine configuration from YAML files.
type ConfigYAMLRepository struct {
	fs fs.FS
}

// NewConfigYAMLRepository creates a new YAML config repository.
func NewConfigYAMLRepository(filesystem fs.FS) *ConfigYAMLRepository {
	return &ConfigYAMLRepository{fs: filesystem}
}

// GetConfig loads the engine configuration from a YAML file and returns a
// validated domain model.
func (r *ConfigYAMLRepository) GetConfig(ctx context.Context, path string) (model.EngineConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return model.EngineConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.EngineConfig{}, ctx.Err()
	}

	var cfg EngineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.EngineConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return model.EngineConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg.toModel(), nil
}

// EngineConfig represents the YAML structure for the engine configuration.
type EngineConfig struct {
	Reasoner   ReasonerConfig   `yaml:"reasoner"`
	Context    ContextConfig    `yaml:"context"`
	Escalation EscalationConfig `yaml:"escalation"`
	Worker     WorkerConfig     `yaml:"worker"`
}

// ReasonerConfig represents the YAML structure for the reasoning endpoint.
type ReasonerConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// ContextConfig represents the YAML structure for context budgets.
type ContextConfig struct {
	DomainBudgetTokens int `yaml:"domain_budget_tokens"`
	MaxContextTokens   int `yaml:"max_context_tokens"`
}

// EscalationConfig represents the YAML structure for escalation thresholds.
type EscalationConfig struct {
	MaxConsecutiveFailures int     `yaml:"max_consecutive_failures"`
	MaxCostDollars         float64 `yaml:"max_cost_dollars"`
}

// WorkerConfig represents the YAML structure for the queue worker.
type WorkerConfig struct {
	PollIntervalSeconds int `yaml:"poll_interval_seconds"`
}

func (c EngineConfig) validate() error {
	if c.Reasoner.URL == "" {
		return fmt.Errorf("reasoner url is required")
	}
	if c.Reasoner.Model == "" {
		return fmt.Errorf("reasoner model is required")
	}
	if c.Context.DomainBudgetTokens < 0 {
		return fmt.Errorf("domain_budget_tokens must not be negative, got: %d", c.Context.DomainBudgetTokens)
	}
	if c.Context.MaxContextTokens < 0 {
		return fmt.Errorf("max_context_tokens must not be negative, got: %d", c.Context.MaxContextTokens)
	}
	if c.Escalation.MaxConsecutiveFailures < 0 {
		return fmt.Errorf("max_consecutive_failures must not be negative, got: %d", c.Escalation.MaxConsecutiveFailures)
	}
	if c.Escalation.MaxCostDollars < 0 {
		return fmt.Errorf("max_cost_dollars must not be negative, got: %f", c.Escalation.MaxCostDollars)
	}
	if c.Worker.PollIntervalSeconds < 0 {
		return fmt.Errorf("poll_interval_seconds must not be negative, got: %d", c.Worker.PollIntervalSeconds)
	}
	return nil
}

func (c EngineConfig) toModel() model.EngineConfig {
	return model.EngineConfig{
		ReasonerURL:            c.Reasoner.URL,
		ReasonerModel:          c.Reasoner.Model,
		DomainBudgetTokens:     c.Context.DomainBudgetTokens,
		MaxContextTokens:       c.Context.MaxContextTokens,
		MaxConsecutiveFailures: c.Escalation.MaxConsecutiveFailures,
		MaxCostDollars:         c.Escalation.MaxCostDollars,
		PollIntervalSeconds:    c.Worker.PollIntervalSeconds,
	}
}
