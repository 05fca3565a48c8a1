package config

import (
	"fmt"

	"github.com/codeready-toolchain/docproc/pkg/workflow"
)

// WorkflowConfig is the declarative step DAG from workflow.yaml.
type WorkflowConfig struct {
	Steps map[string]*WorkflowStepConfig `yaml:"steps"`
}

// WorkflowStepConfig is one step entry in workflow.yaml. Options carries
// every key of the step mapping so handlers can read kind-specific settings
// without the loader knowing about them.
type WorkflowStepConfig struct {
	Kind           string   `yaml:"kind"`
	DependsOn      []string `yaml:"depends_on"`
	Retries        int      `yaml:"retries"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
	MaxConcurrency int      `yaml:"max_concurrency"`

	Options map[string]any `yaml:"-"`
}

// UnmarshalYAML decodes the typed fields and additionally retains the raw
// mapping as Options.
func (s *WorkflowStepConfig) UnmarshalYAML(unmarshal func(any) error) error {
	type plain WorkflowStepConfig
	if err := unmarshal((*plain)(s)); err != nil {
		return err
	}
	raw := map[string]any{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	s.Options = raw
	return nil
}

// Specs converts the YAML step map to workflow step specs.
func (w *WorkflowConfig) Specs() map[string]*workflow.StepSpec {
	specs := make(map[string]*workflow.StepSpec, len(w.Steps))
	for name, s := range w.Steps {
		specs[name] = &workflow.StepSpec{
			Name:           name,
			Kind:           s.Kind,
			DependsOn:      s.DependsOn,
			Retries:        s.Retries,
			RateLimitRPS:   s.RateLimitRPS,
			RateLimitBurst: s.RateLimitBurst,
			MaxConcurrency: s.MaxConcurrency,
		}
	}
	return specs
}

// StepOptions returns the raw per-step option maps keyed by step name.
func (w *WorkflowConfig) StepOptions() map[string]workflow.Options {
	opts := make(map[string]workflow.Options, len(w.Steps))
	for name, s := range w.Steps {
		opts[name] = workflow.Options(s.Options)
	}
	return opts
}

// DefaultWorkflowConfig returns the built-in invoice pipeline DAG.
func DefaultWorkflowConfig() *WorkflowConfig {
	return &WorkflowConfig{
		Steps: map[string]*WorkflowStepConfig{
			"ocr":                  {Kind: "ocr", Retries: 2, RateLimitRPS: 2, RateLimitBurst: 4},
			"llm_extract":          {Kind: "llm_extract", DependsOn: []string{"ocr"}, Retries: 2, RateLimitRPS: 1, RateLimitBurst: 2},
			"normalize_line_items": {Kind: "normalize_line_items", DependsOn: []string{"llm_extract"}},
			"validate":             {Kind: "validate", DependsOn: []string{"normalize_line_items"}},
			"write_outputs":        {Kind: "write_outputs", DependsOn: []string{"validate"}, Retries: 1},
			"persist":              {Kind: "persist", DependsOn: []string{"write_outputs"}, Retries: 1},
			"review_gate":          {Kind: "review_gate", DependsOn: []string{"persist"}, Retries: 1},
		},
	}
}

func validateWorkflow(w *WorkflowConfig) error {
	if w == nil || len(w.Steps) == 0 {
		return fmt.Errorf("workflow configuration has no steps")
	}
	for name, s := range w.Steps {
		if s.Kind == "" {
			return NewValidationError("workflow", name, "kind", ErrMissingRequiredField)
		}
		if s.Retries < 0 {
			return NewValidationError("workflow", name, "retries", ErrInvalidValue)
		}
		if (s.RateLimitRPS > 0) != (s.RateLimitBurst > 0) {
			return NewValidationError("workflow", name, "rate_limit",
				fmt.Errorf("rate_limit_rps and rate_limit_burst must be set together"))
		}
	}
	// Graph-level checks (unknown deps, cycles) are CONFIG_INVALID at startup.
	g := workflow.NewGraph(w.Specs())
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	if _, err := g.TopologicalLayers(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return nil
}
