package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// docprocYAML is the top-level structure of docproc.yaml.
type docprocYAML struct {
	Queue      *QueueConfig      `yaml:"queue"`
	Validation *ValidationConfig `yaml:"validation"`
	Review     *ReviewConfig     `yaml:"review"`
	Output     *OutputConfig     `yaml:"output"`
	OCR        *OCRConfig        `yaml:"ocr"`
	LLM        *LLMConfig        `yaml:"llm"`
}

// workflowYAML is the top-level structure of workflow.yaml.
type workflowYAML struct {
	Workflow *WorkflowConfig `yaml:"workflow"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
//
// Steps performed:
//  1. Load docproc.yaml, workflow.yaml, and sla.yaml from configDir
//  2. Expand environment variables in file contents
//  3. Fill unset sections with built-in defaults
//  4. Validate everything (validation failures are fatal at startup)
func Initialize(configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg := Default()
	cfg.configDir = configDir

	if configDir != "" {
		main := &docprocYAML{}
		if err := loadYAML(filepath.Join(configDir, "docproc.yaml"), main); err != nil {
			return nil, err
		}
		if main.Queue != nil {
			cfg.Queue = main.Queue
		}
		if main.Validation != nil {
			cfg.Validation = main.Validation
		}
		if main.Review != nil {
			cfg.Review = main.Review
		}
		if main.Output != nil {
			cfg.Output = main.Output
		}
		if main.OCR != nil {
			cfg.OCR = main.OCR
		}
		if main.LLM != nil {
			cfg.LLM = main.LLM
		}

		wf := &workflowYAML{}
		if err := loadYAML(filepath.Join(configDir, "workflow.yaml"), wf); err != nil {
			return nil, err
		}
		if wf.Workflow != nil {
			cfg.Workflow = wf.Workflow
		}

		sla := &SLAConfig{}
		if err := loadYAML(filepath.Join(configDir, "sla.yaml"), sla); err != nil {
			return nil, err
		}
		if len(sla.SLAs) > 0 {
			cfg.SLA = sla
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized successfully",
		"workflow_steps", len(cfg.Workflow.Steps),
		"slas", len(cfg.SLA.SLAs),
		"workers", cfg.Queue.WorkerCount)

	return cfg, nil
}

// loadYAML reads, env-expands, and decodes one YAML file into out.
// A missing file is not an error; the caller keeps its defaults.
func loadYAML(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("Config file not present, using defaults", "path", path)
			return nil
		}
		return NewLoadError(filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(ExpandEnv(data), out); err != nil {
		return NewLoadError(filepath.Base(path), fmt.Errorf("%w: %w", ErrInvalidYAML, err))
	}
	return nil
}
