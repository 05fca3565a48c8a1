// Package config loads and validates the service configuration: the
// workflow DAG, validation rules, SLA definitions, queue tuning, and
// provider settings.
package config

import "fmt"

// Config is the umbrella configuration object returned by Initialize()
// and used throughout the application.
type Config struct {
	configDir string

	Workflow   *WorkflowConfig
	Validation *ValidationConfig
	SLA        *SLAConfig
	Queue      *QueueConfig
	Review     *ReviewConfig
	Output     *OutputConfig
	OCR        *OCRConfig
	LLM        *LLMConfig
}

// ReviewConfig tunes the human-review queue.
type ReviewConfig struct {
	// SLAMinutes is the review deadline applied at enqueue time.
	SLAMinutes int `yaml:"sla_minutes"`
}

// OutputConfig controls on-disk artifact writing.
type OutputConfig struct {
	// Root is the directory holding json/ and parquet/ artifact trees.
	Root string `yaml:"root"`
}

// OCRConfig holds Textract provider settings.
type OCRConfig struct {
	Region string `yaml:"region"`
	// S3Bucket stages multi-page PDFs for async Textract jobs.
	S3Bucket string `yaml:"s3_bucket"`
	// PollInterval between async job status checks (duration string).
	PollInterval string `yaml:"poll_interval"`
}

// LLMConfig holds structured-extractor settings.
type LLMConfig struct {
	Model string `yaml:"model"`
	// APIKeyEnv names the environment variable carrying the API key.
	APIKeyEnv string `yaml:"api_key_env"`
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// validate runs every section validator. Any failure is fatal at startup.
func validate(c *Config) error {
	if err := validateWorkflow(c.Workflow); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if err := validateValidation(c.Validation); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	if err := validateSLA(c.SLA); err != nil {
		return fmt.Errorf("sla: %w", err)
	}
	if err := validateQueue(c.Queue); err != nil {
		return fmt.Errorf("queue: %w", err)
	}
	if c.Review == nil || c.Review.SLAMinutes <= 0 {
		return fmt.Errorf("review: sla_minutes must be positive")
	}
	if c.Output == nil || c.Output.Root == "" {
		return fmt.Errorf("output: root must be set")
	}
	return nil
}
