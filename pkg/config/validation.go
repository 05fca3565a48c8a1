package config

import "fmt"

// ValidationConfig controls schema validation and the confidence gate.
type ValidationConfig struct {
	RequiredFields      []string          `yaml:"required_fields"`
	SupportedCurrencies []string          `yaml:"supported_currencies"`
	Confidence          *ConfidenceConfig `yaml:"confidence"`
}

// ConfidenceConfig holds per-field confidence thresholds.
type ConfidenceConfig struct {
	DefaultThreshold float64            `yaml:"default_threshold"`
	FieldThresholds  map[string]float64 `yaml:"field_thresholds"`
}

// DefaultValidationConfig returns the built-in validation defaults.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		RequiredFields: []string{
			"invoice_number",
			"vendor_name",
			"total_amount",
			"currency",
			"invoice_date",
		},
		SupportedCurrencies: []string{"USD", "EUR", "GBP", "CHF"},
		Confidence: &ConfidenceConfig{
			DefaultThreshold: 0.75,
			FieldThresholds:  map[string]float64{},
		},
	}
}

// Threshold returns the confidence threshold for field, falling back to the
// default when no per-field override is configured.
func (c *ValidationConfig) Threshold(field string) float64 {
	if c.Confidence == nil {
		return 0.75
	}
	if t, ok := c.Confidence.FieldThresholds[field]; ok {
		return t
	}
	return c.Confidence.DefaultThreshold
}

func validateValidation(cfg *ValidationConfig) error {
	if cfg == nil {
		return fmt.Errorf("validation configuration is nil")
	}
	if len(cfg.RequiredFields) == 0 {
		return fmt.Errorf("validation.required_fields must not be empty")
	}
	if len(cfg.SupportedCurrencies) == 0 {
		return fmt.Errorf("validation.supported_currencies must not be empty")
	}
	if cfg.Confidence != nil {
		if cfg.Confidence.DefaultThreshold < 0 || cfg.Confidence.DefaultThreshold > 1 {
			return fmt.Errorf("validation.confidence.default_threshold must be in [0, 1]")
		}
		for field, t := range cfg.Confidence.FieldThresholds {
			if t < 0 || t > 1 {
				return fmt.Errorf("validation.confidence.field_thresholds[%s] must be in [0, 1]", field)
			}
		}
	}
	return nil
}
